package errors

import (
	"fmt"
	"sort"
	"sync"
)

var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register records an Errno in the global registry.
// Panics if the code is already taken.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for the given code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}

// Codes returns every registered code in ascending order.
func Codes() []int {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]int, 0, len(errnoRegistry))
	for code := range errnoRegistry {
		out = append(out, code)
	}
	sort.Ints(out)
	return out
}
