// Package id generates sortable unique identifiers.
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new ULID string (26 chars, Crockford base32, time ordered).
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID for the given time.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewWithPrefix returns "<prefix>_<ulid>" in lower case, e.g. "sess_01h...".
func NewWithPrefix(prefix string) string {
	return prefix + "_" + strings.ToLower(New())
}

// Time extracts the timestamp of a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(strings.ToUpper(s))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
