package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mwopts "github.com/lazysoft/consultant/pkg/options/middleware"
	httpopts "github.com/lazysoft/consultant/pkg/options/server/http"
	"github.com/lazysoft/consultant/pkg/utils/json"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type recorder struct {
	name     string
	startErr error
	log      *eventLog
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Start(context.Context) error {
	r.log.add("start " + r.name)
	return r.startErr
}

func (r *recorder) Stop(context.Context) error {
	r.log.add("stop " + r.name)
	return nil
}

func testOptions() *httpopts.Options {
	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Mode = "test"
	return opts
}

func TestManager_NoRoute(t *testing.T) {
	m := NewManager(testOptions(), nil, time.Second)

	w := httptest.NewRecorder()
	m.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotZero(t, body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.NotEmpty(t, w.Header().Get(response.HeaderRequestID))
}

func TestManager_MiddlewareSelection(t *testing.T) {
	mw := mwopts.NewOptions()
	mw.Middleware = []string{mwopts.MiddlewareRecovery}
	m := NewManager(testOptions(), mw, time.Second)
	m.Engine().GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	m.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get(response.HeaderRequestID))
}

func TestManager_Lifecycle(t *testing.T) {
	log := &eventLog{}
	m := NewManager(testOptions(), nil, time.Second)
	m.AddServer(&recorder{name: "a", log: log})
	m.AddServer(&recorder{name: "b", log: log})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(log.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log.snapshot())
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	log := &eventLog{}
	m := NewManager(testOptions(), nil, time.Second)
	m.AddServer(&recorder{name: "a", log: log})
	m.AddServer(&recorder{name: "b", startErr: errors.New("boom"), log: log})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start b")
	assert.Equal(t, []string{"start a", "start b", "stop a"}, log.snapshot())

	assert.Error(t, m.Start(context.Background()), "second start")
}
