package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	name    string
	pingErr error
	closed  *[]string
}

func (m *mockClient) Name() string               { return m.name }
func (m *mockClient) Ping(context.Context) error { return m.pingErr }
func (m *mockClient) Close() error               { *m.closed = append(*m.closed, m.name); return nil }

func TestManager(t *testing.T) {
	var closed []string
	mgr := NewManager()
	require.NoError(t, mgr.Register("database", &mockClient{name: "database", closed: &closed}))
	require.NoError(t, mgr.Register("redis", &mockClient{name: "redis", pingErr: errors.New("down"), closed: &closed}))
	assert.Error(t, mgr.Register("redis", &mockClient{closed: &closed}))

	statuses := mgr.HealthCheckAll(context.Background())
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Healthy)
	assert.False(t, statuses[1].Healthy)
	assert.Equal(t, "down", statuses[1].Error)

	require.NoError(t, mgr.CloseAll())
	assert.Equal(t, []string{"redis", "database"}, closed)
}
