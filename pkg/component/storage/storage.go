// Package storage defines the contract shared by backing store clients and a
// registry used for health checks and shutdown.
package storage

import (
	"context"
	"time"
)

// Client is implemented by every backing store client (database, redis, milvus).
type Client interface {
	// Name returns the storage type identifier.
	Name() string
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
}

// HealthStatus is the result of pinging one client.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}
