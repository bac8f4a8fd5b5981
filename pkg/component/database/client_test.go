package database

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/lazysoft/consultant/pkg/options/database"
)

func TestNew_SQLite(t *testing.T) {
	opts := options.NewOptions()
	opts.Path = filepath.Join(t.TempDir(), "test.db")
	opts.LogLevel = 1

	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "sqlite", c.Name())
	assert.NoError(t, c.Ping(context.Background()))

	var one int
	require.NoError(t, c.DB().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := options.NewOptions()
	opts.Driver = "oracle"
	_, err := New(context.Background(), opts)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	opts := options.NewOptions()
	opts.Driver = options.DriverPostgres
	opts.Password = "secret"
	assert.Contains(t, opts.DSN(), "dbname=consultant")

	opts.Driver = options.DriverMySQL
	opts.Port = 3306
	assert.Contains(t, opts.DSN(), "@tcp(127.0.0.1:3306)/consultant")
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := "INSERT INTO chunks (embedding) VALUES ('[" + strings.Repeat("0.125,", 2000) + "]')"
	got := truncateSQL(long)
	assert.Less(t, len(got), len(long))
	assert.True(t, strings.HasPrefix(got, "INSERT INTO chunks"))
	assert.Contains(t, got, fmt.Sprintf("(%d bytes)", len(long)))
}
