// Package database provides relational store configuration options.
package database

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Options defines configuration options for the relational store.
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver"`
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	Path                  string        `json:"path" mapstructure:"path"` // sqlite file, ":memory:" allowed
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"` // 1 silent, 2 error, 3 warn, 4 info
	SlowThreshold         time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
	AutoMigrate           bool          `json:"auto-migrate" mapstructure:"auto-migrate"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverSQLite,
		Host:                  "127.0.0.1",
		Port:                  5432,
		Username:              "postgres",
		Database:              "consultant",
		SSLMode:               "disable",
		Path:                  "consultant.db",
		MaxIdleConnections:    10,
		MaxOpenConnections:    50,
		MaxConnectionLifeTime: 10 * time.Minute,
		LogLevel:              2,
		SlowThreshold:         500 * time.Millisecond,
		AutoMigrate:           true,
	}
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "database")...)
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver: sqlite, postgres or mysql.")
	fs.StringVar(&o.Host, p+"host", o.Host, "Database host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Database port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Database username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Database password.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name.")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode.")
	fs.StringVar(&o.Path, p+"path", o.Path, "SQLite database file.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Maximum idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Maximum open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum connection lifetime.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "SQL log level (1 silent, 2 error, 3 warn, 4 info).")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Slow query threshold.")
	fs.BoolVar(&o.AutoMigrate, p+"auto-migrate", o.AutoMigrate, "Create or update tables at startup.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	switch o.Driver {
	case DriverSQLite:
		if o.Path == "" {
			errs = append(errs, fmt.Errorf("database.path is required for sqlite"))
		}
	case DriverPostgres, DriverMySQL:
		if o.Host == "" || o.Database == "" {
			errs = append(errs, fmt.Errorf("database.host and database.database are required for %s", o.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", o.Driver))
	}
	if o.LogLevel < 1 || o.LogLevel > 4 {
		errs = append(errs, fmt.Errorf("database.log-level must be within 1..4"))
	}
	return errs
}

// DSN renders the driver specific connection string.
func (o *Options) DSN() string {
	switch o.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			o.Host, o.Port, o.Username, o.Password, o.Database, o.SSLMode)
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			o.Username, url.QueryEscape(o.Password), o.Host, o.Port, o.Database)
	default:
		if o.Path == ":memory:" {
			return "file::memory:?cache=shared"
		}
		return o.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
}
