package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	SlowQueryMs int

	// Guard/boot knobs
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string // stamped into client info, e.g. "api", "nightwatch"
}
