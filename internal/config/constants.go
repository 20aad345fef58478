package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

const monthsPerYear = 12

// Background reconcile job interval
const ReconcileJobInterval = 15 * time.Minute

// Timeout for outbound Garmin API calls
const GarminHTTPTimeout = 10 * time.Second

// A re-read after losing the lease race only trusts the other caller's
// token when it is at least this far from expiry.
const TokenFreshnessFloor = 60 * time.Second
