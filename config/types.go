package config

// Log controls structured logging output.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB,omitempty"`
	MaxBackups int    `toml:"MaxBackups,omitempty"`
	MaxAgeDays int    `toml:"MaxAgeDays,omitempty"`
}

// RateLimit bounds how often a single relayer may call the RPC endpoint.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Auth configures bearer-token authentication for relayers. Query methods
// stay open; mutating methods require SubmitScope when Enabled.
type Auth struct {
	Enabled     bool   `toml:"Enabled"`
	HMACSecret  string `toml:"HMACSecret,omitempty"`
	Issuer      string `toml:"Issuer,omitempty"`
	Audience    string `toml:"Audience,omitempty"`
	SubmitScope string `toml:"SubmitScope,omitempty"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint,omitempty"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers,omitempty"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}
