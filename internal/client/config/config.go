// Package config holds the settings of the file store command-line client.
package config

import "time"

// Config holds runtime settings for the file store CLI.
//
// Fields:
//   - ServerURL: base URL of the HTTP API.
//   - GRPCAddr: host:port of the gRPC health endpoint.
//   - Subject: caller name put into minted tokens.
//   - SecretKey: token signing secret; prompted for at login when empty.
//   - TokenValidity: lifetime of minted tokens.
//   - OnlineCheckInterval: how often the client probes server health.
type Config struct {
	ServerURL           string
	GRPCAddr            string
	Subject             string
	SecretKey           string
	TokenValidity       time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.GRPCAddr = "127.0.0.1:50051"
	c.Subject = "fsctl"
	c.TokenValidity = time.Hour
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
