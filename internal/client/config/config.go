// Package config handles configuration for the client CLI,
// including defaults, JSON overlay, and command-line flags.
package config

// Config holds runtime settings for the CareVault client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the CareVault server API.
//   - DatabaseDSN: path of the local sqlite database holding offline login
//     metadata and the ciphertext record cache.
type Config struct {
	ServerEndpointAddr string
	DatabaseDSN        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabaseDSN = "carevault.db"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
