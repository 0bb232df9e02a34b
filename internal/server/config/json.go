package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/carevault/carevault/internal/flagx"
	"github.com/carevault/carevault/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which parses both string values
// such as "30m" and integer nanoseconds. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr         string         `json:"endpoint_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	SessionTokenValidity timex.Duration `json:"session_token_validity"`
	InactivityTimeout    timex.Duration `json:"inactivity_timeout"`
	MaxSessionAge        timex.Duration `json:"max_session_age"`
	AdminPublicKeyPath   string         `json:"admin_public_key_path"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flags; when no
// path is given, nothing is loaded. The caller merges these values with
// defaults and command-line flags as part of the full configuration process.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionTokenValidity = time.Duration(c.SessionTokenValidity.Duration)
	config.InactivityTimeout = time.Duration(c.InactivityTimeout.Duration)
	config.MaxSessionAge = time.Duration(c.MaxSessionAge.Duration)
	config.AdminPublicKeyPath = c.AdminPublicKeyPath
}
