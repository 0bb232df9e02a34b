package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, c.ServerEndpointAddr, "http://127.0.0.1:8080")
	assert.Equal(t, c.DatabaseDSN, "carevault.db")
}

func TestLoadConfig_UsesDefaultsWithoutOverrides(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"client"}
	defer func() { os.Args = oldArgs }()

	c := LoadConfig()

	var d Config
	d.LoadDefaults()
	assert.Equal(t, d, *c)
}

func TestParseJson_OverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	jc := JsonConfig{
		ServerEndpointAddr: "https://vault.example.org",
		DatabaseDSN:        "/tmp/vault.db",
	}
	data, err := json.Marshal(jc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	oldArgs := os.Args
	os.Args = []string{"client", "-c", path}
	defer func() { os.Args = oldArgs }()

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, "https://vault.example.org", c.ServerEndpointAddr)
	assert.Equal(t, "/tmp/vault.db", c.DatabaseDSN)
}

func TestParseFlags_Overrides(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"client", "-a", "https://vault.example.org", "-d", "/tmp/vault.db"}
	defer func() { os.Args = oldArgs }()

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, "https://vault.example.org", c.ServerEndpointAddr)
	assert.Equal(t, "/tmp/vault.db", c.DatabaseDSN)
}
