package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-d", "dsn", "-a", "localhost"},
			allowedFlags: []string{"-d"},
			want:         []string{"-d", "dsn"},
		},
		{
			name:         "flag=value form",
			args:         []string{"-a=:8080", "-d=dsn"},
			allowedFlags: []string{"-a"},
			want:         []string{"-a=:8080"},
		},
		{
			name:         "flag followed by another flag keeps no value",
			args:         []string{"-x", "-d", "dsn"},
			allowedFlags: []string{"-x", "-d"},
			want:         []string{"-x", "-d", "dsn"},
		},
		{
			name:         "nothing allowed",
			args:         []string{"-a", "b"},
			allowedFlags: []string{},
			want:         []string{},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-a"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			assert.Equal(t, tt.want, got)
		})
	}
}
