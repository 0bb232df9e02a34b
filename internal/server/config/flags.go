package config

import (
	"flag"
	"os"
	"time"

	"github.com/carevault/carevault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   server secret key (JWT signing, fragment at-rest encryption)
//	-t int      session token validity, minutes
//	-i int      balanced-tier inactivity timeout, minutes
//	-m int      balanced-tier max session age, minutes
//	-k string   path to the admin public key PEM
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration flags
// are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-i", "-m", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.SessionTokenValidity.Minutes()), "session_token_validity (in minutes)")
	inactivity := fs.Int("i", int(config.InactivityTimeout.Minutes()), "inactivity_timeout (in minutes)")
	maxAge := fs.Int("m", int(config.MaxSessionAge.Minutes()), "max_session_age (in minutes)")

	fs.StringVar(&config.AdminPublicKeyPath, "k", config.AdminPublicKeyPath, "admin public key PEM path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenValidity = time.Duration(*tokenValidity) * time.Minute
	config.InactivityTimeout = time.Duration(*inactivity) * time.Minute
	config.MaxSessionAge = time.Duration(*maxAge) * time.Minute
}
