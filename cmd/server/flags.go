package main

import (
	"strings"

	"github.com/npezzotti/go-anonchat/internal/config"
	"github.com/spf13/pflag"
)

const (
	defaultAddr       = "localhost:8000"
	defaultDSN        = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
	defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
)

// parseFlags builds the config from args. Every flag defaults to its
// ANONCHAT_* environment variable when set.
func parseFlags(args []string, getenv func(string) string) (*config.Config, error) {
	envOr := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	var (
		addr           string
		dsn            string
		signingKey     string
		store          string
		allowedOrigins []string
	)

	flagSet := pflag.NewFlagSet("anonchat-server", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", envOr("ANONCHAT_ADDR", defaultAddr), "server address")
	flagSet.StringVar(&dsn, "dsn", envOr("ANONCHAT_DSN", defaultDSN), "database connection string")
	flagSet.StringVar(&signingKey, "signing-key", envOr("ANONCHAT_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flagSet.StringVar(&store, "store", envOr("ANONCHAT_STORE", config.StorePostgres), "document store: postgres or memory")

	var defaultOrigins []string
	if v := getenv("ANONCHAT_ALLOWED_ORIGINS"); v != "" {
		defaultOrigins = strings.Split(v, ",")
	}
	flagSet.StringSliceVar(&allowedOrigins, "allowed-origins", defaultOrigins, "comma-separated list of allowed origins for CORS")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	return config.NewConfig(addr, dsn, signingKey, allowedOrigins, store)
}
