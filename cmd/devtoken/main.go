// Command devtoken prints a signed identity token for local testing.
package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/npezzotti/go-anonchat/internal/api"
	"github.com/spf13/pflag"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	key := os.Getenv("ANONCHAT_SIGNING_KEY")
	if key == "" {
		key = defaultSigningKey
	}

	var (
		userId     string
		signingKey string
		exp        time.Duration
	)

	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVarP(&userId, "user", "u", "", "user id to put in the sub claim")
	flagSet.StringVar(&signingKey, "signing-key", key, "base64 encoded signing key")
	flagSet.DurationVar(&exp, "exp", api.DefaultTokenExpiration, "token lifetime")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	secret, err := base64.StdEncoding.DecodeString(signingKey)
	if err != nil {
		return fmt.Errorf("decode signing key: %w", err)
	}

	token, err := api.IssueToken(secret, userId, exp)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
