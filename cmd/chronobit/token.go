package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rolfenpp/ChronoBit-API/internal/config"
	"github.com/rolfenpp/ChronoBit-API/internal/service"
)

var (
	tokenSubject string
	tokenEmail   string
	tokenTTL     time.Duration
)

// tokenCmd signs a development token with the configured secret.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ttl := tokenTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}

		auth := service.NewAuthService(authConfig(conf), nil)
		token, err := auth.Issue(tokenSubject, tokenEmail, ttl)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
