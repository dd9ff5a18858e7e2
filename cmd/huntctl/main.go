// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package main is huntctl, the Huntboard operations CLI.
//
// huntctl drives the recommendation API over HTTP, plus one offline
// maintenance command (purge) that opens the interaction log directly.
// Connection settings come from flags or HUNTCTL_-prefixed environment
// variables (HUNTCTL_SERVER, HUNTCTL_TOKEN, HUNTCTL_CLIENT_ID).
//
// Exit codes: 0 ok, 2 validation, 3 not found, 4 rate limited, 5 internal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huntboard/huntboard/internal/apperr"
)

var (
	flagServer   string
	flagToken    string
	flagClientID string

	rootCmd = &cobra.Command{
		Use:           "huntctl",
		Short:         "Operations CLI for the Huntboard recommendation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	v := viper.New()
	v.SetEnvPrefix("HUNTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8080")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", v.GetString("server"), "Huntboard server base URL")
	pf.StringVar(&flagToken, "token", v.GetString("token"), "bearer token for authenticated commands")
	pf.StringVar(&flagClientID, "client-id", v.GetString("client_id"), "anonymous client fingerprint")
}

func api() *client {
	return newClient(strings.TrimRight(flagServer, "/"), flagToken, flagClientID)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "huntctl:", err)
		os.Exit(apperr.ExitCode(err))
	}
}
