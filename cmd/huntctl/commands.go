// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/huntboard/huntboard/internal/apperr"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/database"
	"github.com/huntboard/huntboard/internal/profile"
)

var (
	flagLimit     int
	flagOffset    int
	flagBlend     string
	flagTimeframe int
	flagKind      string
	flagStrategy  string
	flagPosition  int
	flagDBPath    string

	feedCmd = &cobra.Command{
		Use:   "feed",
		Short: "Fetch the blended feed for the calling identity",
		RunE:  runFeed,
	}

	trendingCmd = &cobra.Command{
		Use:   "trending",
		Short: "Fetch the trending listing",
		RunE:  runTrending,
	}

	similarCmd = &cobra.Command{
		Use:   "similar <productId>",
		Short: "Fetch products similar to a seed product",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimilar,
	}

	interactionCmd = &cobra.Command{
		Use:   "interaction",
		Short: "Interaction log operations",
	}

	interactionRecordCmd = &cobra.Command{
		Use:   "record <productId>",
		Short: "Record one interaction against a product",
		Args:  cobra.ExactArgs(1),
		RunE:  runInteractionRecord,
	}

	dismissCmd = &cobra.Command{
		Use:   "dismiss <productId>",
		Short: "Dismiss a product from the caller's future feeds",
		Args:  cobra.ExactArgs(1),
		RunE:  runDismiss,
	}

	preferencesCmd = &cobra.Command{
		Use:   "preferences",
		Short: "Read or replace the caller's feed preferences",
	}

	preferencesGetCmd = &cobra.Command{
		Use:   "get",
		Short: "Print the caller's stored preferences",
		RunE:  runPreferencesGet,
	}

	preferencesSetCmd = &cobra.Command{
		Use:   "set <preferences.json>",
		Short: "Replace the caller's preferences from a JSON file (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreferencesSet,
	}

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Purge interactions past the retention window (offline, opens the log directly)",
		RunE:  runPurge,
	}
)

func init() {
	feedCmd.Flags().StringVar(&flagBlend, "blend", "", "blend policy (standard, trending, discovery, personalized)")
	feedCmd.Flags().IntVar(&flagLimit, "limit", 20, "page size")
	feedCmd.Flags().IntVar(&flagOffset, "offset", 0, "page offset")

	trendingCmd.Flags().IntVar(&flagLimit, "limit", 20, "page size")
	trendingCmd.Flags().IntVar(&flagTimeframe, "timeframe", 0, "trending window override in days")

	similarCmd.Flags().IntVar(&flagLimit, "limit", 20, "page size")

	interactionRecordCmd.Flags().StringVar(&flagKind, "kind", "", "interaction kind (view, click, upvote, ...)")
	interactionRecordCmd.Flags().StringVar(&flagStrategy, "strategy", "", "originating strategy")
	interactionRecordCmd.Flags().IntVar(&flagPosition, "position", -1, "feed slot the product was shown at")
	_ = interactionRecordCmd.MarkFlagRequired("kind")

	purgeCmd.Flags().StringVar(&flagDBPath, "db", "", "path of the DuckDB interaction log")
	_ = purgeCmd.MarkFlagRequired("db")

	interactionCmd.AddCommand(interactionRecordCmd)
	preferencesCmd.AddCommand(preferencesGetCmd)
	preferencesCmd.AddCommand(preferencesSetCmd)

	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(interactionCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(preferencesCmd)
	rootCmd.AddCommand(purgeCmd)
}

func pageQuery() url.Values {
	q := url.Values{}
	if flagLimit > 0 {
		q.Set("limit", strconv.Itoa(flagLimit))
	}
	if flagOffset > 0 {
		q.Set("offset", strconv.Itoa(flagOffset))
	}
	return q
}

func runFeed(cmd *cobra.Command, _ []string) error {
	q := pageQuery()
	if flagBlend != "" {
		q.Set("blend", flagBlend)
	}
	env, err := api().get(cmd.Context(), "/feed", q)
	if err != nil {
		return err
	}
	return printFeed(env)
}

func runTrending(cmd *cobra.Command, _ []string) error {
	q := pageQuery()
	if flagTimeframe > 0 {
		q.Set("timeframe", strconv.Itoa(flagTimeframe))
	}
	env, err := api().get(cmd.Context(), "/trending", q)
	if err != nil {
		return err
	}
	return printFeed(env)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	env, err := api().get(cmd.Context(), "/similar/"+url.PathEscape(args[0]), pageQuery())
	if err != nil {
		return err
	}
	return printFeed(env)
}

func runInteractionRecord(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"productId": args[0],
		"kind":      flagKind,
	}
	if flagStrategy != "" {
		body["strategy"] = flagStrategy
	}
	if flagPosition >= 0 {
		body["position"] = flagPosition
	}
	env, err := api().post(cmd.Context(), "/interaction", body)
	if err != nil {
		return err
	}
	return printJSON(env.Data)
}

func runDismiss(cmd *cobra.Command, args []string) error {
	env, err := api().post(cmd.Context(), "/dismiss", map[string]string{"productId": args[0]})
	if err != nil {
		return err
	}
	return printJSON(env.Data)
}

func runPreferencesGet(cmd *cobra.Command, _ []string) error {
	env, err := api().get(cmd.Context(), "/preferences", nil)
	if err != nil {
		return err
	}
	return printJSON(env.Data)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindValidation, "read stdin")
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "read preferences file")
	}
	return raw, nil
}

func runPreferencesSet(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return err
	}
	var prefs profile.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return apperr.Wrap(err, apperr.KindValidation, "parse preferences JSON")
	}
	env, err := api().put(cmd.Context(), "/preferences", prefs)
	if err != nil {
		return err
	}
	return printJSON(env.Data)
}

// runPurge opens the interaction log directly rather than going through the
// API: retention enforcement is an operator action that must work even when
// the server is down, and DuckDB allows a second read-write process only
// when the server is stopped.
func runPurge(cmd *cobra.Command, _ []string) error {
	db, err := database.New(&config.DatabaseConfig{Path: flagDBPath})
	if err != nil {
		return apperr.Wrap(err, apperr.KindUnavailable, "open interaction log")
	}
	defer db.Close()

	purged, err := db.PurgeExpired(cmd.Context())
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "purge expired interactions")
	}
	fmt.Printf("purged %d expired interactions\n", purged)
	return nil
}
