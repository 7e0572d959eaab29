package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"seasonstay/internal/catalog"
	"seasonstay/internal/config"
	"seasonstay/internal/db"
	"seasonstay/internal/geocoding"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:          "tools",
		Short:        "Maintenance commands for the SeasonStay catalog",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: DATABASE_PATH or data/seasonstay.db)")

	root.AddCommand(seedCmd(), geocodeCmd(), reverseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the demo listings into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path := cfg.Database.Path
			if dbPath != "" {
				path = dbPath
			}
			database, err := db.New(path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			n, err := catalog.SeedStore(cmd.Context(), database)
			if err != nil {
				return err
			}
			total, _ := database.CountListings(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d listings (total: %d) into %s\n", n, total, path)
			return nil
		},
	}
}

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <query>",
		Short: "Look up a place the way the search box does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := places()
			if err != nil {
				return err
			}
			suggestions, err := svc.GeocodeAddress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, suggestions)
		},
	}
}

func reverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <lat> <lon>",
		Short: "Resolve a coordinate to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[1])
			}
			svc, err := places()
			if err != nil {
				return err
			}
			details, err := svc.ReverseGeocode(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			return printJSON(cmd, details)
		},
	}
}

func places() (*geocoding.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return geocoding.FromConfig(cfg.Geocoding, config.NewLogger(cfg.Logging)), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
