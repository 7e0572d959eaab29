package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"seasonstay/internal/config"
	"seasonstay/internal/db"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/scraper"
)

func main() {
	var (
		dbPath    string
		pagesFile string
		pageURL   string
		partner   string
		workers   int
		delay     time.Duration
		headless  bool
		settle    time.Duration
		noGeocode bool
	)

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Import partner listings from their schema.org markup",
		Long: `Fetches partner pages, extracts the accommodations described in their
JSON-LD, geocodes the ones without coordinates and saves them to the
catalog database. The running server picks them up on its next reload.

Examples:
  scraper --pages partners.yaml
  scraper --partner p1 --url https://partner.example.org/saisonniers`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			pages, err := pagesFromFlags(pagesFile, partner, pageURL)
			if err != nil {
				return err
			}

			if dbPath == "" {
				dbPath = cfg.Database.Path
			}
			database, err := db.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			opts := []scraper.Option{}
			if !noGeocode {
				opts = append(opts, scraper.WithGeocoder(geocoding.FromConfig(cfg.Geocoding, logger)))
			}
			for _, p := range pages {
				if p.Browser {
					browser := scraper.NewBrowser(headless, settle, logger)
					if err := browser.Start(); err != nil {
						return err
					}
					defer browser.Stop()
					opts = append(opts, scraper.WithBrowser(browser))
					break
				}
			}

			importer := scraper.New(database, scraper.NewHTTPFetcher(nil),
				scraper.Config{Workers: workers, DelayBetween: delay}, logger, opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := importer.Run(ctx, pages)
			if errors.Is(err, context.Canceled) {
				logger.Warn().Int("saved", res.Saved).Msg("import cancelled")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d listings from %d pages (%d failed, %d geocoded)\n",
				res.Saved, res.Found, res.Pages, res.Failed, res.Geocoded)
			return nil
		},
	}

	defaults := scraper.DefaultConfig()
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default: DATABASE_PATH or data/seasonstay.db)")
	cmd.Flags().StringVar(&pagesFile, "pages", "", "YAML file listing partner pages")
	cmd.Flags().StringVar(&pageURL, "url", "", "single page to import")
	cmd.Flags().StringVar(&partner, "partner", "", "partner id of --url (p1, p2, p3)")
	cmd.Flags().IntVar(&workers, "workers", defaults.Workers, "pages fetched concurrently")
	cmd.Flags().DurationVar(&delay, "delay", defaults.DelayBetween, "pause after each page")
	cmd.Flags().BoolVar(&headless, "headless", true, "run Chrome headless for browser pages")
	cmd.Flags().DurationVar(&settle, "settle", 5*time.Second, "time given to page scripts before extraction")
	cmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding of listings without coordinates")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func pagesFromFlags(file, partner, pageURL string) ([]scraper.Page, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read pages file: %w", err)
		}
		return scraper.LoadPages(data)
	case pageURL != "" && partner != "":
		return []scraper.Page{{Partner: partner, URL: pageURL}}, nil
	default:
		return nil, errors.New("either --pages or both --partner and --url are required")
	}
}
