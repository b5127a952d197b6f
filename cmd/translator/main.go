// translator serves cached machine translation over HTTP and offers
// maintenance commands for the translation store.
//
// Usage:
//
//	translator serve
//	translator translate --from en --to fr "Hello world"
//	translator cleanup --days 90 --min-usage 5
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/api"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/database"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/middleware"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/services"
)

// Version is set via -ldflags during build
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "translator",
		Short: "Cached translation service",
		Long: `translator sits between applications and a machine translation backend.

Translations are served from a memory cache, an optional Redis tier and a
SQL store before the backend is called. Backend calls are spaced, batched
and retried on rate limits, and every failure degrades to the original text.

Commands:
  serve       Run the HTTP API
  translate   Translate texts from the command line
  migrate     Create or upgrade the translation store schema
  cleanup     Remove stale, rarely used translations
  stats       Print store statistics
  languages   List supported language codes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.AddCommand(
		newServeCmd(),
		newTranslateCmd(),
		newMigrateCmd(),
		newCleanupCmd(),
		newStatsCmd(),
		newLanguagesCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var retention *services.RetentionWorker
	if a.db != nil {
		metrics.UpdateTranslationMetrics(a.db)
		retention = services.NewRetentionWorker(a.engine, a.db, a.cfg.RetentionInterval, a.cfg.RetentionDays, a.cfg.RetentionMinUsage)
		go retention.Start(ctx)
	}

	auth := middleware.NewAdminAuth(a.cfg.AdminKey)
	if !auth.Enabled() {
		log.Println("Warning: ADMIN_KEY not set, admin endpoints are unprotected")
	}

	router := api.NewRouter(api.Deps{
		Engine:      a.engine,
		Live:        a.live,
		Retention:   retention,
		Auth:        auth,
		ClientLimit: middleware.NewClientRateLimiter(a.cfg.ClientRateLimit, a.cfg.ClientRateBurst),
		CORSOrigins: a.cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Translation service listening on :%s (backend: %s)", a.cfg.Port, a.engine.BackendName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	log.Println("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

func newTranslateCmd() *cobra.Command {
	var from, to, pageKey string
	cmd := &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Translate texts from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				out, err := a.engine.TranslateOne(ctx, args[0], from, to, services.Location{})
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			}
			out, err := a.engine.TranslateBatch(ctx, args, from, to, pageKey)
			if err != nil {
				return err
			}
			for _, line := range out {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "en", "Source language code")
	cmd.Flags().StringVar(&to, "to", "", "Target language code")
	cmd.Flags().StringVar(&pageKey, "page", "", "Page key to store batch translations under")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the translation store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.db == nil {
				return services.ErrStoreUnavailable
			}
			// database.Open already migrated; rerunning the data step is idempotent
			if err := database.RunMigrations(a.db); err != nil {
				return err
			}
			log.Println("✓ Migrations applied")
			return nil
		},
	}
}

func newCleanupCmd() *cobra.Command {
	var days, minUsage int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale, rarely used translations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if !cmd.Flags().Changed("days") {
				days = a.cfg.RetentionDays
			}
			if !cmd.Flags().Changed("min-usage") {
				minUsage = a.cfg.RetentionMinUsage
			}
			deleted, err := a.engine.CleanupOldTranslations(cmd.Context(), days, minUsage)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d translations\n", deleted)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Remove translations unused for this many days")
	cmd.Flags().IntVar(&minUsage, "min-usage", 5, "Only remove translations used fewer times than this")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.engine.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported language codes",
		Run: func(cmd *cobra.Command, args []string) {
			langs := services.SupportedLanguages()
			codes := make([]string, 0, len(langs))
			for code := range langs {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				fmt.Printf("%-6s %s\n", code, langs[code])
			}
			fmt.Println(strings.Repeat("-", 24))
			fmt.Printf("%d languages\n", len(codes))
		},
	}
}
