package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thedurancode/aitickets/internal/api"
	"github.com/Thedurancode/aitickets/internal/config"
	"github.com/Thedurancode/aitickets/internal/logging"
	"github.com/Thedurancode/aitickets/internal/pipeline"
	"github.com/Thedurancode/aitickets/internal/store"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "highlightd",
	Short: "highlightd - event highlight reel generator",
	Long:  "Turns attendee photos and videos of an event into a single highlight reel.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose, cmd.Name() == "serve")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger API and background worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)
		srvLog := logging.WithComponent("server")

		a, err := newApp(ctx, cfg, log.Logger, true)
		if err != nil {
			return err
		}
		defer a.Close()

		worker := pipeline.NewWorker(ctx, log.Logger, a.pipeline, cfg.Concurrency)

		go func() {
			if err := a.hub.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
				srvLog.Error().Err(err).Msg("websocket hub stopped")
			}
		}()

		router := api.NewRouter(log.Logger, worker, api.Options{
			Server:     cfg.Server,
			Subscriber: a.hub,
		})
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			srvLog.Info().Str("addr", srv.Addr).Msg("listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
		}

		srvLog.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srvLog.Warn().Err(err).Msg("http shutdown incomplete")
		}
		if err := worker.Shutdown(shutdownCtx); err != nil {
			srvLog.Warn().Err(err).Msg("runs still active at shutdown")
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [event id]",
	Short: "Generate one event's highlight reel and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || eventID <= 0 {
			return fmt.Errorf("invalid event id %q", args[0])
		}

		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		a, err := newApp(ctx, cfg, log.Logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.Run(ctx, eventID)
		if err != nil {
			log.Error().Err(err).Int64("event_id", eventID).Msg("highlight generation failed")
			return err
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the events and event_photos tables if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		pool, err := store.NewPgxPool(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := store.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("schema up to date")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *config.FromContext(cmd.Context())
		cfg.Vision.APIKey = redact(cfg.Vision.APIKey)
		cfg.Database.URL = redact(cfg.Database.URL)
		cfg.AMQP.URL = redact(cfg.AMQP.URL)

		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err == nil {
			return fmt.Errorf("%s already exists", args[0])
		}
		if err := config.Default().Save(args[0]); err != nil {
			return err
		}
		log.Info().Str("path", args[0]).Msg("config written")
		return nil
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
