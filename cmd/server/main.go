package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"idea-research/internal/config"
	"idea-research/internal/models"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idea-research",
		Short: "Business idea research service",
		Long: `idea-research runs multi-phase research on business ideas.

Research tasks are queued and processed one at a time by a background worker;
progress can be polled over HTTP or streamed over a websocket.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), runCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the research worker and the maintenance scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log)
	gin.SetMode(cfg.Server.GinMode)

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := a.newServer()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.worker.Run(ctx)
	})

	a.maintenance.Start()
	defer a.maintenance.Stop()

	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return shutdown(server, shutdownTimeout)
	})

	return g.Wait()
}

func runCmd() *cobra.Command {
	var (
		approach    string
		title       string
		description string
		notifyEmail string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one research strategy in the foreground and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			a, err := buildApp(cfg, newLogger(cfg.Log))
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			strategy, runErr := a.research.RunSync(ctx, models.StartStrategyRequest{
				IdeaTitle:       title,
				IdeaDescription: description,
				Approach:        models.Approach(approach),
				NotifyEmail:     notifyEmail,
			})
			if strategy != nil {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(strategy); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&approach, "approach", "a", string(models.ApproachQuickValidation), "Research approach (QuickValidation, MarketDeepDive, LaunchStrategy)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Idea title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Idea description")
	cmd.Flags().StringVar(&notifyEmail, "notify-email", "", "Email the PDF report to this address")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}
