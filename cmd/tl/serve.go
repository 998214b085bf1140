package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskline/internal/app"
	"taskline/internal/schedule"
	"taskline/internal/server"
)

func serveCmd() *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the SMS webhook, the Telegram poller and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, logger, err := loadSettings()
			if err != nil {
				return err
			}
			defer logger.Sync()
			app.EnsureAdminKey(s, logger)
			conn, err := openDB(s)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := app.Build(ctx, conn, s, logger, app.Options{})
			if err != nil {
				return err
			}
			if s.SeedOnStart {
				if _, _, err := app.SeedIfEmpty(ctx, svc.Engine, "system", logger); err != nil {
					return err
				}
			}
			handler, err := server.New(server.Config{
				Engine:          svc.Engine,
				Digests:         svc.Notify,
				Inbound:         svc.Inbound,
				DefaultPlanID:   s.DefaultPlanID,
				Auth:            server.AuthConfig{AdminAPIKey: s.AdminAPIKey, JWTSecret: s.JWTSecret, Logger: logger.Named("auth")},
				Twilio:          server.TwilioWebhookConfig{AuthToken: s.TwilioAuthToken, PublicURL: s.PublicURL},
				AgentConfigured: s.AnthropicAPIKey != "",
				Logger:          logger.Named("http"),
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			srv := &http.Server{Addr: s.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			g.Go(func() error {
				logger.Info("serving", zap.String("addr", s.Addr), zap.String("docs", "/admin/docs"), zap.String("channel", s.Channel))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if !noScheduler {
				sched, err := schedule.New(schedule.Config{
					Location:      s.Location(),
					DailyHour:     s.DailySendHour,
					DailyMinute:   s.DailySendMinute,
					WeeklyDay:     s.WeeklyReviewDay,
					WeeklyHour:    s.WeeklyReviewHour,
					DefaultPlanID: s.DefaultPlanID,
					Plans:         svc.Engine,
					Digests:       svc.Notify,
					Logger:        logger,
				})
				if err != nil {
					return err
				}
				g.Go(func() error { return sched.Start(gctx) })
			}
			if svc.Telegram != nil {
				g.Go(func() error { return svc.Telegram.Start(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the daily and weekly jobs")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}
