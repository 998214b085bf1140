package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
)

func sendCmd() *cobra.Command {
	send := &cobra.Command{Use: "send", Short: "Send digests now through the configured channel"}

	var date string
	today := &cobra.Command{
		Use:   "today",
		Short: "Send the daily task digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), false, func(ctx context.Context, svc *app.Services) error {
				p, err := app.ResolvePlan(ctx, svc.Engine, viper.GetInt64("plan"), svc.Settings.DefaultPlanID)
				if err != nil {
					return err
				}
				detail, err := svc.Notify.SendDailyTasks(ctx, p.ID, date)
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]string{"status": "sent", "detail": detail}, detail)
			})
		},
	}
	today.Flags().StringVar(&date, "date", "", "digest date YYYY-MM-DD (default today in the plan's timezone)")

	review := &cobra.Command{
		Use:   "review",
		Short: "Send the weekly review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), false, func(ctx context.Context, svc *app.Services) error {
				p, err := app.ResolvePlan(ctx, svc.Engine, viper.GetInt64("plan"), svc.Settings.DefaultPlanID)
				if err != nil {
					return err
				}
				detail, err := svc.Notify.SendWeeklyReview(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]string{"status": "sent", "detail": detail}, detail)
			})
		},
	}

	send.AddCommand(today, review)
	return send
}
