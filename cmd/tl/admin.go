package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/repo"
	"taskline/internal/server"
)

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events (all plans unless --plan is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				evs, err := e.Repo.ListEvents(ctx, viper.GetInt64("plan"), n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evs)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range evs {
					payload, _ := json.Marshal(ev.Payload)
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, entityLabel(ev), ev.ActorID, string(payload)})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	logc.AddCommand(tail)
	return logc
}

func entityLabel(ev domain.Event) string {
	if ev.EntityID == nil {
		return ev.EntityKind
	}
	return fmt.Sprintf("%s:%d", ev.EntityKind, *ev.EntityID)
}

func conversationsCmd() *cobra.Command {
	var limit int
	var direction string
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Show the message audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				rows, err := e.Repo.ListConversations(ctx, repo.ConversationFilters{PlanID: viper.GetInt64("plan"), Direction: direction, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := newTable(table.Row{"ID", "At", "Dir", "Channel", "Content", "Actions"})
				for _, c := range rows {
					tw.AppendRow(table.Row{c.ID, c.CreatedAt, c.Direction, c.Channel, c.Content, deref(c.ActionsJSON)})
				}
				tw.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: 60}, {Number: 6, WidthMax: 40}})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	cmd.Flags().StringVar(&direction, "direction", "", "inbound or outbound")
	return cmd
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage admin API keys"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a key; it is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				secret := "tlk_" + uuid.NewString()
				key := domain.APIKey{ID: uuid.NewString(), Name: name, KeyHash: repo.HashAPIKey(secret)}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSONOrText(map[string]string{"id": key.ID, "name": name, "key": secret},
					fmt.Sprintf("id:  %s\nkey: %s\nStore the key now; it cannot be shown again.", key.ID, secret))
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")

	list := &cobra.Command{
		Use:   "list",
		Short: "List keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				keys, err := e.Repo.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				if err := e.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				return printJSONOrText(map[string]string{"deleted": args[0]}, "deleted "+args[0])
			})
		},
	}

	apikey.AddCommand(create, list, del)
	return apikey
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed admin JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := loadSettings()
			if err != nil {
				return err
			}
			tok, err := server.IssueToken(s.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			return printJSONOrText(map[string]string{"token": tok}, tok)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "actor recorded for requests made with the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 = no expiry)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func settingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the key/value settings stored in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				kv, err := e.Repo.ListSettings(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(kv)
				}
				tw := newTable(table.Row{"Key", "Value"})
				for _, k := range slices.Sorted(maps.Keys(kv)) {
					tw.AppendRow(table.Row{k, kv[k]})
				}
				tw.Render()
				return nil
			})
		},
	}
}
