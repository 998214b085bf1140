package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	"taskline/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Taskline CLI",
	Long: `Taskline turns a plan of dated tasks into a daily text conversation.
- Plan: a named schedule of tasks grouped into weekly phases; activate it with a start date.
- Task: numbered within its plan, scheduled at start date + day offset.
- Digest: the morning message listing today's tasks; the weekly review summarizes progress.
- Chat: replies like "done with 3" or "push 4 to friday" are interpreted by the agent and applied.
- Event log: every lifecycle change, view with 'tl log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML settings file")
	pf.String("database-path", db.DefaultPath, "SQLite database file")
	pf.Int64("plan", 0, "plan id (defaults to the active plan, then default_plan_id)")
	pf.Bool("json", false, "output JSON")
	pf.String("actor-id", "local-user", "actor recorded in the event log")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("database_path", pf.Lookup("database-path"))
	_ = viper.BindPFlag("plan", pf.Lookup("plan"))
	_ = viper.BindPFlag("json", pf.Lookup("json"))
	_ = viper.BindPFlag("actor-id", pf.Lookup("actor-id"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(conversationsCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(settingsCmd())
}

func loadSettings() (*config.Settings, *zap.Logger, error) {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger, err := telemetry.NewLogger(s.LogLevel, s.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return s, logger, nil
}

func openDB(s *config.Settings) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Path: s.DatabasePath})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// withServices wires the full object graph. Offline skips the outbound
// channel, for commands that never send.
func withServices(ctx context.Context, offline bool, fn func(context.Context, *app.Services) error) error {
	s, logger, err := loadSettings()
	if err != nil {
		return err
	}
	defer logger.Sync()
	conn, err := openDB(s)
	if err != nil {
		return err
	}
	defer conn.Close()
	svc, err := app.Build(ctx, conn, s, logger, app.Options{ActorID: viper.GetString("actor-id"), Offline: offline})
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, *config.Settings) error) error {
	s, logger, err := loadSettings()
	if err != nil {
		return err
	}
	defer logger.Sync()
	conn, err := openDB(s)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, engine.New(conn, s.Location()), s)
}

// withPlan resolves --plan (or the current plan) before calling fn.
func withPlan(ctx context.Context, fn func(context.Context, engine.Engine, domain.Plan) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine, s *config.Settings) error {
		p, err := app.ResolvePlan(ctx, e, viper.GetInt64("plan"), s.DefaultPlanID)
		if err != nil {
			return err
		}
		return fn(ctx, e, p)
	})
}

func actorID() string {
	return viper.GetString("actor-id")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrText(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	if interactive() {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateHeader = false
	}
	tw.AppendHeader(header)
	return tw
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
