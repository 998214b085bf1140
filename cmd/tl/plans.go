package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/engine"
)

func planCmd() *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Manage plans"}
	plan.AddCommand(planListCmd())
	plan.AddCommand(planCreateCmd())
	plan.AddCommand(planShowCmd())
	plan.AddCommand(planImportCmd())
	plan.AddCommand(planActivateCmd())
	plan.AddCommand(planStatusCmd("complete", "Mark the plan completed", engine.Engine.CompletePlan))
	plan.AddCommand(planStatusCmd("archive", "Archive the plan", engine.Engine.ArchivePlan))
	plan.AddCommand(planStatsCmd())
	plan.AddCommand(planOverviewCmd())
	return plan
}

func printPlans(plans []domain.Plan) error {
	if viper.GetBool("json") {
		return printJSON(plans)
	}
	tw := newTable(table.Row{"ID", "Name", "Type", "Status", "Start", "End"})
	for _, p := range plans {
		tw.AppendRow(table.Row{p.ID, p.Name, p.Type, p.Status, deref(p.StartDate), deref(p.EndDate)})
	}
	tw.Render()
	return nil
}

func planListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				plans, err := e.ListPlans(ctx, status)
				if err != nil {
					return err
				}
				return printPlans(plans)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (draft, active, completed, archived)")
	return cmd
}

func planCreateCmd() *cobra.Command {
	var name, planType, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty draft plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				p, err := e.CreatePlan(ctx, engine.PlanCreateOptions{Name: name, Type: planType, Description: desc, ActorID: actorID()})
				if err != nil {
					return err
				}
				return printPlans([]domain.Plan{p})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "plan name")
	cmd.Flags().StringVar(&planType, "type", "", "plan type (default general)")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func planShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the selected plan and its phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				phases, err := e.ListPhases(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"plan": p, "phases": phases})
				}
				if err := printPlans([]domain.Plan{p}); err != nil {
					return err
				}
				return printPhases(phases)
			})
		},
	}
}

func planImportCmd() *cobra.Command {
	var builtin, activate bool
	var start string
	cmd := &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Create a plan with its phases and tasks from a YAML template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tpl *config.PlanTemplate
			switch {
			case builtin:
				tpl = config.DefaultPlanTemplate()
			case len(args) == 1:
				var err error
				if tpl, err = config.PlanFromFile(args[0]); err != nil {
					return err
				}
			default:
				return fmt.Errorf("a template file or --builtin is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Settings) error {
				p, err := e.ImportPlan(ctx, tpl, actorID())
				if err != nil {
					return err
				}
				if activate {
					if start == "" {
						start = e.Today(p)
					}
					if _, err := e.ActivatePlan(ctx, p.ID, start, actorID()); err != nil {
						return err
					}
					if p, err = e.GetPlan(ctx, p.ID); err != nil {
						return err
					}
				}
				return printPlans([]domain.Plan{p})
			})
		},
	}
	cmd.Flags().BoolVar(&builtin, "builtin", false, "import the built-in launch plan")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate right after import")
	cmd.Flags().StringVar(&start, "start-date", "", "start date for --activate (default today)")
	return cmd
}

func planActivateCmd() *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Schedule every task from a start date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				if start == "" {
					start = e.Today(p)
				}
				n, err := e.ActivatePlan(ctx, p.ID, start, actorID())
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]any{"status": "activated", "tasks_scheduled": n},
					fmt.Sprintf("Plan %d activated from %s: %d tasks scheduled", p.ID, start, n))
			})
		},
	}
	cmd.Flags().StringVar(&start, "start-date", "", "YYYY-MM-DD (default today in the plan's timezone)")
	return cmd
}

func planStatusCmd(use, short string, apply func(engine.Engine, context.Context, int64, string) (domain.Plan, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				updated, err := apply(e, ctx, p.ID, actorID())
				if err != nil {
					return err
				}
				return printPlans([]domain.Plan{updated})
			})
		},
	}
}

func planStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Task counts by status and category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				st, err := e.PlanStats(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				tw := newTable(table.Row{"Group", "Key", "Tasks"})
				for _, status := range domain.TaskStatuses {
					tw.AppendRow(table.Row{"status", status, st.ByStatus[status]})
				}
				tw.AppendSeparator()
				for _, cat := range slices.Sorted(maps.Keys(st.ByCategory)) {
					tw.AppendRow(table.Row{"category", cat, st.ByCategory[cat]})
				}
				tw.AppendFooter(table.Row{"", "total", st.TotalTasks})
				tw.Render()
				return nil
			})
		},
	}
}

func planOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "The same overview the agent reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				ov, err := e.PlanOverview(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrText(ov, ov.String())
			})
		},
	}
}

func phaseCmd() *cobra.Command {
	phase := &cobra.Command{Use: "phase", Short: "Plan phases"}
	phase.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the plan's phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				phases, err := e.ListPhases(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(phases)
				}
				return printPhases(phases)
			})
		},
	})
	return phase
}

func printPhases(phases []domain.Phase) error {
	tw := newTable(table.Row{"#", "Name", "Status", "Start", "End"})
	for _, ph := range phases {
		tw.AppendRow(table.Row{ph.PhaseNumber, ph.Name, ph.Status, deref(ph.StartDate), deref(ph.EndDate)})
	}
	tw.Render()
	return nil
}
