package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/domain"
	"taskline/internal/engine"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Inspect and update tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskSkipCmd())
	task.AddCommand(taskRescheduleCmd())
	task.AddCommand(taskNoteCmd())
	return task
}

func parseTaskNumber(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid task number %q", arg)
	}
	return n, nil
}

func printTasks(tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := newTable(table.Row{"#", "Date", "Status", "Pri", "Min", "Category", "Title"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.TaskNumber, deref(t.ScheduledDate), t.Status, t.Priority, t.EstimatedMinutes, t.Category, t.Title})
	}
	tw.Render()
	return nil
}

func taskListCmd() *cobra.Command {
	var date, status string
	var limit int
	var today bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of the plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				if today {
					date = e.Today(p)
				}
				tasks, err := e.ListTasks(ctx, engine.TaskListOptions{PlanID: p.ID, Date: date, Status: status, Limit: limit})
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only tasks scheduled on YYYY-MM-DD")
	cmd.Flags().BoolVar(&today, "today", false, "only tasks scheduled today")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows (0 = all)")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <number>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseTaskNumber(args[0])
			if err != nil {
				return err
			}
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				t, err := e.GetTask(ctx, p.ID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("Task %d: %s\n", t.TaskNumber, t.Title)
				fmt.Printf("  status:    %s\n", t.Status)
				fmt.Printf("  scheduled: %s (day %d)\n", deref(t.ScheduledDate), t.DayOffset)
				fmt.Printf("  category:  %s, priority %d, ~%d min, %s\n", t.Category, t.Priority, t.EstimatedMinutes, t.ExecutionType)
				if t.Description != "" {
					fmt.Printf("  %s\n", t.Description)
				}
				if t.Notes != "" {
					fmt.Printf("  notes:\n    %s\n", strings.ReplaceAll(t.Notes, "\n", "\n    "))
				}
				return nil
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var status, notes, date string
	cmd := &cobra.Command{
		Use:   "update <number>",
		Short: "Apply a partial update to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseTaskNumber(args[0])
			if err != nil {
				return err
			}
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
					PlanID:        p.ID,
					TaskNumber:    n,
					Status:        optionalString(status),
					Notes:         optionalString(notes),
					ScheduledDate: optionalString(date),
					ActorID:       actorID(),
				})
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&notes, "notes", "", "note to append")
	cmd.Flags().StringVar(&date, "date", "", "new scheduled date (YYYY-MM-DD)")
	return cmd
}

// taskActionCmd runs one of the engine's conversational operations and
// prints its confirmation line.
func taskActionCmd(use, short string, args cobra.PositionalArgs, run func(context.Context, engine.Engine, domain.Plan, int, []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			n, err := parseTaskNumber(argv[0])
			if err != nil {
				return err
			}
			return withPlan(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Plan) error {
				msg, err := run(ctx, e, p, n, argv[1:])
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]any{"task_number": n, "result": msg}, msg)
			})
		},
	}
}

func taskDoneCmd() *cobra.Command {
	var note string
	cmd := taskActionCmd("done <number>", "Mark a task completed", cobra.ExactArgs(1),
		func(ctx context.Context, e engine.Engine, p domain.Plan, n int, _ []string) (string, error) {
			return e.MarkTaskComplete(ctx, p.ID, n, note, actorID())
		})
	cmd.Flags().StringVar(&note, "note", "", "completion note")
	return cmd
}

func taskSkipCmd() *cobra.Command {
	var reason string
	cmd := taskActionCmd("skip <number>", "Skip a task", cobra.ExactArgs(1),
		func(ctx context.Context, e engine.Engine, p domain.Plan, n int, _ []string) (string, error) {
			return e.SkipTask(ctx, p.ID, n, reason, actorID())
		})
	cmd.Flags().StringVar(&reason, "reason", "", "why it was skipped")
	return cmd
}

func taskRescheduleCmd() *cobra.Command {
	var reason string
	cmd := taskActionCmd("reschedule <number> <YYYY-MM-DD>", "Move a task to another date", cobra.ExactArgs(2),
		func(ctx context.Context, e engine.Engine, p domain.Plan, n int, rest []string) (string, error) {
			return e.RescheduleTask(ctx, p.ID, n, rest[0], reason, actorID())
		})
	cmd.Flags().StringVar(&reason, "reason", "", "why it moved")
	return cmd
}

func taskNoteCmd() *cobra.Command {
	return taskActionCmd("note <number> <text...>", "Append a note to a task", cobra.MinimumNArgs(2),
		func(ctx context.Context, e engine.Engine, p domain.Plan, n int, rest []string) (string, error) {
			return e.AddNoteToTask(ctx, p.ID, n, strings.Join(rest, " "), actorID())
		})
}
