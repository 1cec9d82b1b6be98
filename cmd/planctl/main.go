package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/go-planner/internal/app"
	"github.com/adanyl0v/go-planner/internal/graph"
	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/planning"
	"github.com/adanyl0v/go-planner/internal/report"
	"github.com/adanyl0v/go-planner/internal/scheduler"
)

var (
	flagWorkspace           string
	flagJSON                bool
	flagFrom                string
	flagTo                  string
	flagStrategy            string
	flagDryRun              bool
	flagAllowOverallocation bool
	flagTask                string
	flagDependsOn           string
	flagDate                string
	flagMonth               bool
	flagUnscheduled         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "planctl",
		Short:        "Operate the planner from the command line",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(checkEdgeCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withServices reads the env, connects to postgres and runs fn with the
// built services. Logs go to stderr so stdout stays clean for output.
func withServices(fn func(ctx context.Context, s *app.Services) error) error {
	a := app.New()
	a.InitDefaultLogger()
	a.MustReadEnv()
	a.MustInitApplicationLogger(os.Stderr)

	a.MustConnectPostgres()
	defer a.DisconnectPostgres()

	return fn(context.Background(), a.MustBuildServices())
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Auto-schedule the unscheduled tasks of a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := models.ParseDay(flagFrom)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := models.ParseDay(flagTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			strategy, err := scheduler.ParseStrategy(flagStrategy)
			if err != nil {
				return err
			}

			return withServices(func(ctx context.Context, s *app.Services) error {
				res, err := s.Engine.AutoSchedule(ctx, scheduler.Request{
					WorkspaceID:         flagWorkspace,
					StartDate:           from,
					EndDate:             to,
					Strategy:            strategy,
					AllowOverallocation: flagAllowOverallocation,
					DryRun:              flagDryRun,
				})
				if err != nil {
					return err
				}
				if flagJSON {
					return report.PrintJSON(os.Stdout, res)
				}

				ids := make([]string, 0, len(res.Scheduled)+len(res.Skipped))
				for _, p := range res.Scheduled {
					ids = append(ids, p.TaskID)
				}
				for _, sk := range res.Skipped {
					ids = append(ids, sk.TaskID)
				}
				tasks, err := s.Tasks.GetByIDs(ctx, flagWorkspace, ids)
				if err != nil {
					return err
				}
				titles := make(map[string]string, len(tasks))
				for _, t := range tasks {
					titles[t.ID] = t.Title
				}

				report.PrintSchedule(os.Stdout, res, titles)
				return nil
			})
		},
	}

	today := models.Day(time.Now())
	cmd.Flags().StringVar(&flagWorkspace, "workspace", "", "Workspace id")
	cmd.Flags().StringVar(&flagFrom, "from", today.Format(models.DateLayout), "First day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flagTo, "to", today.AddDate(0, 0, 13).Format(models.DateLayout), "Last day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flagStrategy, "strategy", string(scheduler.Greedy), "greedy or balanced")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compute placements without writing them")
	cmd.Flags().BoolVar(&flagAllowOverallocation, "allow-overallocation", false, "Place tasks even when capacity is exhausted")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func checkEdgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-edge",
		Short: "Check whether a dependency could be added without creating a cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, s *app.Services) error {
				edges, err := s.Dependencies.EdgesForWorkspace(ctx, flagWorkspace)
				if err != nil {
					return err
				}

				g := graph.FromDependencies(edges, graph.WithMaxDepth(s.MaxChainDepth))
				err = g.ValidateNewEdge(flagTask, flagDependsOn)
				if err != nil {
					fmt.Fprintf(os.Stdout, "%s %s\n", report.Rejected(graph.Code(err)), err)
					return err
				}
				fmt.Fprintf(os.Stdout, "%s %s depends on %s\n", report.Accepted("OK"), flagTask, flagDependsOn)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flagWorkspace, "workspace", "", "Workspace id")
	cmd.Flags().StringVar(&flagTask, "task", "", "Dependent task id")
	cmd.Flags().StringVar(&flagDependsOn, "depends-on", "", "Prerequisite task id")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("depends-on")
	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the week or month plan of a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor := models.Day(time.Now())
			if flagDate != "" {
				var err error
				anchor, err = models.ParseDay(flagDate)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}

			bounds, compose := planning.WeekBounds, planning.Week
			if flagMonth {
				bounds, compose = planning.MonthBounds, planning.Month
			}

			return withServices(func(ctx context.Context, s *app.Services) error {
				from, to := bounds(anchor)
				tasks, err := s.Tasks.ListTasksStartingBetween(ctx, flagWorkspace, from, to, flagUnscheduled)
				if err != nil {
					return err
				}

				view := compose(anchor, tasks, planning.Options{IncludeUnscheduled: flagUnscheduled})
				if flagJSON {
					return report.PrintJSON(os.Stdout, view)
				}
				report.PrintPlan(os.Stdout, view)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flagWorkspace, "workspace", "", "Workspace id")
	cmd.Flags().StringVar(&flagDate, "date", "", "Any day inside the period (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&flagMonth, "month", false, "Show the month instead of the week")
	cmd.Flags().BoolVar(&flagUnscheduled, "unscheduled", false, "Include the unscheduled lane")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, s *app.Services) error {
				n, err := s.Sessions.DeleteExpiredSessions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s %d expired sessions\n", report.Accepted("Deleted"), n)
				return nil
			})
		},
	})
	return cmd
}
