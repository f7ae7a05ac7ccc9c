package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"weft/internal/journal"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the local job journal",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var stateFlags []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := parseStateFilters(stateFlags)
			if err != nil {
				return err
			}
			return ctx.withJournal(func(store *journal.Store) error {
				jobs, err := store.List(cmd.Context(), limit, states...)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, jobs, func(out io.Writer) error {
					if len(jobs) == 0 {
						fmt.Fprintln(out, "No jobs")
						return nil
					}
					fmt.Fprintln(out, renderJobTable(jobs, shouldColorize(out)))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringSliceVarP(&stateFlags, "state", "s", nil, "Filter by state (claimed, running, completed, failed, rejected)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum jobs to show; zero shows all")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a journaled job and the reports sent for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withJournal(func(store *journal.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				reports, err := store.Reports(cmd.Context(), id)
				if err != nil {
					return err
				}
				payload := struct {
					Job     *journal.Job      `json:"job"`
					Reports []*journal.Report `json:"reports"`
				}{Job: job, Reports: reports}
				return emit(cmd, ctx, payload, func(out io.Writer) error {
					renderJobDetail(out, job, reports, shouldColorize(out))
					return nil
				})
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed, failed, and rejected jobs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				removed, err := store.ClearFinished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished jobs\n", removed)
				return nil
			})
		},
	}
}

func parseStateFilters(values []string) ([]journal.State, error) {
	states := make([]journal.State, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		state, ok := journal.ParseState(value)
		if !ok {
			return nil, fmt.Errorf("unknown job state %q", value)
		}
		states = append(states, state)
	}
	return states, nil
}

func renderJobTable(jobs []*journal.Job, colorize bool) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Workspace,
			titleLabel(job.Operation),
			colorizeState(job.State, colorize),
			formatPercent(job.ProgressPercent),
			job.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"ID", "Workspace", "Operation", "State", "Progress", "Updated"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderJobDetail(out io.Writer, job *journal.Job, reports []*journal.Report, colorize bool) {
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Workspace:   %s\n", job.Workspace)
	fmt.Fprintf(out, "  Operation:   %s\n", titleLabel(job.Operation))
	fmt.Fprintf(out, "  State:       %s\n", colorizeState(job.State, colorize))
	fmt.Fprintf(out, "  Region:      %s\n", job.Region)
	if job.Endpoint != "" {
		fmt.Fprintf(out, "  Endpoint:    %s\n", job.Endpoint)
	}
	fmt.Fprintf(out, "  Progress:    %s", formatPercent(job.ProgressPercent))
	if job.ProgressMessage != "" {
		fmt.Fprintf(out, " (%s)", job.ProgressMessage)
	}
	fmt.Fprintln(out)
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:       %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "  Correlation: %s\n", job.CorrelationID)

	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports sent")
		return
	}
	rows := make([][]string, 0, len(reports))
	for _, report := range reports {
		delivered := yesNo(report.Error == "")
		rows = append(rows, []string{
			report.SentAt.Local().Format(time.DateTime),
			titleLabel(report.Event),
			formatPercent(report.Progress),
			report.Message,
			delivered,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Sent", "Event", "Progress", "Message", "Delivered"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}
