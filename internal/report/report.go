// Package report renders scheduler results and planning views for the
// terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/planning"
	"github.com/adanyl0v/go-planner/internal/scheduler"
)

var (
	bold      = color.New(color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
	green     = color.New(color.FgGreen).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	boldCyan  = color.New(color.Bold, color.FgCyan).SprintFunc()
	boldGreen = color.New(color.Bold, color.FgGreen).SprintFunc()
)

func priority(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return red(string(p))
	case models.PriorityMed:
		return yellow(string(p))
	default:
		return dim(string(p))
	}
}

func title(titles map[string]string, id string) string {
	if t, ok := titles[id]; ok && t != "" {
		return t
	}
	return dim(id)
}

// PrintSchedule writes the placements and skips of a run. titles maps
// task ids to titles and may be nil.
func PrintSchedule(w io.Writer, res *scheduler.Result, titles map[string]string) {
	mode := "applied"
	if res.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s %s..%s %s %s\n\n",
		boldCyan("Schedule"),
		res.StartDate.Format(models.DateLayout),
		res.EndDate.Format(models.DateLayout),
		dim(string(res.Strategy)),
		dim("("+mode+")"))

	fmt.Fprintf(w, "  %s %d\n", boldGreen("SCHEDULED"), len(res.Scheduled))
	for _, p := range res.Scheduled {
		span := p.Date.Format(models.DateLayout)
		if !p.LastDay.Equal(p.Date) {
			span += ".." + p.LastDay.Format(models.DateLayout)
		}
		fmt.Fprintf(w, "    %s %s %s %s\n",
			green("✓"), span, title(titles, p.TaskID), dim(fmt.Sprintf("%gh", p.Hours)))
	}

	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "\n  %s %d\n", bold(yellow("SKIPPED")), len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(w, "    %s %s %s\n", yellow("–"), title(titles, s.TaskID), dim(string(s.Reason)))
		}
	}
}

// PrintPlan writes one line per day followed by the unscheduled lane, if
// the view carries one.
func PrintPlan(w io.Writer, view *planning.View) {
	fmt.Fprintf(w, "%s %s..%s\n\n",
		boldCyan("Plan"),
		view.From.Format(models.DateLayout),
		view.To.Format(models.DateLayout))

	for _, d := range view.Days {
		fmt.Fprintf(w, "  %s %s\n", bold(d.Date.Format("Mon 02 Jan")), dim(fmt.Sprintf("(%d)", len(d.Tasks))))
		for _, t := range d.Tasks {
			fmt.Fprintf(w, "    %s %s %s\n", priority(t.Priority), t.Title, dim(string(t.Status)))
		}
	}

	if view.Unscheduled != nil {
		fmt.Fprintf(w, "\n  %s %s\n", bold("Unscheduled"), dim(fmt.Sprintf("(%d)", len(view.Unscheduled))))
		for _, t := range view.Unscheduled {
			fmt.Fprintf(w, "    %s %s\n", priority(t.Priority), t.Title)
		}
	}
}

// Accepted and Rejected label one-line command outcomes.
func Accepted(label string) string { return boldGreen(label) }
func Rejected(label string) string { return bold(red(label)) }

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
