package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/oumiche/impact-auto-plus-sub006/internal/adapter/fsm"
	"github.com/oumiche/impact-auto-plus-sub006/internal/adapter/sqlite"
	"github.com/oumiche/impact-auto-plus-sub006/internal/app"
	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

// runWorkflow prints the transition table, optionally filtered to a
// single source status.
func runWorkflow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("workflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fromStatus := fs.String("from-status", "", "only show transitions from this status")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var from *domain.Status
	if *fromStatus != "" {
		s, err := domain.ParseStatus(*fromStatus)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		from = &s
	}

	desc := domain.DescribeWorkflow()
	for _, s := range desc.Statuses {
		if from != nil && s != *from {
			continue
		}
		next := desc.Transitions[s]
		targets := "(terminal)"
		if len(next) > 0 {
			names := make([]string, len(next))
			for i, n := range next {
				names[i] = string(n)
			}
			targets = strings.Join(names, ", ")
		}
		fmt.Fprintf(stdout, "%-24s -> %-42s stage=%-10s progress=%d%%\n",
			s, targets, domain.StageOf(s), domain.ProgressPercent(s))
	}
	return 0
}

// runStatus applies a transition directly against the configured
// database: atelieriq status [flags] <intervention-id> <target-status>.
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	actor := fs.String("actor", "", "actor recorded in the audit trail")
	comment := fs.String("comment", "", "audit comment, required with --force")
	force := fs.Bool("force", false, "apply even if the transition table forbids it")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) != 2 {
		fmt.Fprintln(stderr, "usage: atelieriq status [flags] <intervention-id> <target-status>")
		return 2
	}

	target, err := domain.ParseStatus(rest[1])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	store, err := sqlite.New(envOrDefault("DATABASE_PATH", "atelieriq.db"))
	if err != nil {
		fmt.Fprintf(stderr, "database: %v\n", err)
		return 1
	}
	defer store.Close()

	codes := app.NewCodeService(store, store)
	workflows := app.NewWorkflowService(store, fsm.New(), codes, &logPublisher{})

	iv, err := workflows.Transition(context.Background(), rest[0], target, *actor, *comment, *force)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintf(stdout, "%s: %s (stage=%s, progress=%d%%)\n",
		iv.ID, iv.Status, domain.StageOf(iv.Status), iv.Progress())
	return 0
}

// logPublisher is the EventPublisher used by one-shot CLI commands,
// which have no job queue to hand transitions to.
type logPublisher struct{}

func (p *logPublisher) Publish(ctx context.Context, rec domain.TransitionRecord, iv domain.Intervention) error {
	slog.InfoContext(ctx, "transition applied",
		"intervention_id", iv.ID,
		"from", rec.From,
		"to", rec.To,
		"forced", rec.Forced,
	)
	return nil
}
