// Package run orchestrates a full analysis run: enumerate, discover
// categories (auto mode), dispatch classification, reduce to a
// placement plan, execute the plan and summarize.
package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/pixelsense/pixelsense/internal/classify"
	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/organize"
	"github.com/pixelsense/pixelsense/internal/providers"
	"github.com/pixelsense/pixelsense/internal/report"
)

// Options holds everything a run needs, resolved from the CLI surface.
type Options struct {
	RunID          string
	Folder         string
	Query          string
	AutoCategorize bool
	Output         string
	Recursive      bool
	Parallel       int
	SampleSize     int
	Verbose        bool
	ResultsFile    string

	Provider    providers.Provider
	Model       string
	Temperature float64

	Retry classify.RetryConfig
}

// Execute performs one run. It returns nil when the run completed,
// even with per-item failures; an error return means a fatal condition
// (no images, discovery failure, authentication failure) and a nonzero
// exit.
func Execute(ctx context.Context, opts Options) error {
	slog.Info("Searching for images", "folder", opts.Folder, "recursive", opts.Recursive)
	refs, err := images.Find(opts.Folder, opts.Recursive)
	if err != nil {
		return err
	}
	slog.Info("Found images", "count", len(refs))

	classifier := classify.NewClassifier(opts.Provider, opts.Model, opts.Temperature)
	stats := organize.NewRunStats(len(refs))

	if opts.AutoCategorize {
		return executeAutoCategorize(ctx, opts, classifier, refs, stats)
	}
	return executeQuery(ctx, opts, classifier, refs, stats)
}

func executeQuery(ctx context.Context, opts Options, classifier *classify.Classifier, refs []images.ImageRef, stats *organize.RunStats) error {
	slog.Info("Analyzing images for query", "query", opts.Query, "parallel", opts.Parallel)

	outcomes, err := collect(ctx, opts, refs, func(callCtx context.Context, ref images.ImageRef) (classify.QueryJudgment, error) {
		return classifier.MatchQuery(callCtx, ref, opts.Query)
	})
	if err != nil {
		return err
	}

	plan := organize.ReduceQuery(outcomes, opts.Output, stats)
	if opts.Output != "" && len(plan.Entries) > 0 {
		slog.Info("Copying matching images", "count", len(plan.Entries), "output", opts.Output)
		organize.Apply(plan, stats)
	}

	if opts.ResultsFile != "" {
		if err := report.Write(opts.ResultsFile, report.QueryRows(opts.RunID, outcomes, plan)); err != nil {
			slog.Warn("Failed to write results file", "path", opts.ResultsFile, "error", err)
		} else {
			slog.Info("Wrote results file", "path", opts.ResultsFile)
		}
	}

	printQuerySummary(stats.Snapshot())
	if opts.Verbose {
		printQueryDetails(outcomes)
	}
	return nil
}

func executeAutoCategorize(ctx context.Context, opts Options, classifier *classify.Classifier, refs []images.ImageRef, stats *organize.RunStats) error {
	tax, err := classify.Discover(ctx, classifier, refs, opts.SampleSize, opts.Retry)
	if err != nil {
		return fmt.Errorf("taxonomy discovery failed: %w", err)
	}
	printCategoryTree(tax)

	if opts.Output != "" {
		path, err := classify.WriteManifest(opts.Output, opts.RunID, opts.Provider.Name(), opts.Model, opts.SampleSize, tax)
		if err != nil {
			return err
		}
		slog.Info("Saved discovered categories", "path", path)
	}

	slog.Info("Categorizing images", "count", len(refs), "parallel", opts.Parallel)
	outcomes, err := collect(ctx, opts, refs, func(callCtx context.Context, ref images.ImageRef) (classify.CategoryJudgment, error) {
		return classifier.Categorize(callCtx, ref, tax)
	})
	if err != nil {
		return err
	}

	plan := organize.ReduceCategories(outcomes, opts.Output, stats)
	if opts.Output != "" {
		slog.Info("Creating category folders and copying images", "output", opts.Output)
		organize.Apply(plan, stats)
	}

	if opts.ResultsFile != "" {
		if err := report.Write(opts.ResultsFile, report.CategoryRows(opts.RunID, outcomes, plan)); err != nil {
			slog.Warn("Failed to write results file", "path", opts.ResultsFile, "error", err)
		} else {
			slog.Info("Wrote results file", "path", opts.ResultsFile)
		}
	}

	printCategorySummary(stats.Snapshot())
	if opts.Verbose {
		printCategoryDetails(outcomes)
	}
	return nil
}

// collect drains the dispatcher into a slice, driving the progress
// tracker from the single consumer goroutine. A fatal dispatcher error
// (authentication) is returned as-is.
func collect[T any](ctx context.Context, opts Options, refs []images.ImageRef, fn func(context.Context, images.ImageRef) (T, error)) ([]classify.Outcome[T], error) {
	pw := progress.NewWriter()
	pw.SetAutoStop(true)
	tracker := &progress.Tracker{
		Message: "Classifying images",
		Total:   int64(len(refs)),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(tracker)
	go pw.Render()
	defer pw.Stop()

	d := classify.Dispatch(ctx, refs, opts.Parallel, opts.Retry, fn)

	outcomes := make([]classify.Outcome[T], 0, len(refs))
	for out := range d.Results() {
		outcomes = append(outcomes, out)
		tracker.Increment(1)
		if out.Err != nil {
			slog.Warn("Image failed after retries", "image", out.Ref.Filename(), "kind", out.Err.Kind.String(), "error", out.Err.Message)
		}
	}

	if err := d.Err(); err != nil {
		tracker.MarkAsErrored()
		return nil, fmt.Errorf("run aborted: %w", err)
	}
	tracker.MarkAsDone()
	return outcomes, nil
}
