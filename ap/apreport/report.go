// Package apreport renders checker results as a persisted Markdown
// report and a colorized console summary.
package apreport

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apsim"
)

// SimResult pairs a simulation summary with its display name.
type SimResult struct {
	Name    string
	Summary apsim.Summary
}

// Aggregate is the pass/fail tally across a batch of checks.
type Aggregate struct {
	Pass         int
	Fail         int
	Inconclusive int
}

// AggregateReports tallies checker outcomes.
func AggregateReports(reports []apcheck.Report) Aggregate {
	var agg Aggregate
	for _, r := range reports {
		switch r.Outcome {
		case apcheck.OutcomePass:
			agg.Pass++
		case apcheck.OutcomeFail:
			agg.Fail++
		default:
			agg.Inconclusive++
		}
	}
	return agg
}

// AllPassed reports whether every check passed outright.
// Inconclusive results do not count as passes.
func (a Aggregate) AllPassed() bool {
	return a.Fail == 0 && a.Inconclusive == 0
}

// WriteMarkdown renders the full report.
func WriteMarkdown(w io.Writer, run string, reports []apcheck.Report, sims []SimResult) error {
	bw := &errWriter{w: w}

	bw.printf("# Alpenglow verification report: %s\n\n", run)
	bw.printf("Generated %s.\n\n", time.Now().UTC().Format(time.RFC3339))

	agg := AggregateReports(reports)
	bw.printf("## Summary\n\n")
	bw.printf("| Result | Count |\n|---|---|\n")
	bw.printf("| Pass | %d |\n", agg.Pass)
	bw.printf("| Fail | %d |\n", agg.Fail)
	bw.printf("| Inconclusive | %d |\n\n", agg.Inconclusive)

	for _, r := range reports {
		bw.printf("## Check: %s\n\n", r.Name)
		bw.printf("Outcome: **%s**\n\n", strings.ToUpper(r.Outcome.String()))
		bw.printf(
			"States visited: %d (discovered %d, transitions %d, peak queue %d, exhaustive: %t)\n\n",
			r.Stats.StatesVisited, r.Stats.StatesDiscovered, r.Stats.Transitions,
			r.Stats.PeakQueueLen, r.Stats.Exhaustive,
		)

		if r.Outcome == apcheck.OutcomeInconclusive {
			bw.printf("Exploration was truncated by the state budget; absence of violations is not a proof.\n\n")
		}

		if len(r.Metrics) > 0 {
			keys := make([]string, 0, len(r.Metrics))
			for k := range r.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			bw.printf("| Metric | Value |\n|---|---|\n")
			for _, k := range keys {
				bw.printf("| %s | %g |\n", k, r.Metrics[k])
			}
			bw.printf("\n")
		}

		if len(r.Violations) > 0 {
			bw.printf("Violations:\n\n")
			for _, v := range r.Violations {
				bw.printf("- %s\n", v)
			}
			bw.printf("\n")
		}
	}

	for _, s := range sims {
		writeSimMarkdown(bw, s)
	}

	return bw.err
}

func writeSimMarkdown(bw *errWriter, s SimResult) {
	sum := s.Summary

	bw.printf("## Simulation: %s\n\n", s.Name)
	bw.printf(
		"Slots: %d, success rate %.2f%% (fast path %d, fallback %d, skipped %d, failed %d)\n\n",
		sum.Slots, sum.SuccessRate*100, sum.FastPath, sum.FallbackPath, sum.Skipped, sum.Failed,
	)

	if sum.Latency.Count == 0 {
		bw.printf("No finalizations recorded.\n\n")
		return
	}

	bw.printf("| Latency | Value |\n|---|---|\n")
	bw.printf("| Mean | %s |\n", sum.Latency.Mean)
	bw.printf("| Median | %s |\n", sum.Latency.Median)
	bw.printf("| P50 | %s |\n", sum.Latency.P50)
	bw.printf("| P90 | %s |\n", sum.Latency.P90)
	bw.printf("| P99 | %s |\n", sum.Latency.P99)
	bw.printf("| Min | %s |\n", sum.Latency.Min)
	bw.printf("| Max | %s |\n\n", sum.Latency.Max)
}

// PrintConsole writes a short colorized summary of the batch.
func PrintConsole(w io.Writer, run string, reports []apcheck.Report, sims []SimResult) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow, color.Bold)

	fmt.Fprintf(w, "Run %s:\n", run)

	for _, r := range reports {
		var c *color.Color
		switch r.Outcome {
		case apcheck.OutcomePass:
			c = pass
		case apcheck.OutcomeFail:
			c = fail
		default:
			c = warn
		}
		fmt.Fprintf(
			w, "  %s %s (%d states, %d violations)\n",
			c.Sprintf("[%s]", strings.ToUpper(r.Outcome.String())),
			r.Name, r.Stats.StatesVisited, len(r.Violations),
		)
	}

	for _, s := range sims {
		c := pass
		if s.Summary.SuccessRate < 0.95 {
			c = warn
		}
		fmt.Fprintf(
			w, "  %s %s (%.2f%% success, p99 %s)\n",
			c.Sprint("[SIM]"), s.Name,
			s.Summary.SuccessRate*100, s.Summary.Latency.P99,
		)
	}
}

// errWriter folds repeated Fprintf error checks into one sticky error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
