// Command alpenglow-verify runs the model checkers and the statistical
// simulator for the two-round stake-weighted finalization protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/spf13/cobra"

	"github.com/gordian-engine/alpenglow/ap/apmodel"
	"github.com/gordian-engine/alpenglow/ap/apreport"
	"github.com/gordian-engine/alpenglow/ap/aprotor"
	"github.com/gordian-engine/alpenglow/ap/apsafety"
	"github.com/gordian-engine/alpenglow/ap/apsim"
	"github.com/gordian-engine/alpenglow/ap/aptemporal"
)

func main() {
	if err := mainE(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	return rootCmd(log).ExecuteContext(ctx)
}

// rootFlags are the model parameters shared by every subcommand.
type rootFlags struct {
	nValidators int
	byzantine   []string
	offline     []string

	fastQuorumPct     uint64
	fallbackQuorumPct uint64

	maxSlot   uint32
	maxStates int

	runName     string
	reportPath  string
	debugListen string
}

func rootCmd(log *slog.Logger) *cobra.Command {
	var rf rootFlags

	cmd := &cobra.Command{
		Use:   "alpenglow-verify SUBCOMMAND",
		Short: "Model checking and statistical simulation for two-round stake-weighted finalization",

		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.IntVarP(&rf.nValidators, "validators", "n", 4, "Number of equal-stake validators in the model")
	pf.StringSliceVar(&rf.byzantine, "byzantine", nil, "Validator IDs to mark Byzantine")
	pf.StringSliceVar(&rf.offline, "offline", nil, "Validator IDs to mark offline")
	pf.Uint64Var(&rf.fastQuorumPct, "fast-quorum", apmodel.DefaultFastQuorumPct, "Fast quorum as a percentage of total stake")
	pf.Uint64Var(&rf.fallbackQuorumPct, "fallback-quorum", apmodel.DefaultFallbackQuorumPct, "Fallback quorum as a percentage of total stake")
	pf.Uint32Var(&rf.maxSlot, "max-slot", 0, "Last slot of the model (slots are 0-based)")
	pf.IntVar(&rf.maxStates, "max-states", 0, "State budget for exploration (0 for the default)")
	pf.StringVar(&rf.runName, "run-name", "", "Name for this run (defaults to a generated name)")
	pf.StringVarP(&rf.reportPath, "report", "o", "", "Path to write the Markdown report (empty to skip)")
	pf.StringVar(&rf.debugListen, "debug-listen", "", "Optional TCP address serving run results as JSON")

	cmd.AddCommand(
		safetyCmd(log, &rf),
		livenessCmd(log, &rf),
		boundedCmd(log, &rf),
		simCmd(log, &rf),
		allCmd(log, &rf),
	)

	return cmd
}

func (rf *rootFlags) validatorSet() (apmodel.ValidatorSet, error) {
	byz, err := parseIDSet(rf.byzantine)
	if err != nil {
		return apmodel.ValidatorSet{}, fmt.Errorf("invalid --byzantine value: %w", err)
	}
	off, err := parseIDSet(rf.offline)
	if err != nil {
		return apmodel.ValidatorSet{}, fmt.Errorf("invalid --offline value: %w", err)
	}

	vals := make([]apmodel.Validator, rf.nValidators)
	for i := range vals {
		id := apmodel.ValidatorID(i)
		vals[i] = apmodel.Validator{
			ID:        id,
			Stake:     100,
			Byzantine: byz[id],
			Offline:   off[id],
		}
	}

	return apmodel.NewValidatorSet(vals, rf.fastQuorumPct, rf.fallbackQuorumPct)
}

func parseIDSet(raw []string) (map[apmodel.ValidatorID]bool, error) {
	out := make(map[apmodel.ValidatorID]bool, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%q is not a validator ID: %w", s, err)
		}
		out[apmodel.ValidatorID(id)] = true
	}
	return out, nil
}

func (rf *rootFlags) results() *apreport.ResultCollector {
	name := rf.runName
	if name == "" {
		name = petname.Generate(2, "-")
	}
	return apreport.NewResultCollector(name)
}

// finishRun renders the console summary, writes the Markdown report when
// requested, optionally serves the results over HTTP until interrupted,
// and maps failed checks to a nonzero exit.
func finishRun(ctx context.Context, log *slog.Logger, rf *rootFlags, results *apreport.ResultCollector) error {
	reports, sims := results.Snapshot()

	apreport.PrintConsole(os.Stdout, results.Run(), reports, sims)

	if rf.reportPath != "" {
		f, err := os.Create(rf.reportPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()

		if err := apreport.WriteMarkdown(f, results.Run(), reports, sims); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Info("Wrote report", "path", rf.reportPath)
	}

	if rf.debugListen != "" {
		ln, err := net.Listen("tcp", rf.debugListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", rf.debugListen, err)
		}
		log.Info("Serving run results; interrupt to stop", "addr", ln.Addr().String())

		h := apreport.NewHTTPServer(ctx, log, apreport.HTTPServerConfig{
			Listener: ln,
			Results:  results,
		})
		h.Wait()
	}

	if agg := apreport.AggregateReports(reports); agg.Fail > 0 {
		return fmt.Errorf("%d of %d checks failed", agg.Fail, len(reports))
	}
	return nil
}

func safetyCmd(log *slog.Logger, rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "safety",
		Short: "Exhaustively check the no-fork and quorum-validity invariants",

		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := rf.validatorSet()
			if err != nil {
				return err
			}

			rep, err := apsafety.Check(
				apmodel.SafetyConfig(vs, apmodel.Slot(rf.maxSlot)),
				apsafety.Options{MaxStates: rf.maxStates, Log: log},
			)
			if err != nil {
				return err
			}

			results := rf.results()
			results.AddReport(rep)
			return finishRun(cmd.Context(), log, rf, results)
		},
	}
}

func livenessCmd(log *slog.Logger, rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "liveness",
		Short: "Check eventual progress and honest-leader finalization reachability",

		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := rf.validatorSet()
			if err != nil {
				return err
			}

			cfg := apmodel.LivenessConfig(vs, apmodel.Slot(rf.maxSlot))
			opts := aptemporal.Options{MaxStates: rf.maxStates, Log: log}

			results := rf.results()

			rep, err := aptemporal.CheckEventualProgress(cfg, opts)
			if err != nil {
				return err
			}
			results.AddReport(rep)

			rep, err = aptemporal.CheckHonestLeaderFinalization(cfg, opts)
			if err != nil {
				return err
			}
			results.AddReport(rep)

			return finishRun(cmd.Context(), log, rf, results)
		},
	}
}

func boundedCmd(log *slog.Logger, rf *rootFlags) *cobra.Command {
	var fastBudget, totalBudget, timeCutoff int64

	cmd := &cobra.Command{
		Use:   "bounded",
		Short: "Check optimal-path finalization times against the timing budget",

		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := rf.validatorSet()
			if err != nil {
				return err
			}

			rep, err := aptemporal.CheckBoundedTime(
				apmodel.BoundedTimeConfig(vs, apmodel.Slot(rf.maxSlot)),
				aptemporal.BoundedTimeOptions{
					Options:     aptemporal.Options{MaxStates: rf.maxStates, Log: log},
					FastBudget:  fastBudget,
					TotalBudget: totalBudget,
					TimeCutoff:  timeCutoff,
				},
			)
			if err != nil {
				return err
			}

			results := rf.results()
			results.AddReport(rep)
			return finishRun(cmd.Context(), log, rf, results)
		},
	}

	fs := cmd.Flags()
	fs.Int64Var(&fastBudget, "fast-budget", 0, "Fast-path budget in model milliseconds (0 for the default)")
	fs.Int64Var(&totalBudget, "total-budget", 0, "Fallback-path budget in model milliseconds (0 for the default)")
	fs.Int64Var(&timeCutoff, "time-cutoff", 0, "Exploration time cutoff in model milliseconds (0 default, negative disables)")

	return cmd
}

// simFlags are the Monte-Carlo parameters; model-check flags like
// --max-slot and --max-states do not apply here.
type simFlags struct {
	nValidators  int
	byzantinePct int
	offlinePct   int
	slots        int
	seed         uint64

	rotor       bool
	rotorBranch int
	rotorHopMS  int
}

func addSimFlags(cmd *cobra.Command, sf *simFlags) {
	fs := cmd.Flags()
	fs.IntVar(&sf.nValidators, "sim-validators", 100, "Number of simulated validators")
	fs.IntVar(&sf.byzantinePct, "byzantine-pct", 0, "Percentage of simulated validators that are Byzantine")
	fs.IntVar(&sf.offlinePct, "offline-pct", 0, "Percentage of simulated validators that are offline")
	fs.IntVar(&sf.slots, "slots", 1000, "Number of independent slots to simulate")
	fs.Uint64Var(&sf.seed, "seed", 1, "Seed for the simulation RNG")
	fs.BoolVar(&sf.rotor, "rotor", false, "Model proposal dissemination through the relay tree")
	fs.IntVar(&sf.rotorBranch, "rotor-branch", aprotor.DefaultBranchFactor, "Relay tree branch factor")
	fs.IntVar(&sf.rotorHopMS, "rotor-hop", 5, "Relay hop latency in milliseconds")
}

func runSim(log *slog.Logger, rf *rootFlags, sf *simFlags, results *apreport.ResultCollector) error {
	cfg, err := apsim.NewConfig(sf.nValidators, sf.byzantinePct, sf.offlinePct, sf.slots, sf.seed)
	if err != nil {
		return err
	}
	cfg.FastQuorumPct = rf.fastQuorumPct
	cfg.FallbackQuorumPct = rf.fallbackQuorumPct

	name := fmt.Sprintf("%d validators, %d%% byzantine, %d%% offline", sf.nValidators, sf.byzantinePct, sf.offlinePct)

	if sf.rotor {
		d, err := aprotor.NewDisseminator(
			cfg.Validators, sf.rotorBranch, time.Duration(sf.rotorHopMS)*time.Millisecond,
		)
		if err != nil {
			return fmt.Errorf("failed to build disseminator: %w", err)
		}
		cfg.Rotor = d
		name += ", rotor"
	}

	sum, err := apsim.Run(cfg, log)
	if err != nil {
		return err
	}

	results.AddSim(apreport.SimResult{Name: name, Summary: sum})
	return nil
}

func simCmd(log *slog.Logger, rf *rootFlags) *cobra.Command {
	var sf simFlags

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the Monte-Carlo simulation at scale",

		RunE: func(cmd *cobra.Command, args []string) error {
			results := rf.results()
			if err := runSim(log, rf, &sf, results); err != nil {
				return err
			}
			return finishRun(cmd.Context(), log, rf, results)
		},
	}

	addSimFlags(cmd, &sf)
	return cmd
}

func allCmd(log *slog.Logger, rf *rootFlags) *cobra.Command {
	var sf simFlags

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run every check and the simulation in one batch",

		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := rf.validatorSet()
			if err != nil {
				return err
			}

			results := rf.results()
			opts := aptemporal.Options{MaxStates: rf.maxStates, Log: log}
			maxSlot := apmodel.Slot(rf.maxSlot)

			rep, err := apsafety.Check(
				apmodel.SafetyConfig(vs, maxSlot),
				apsafety.Options{MaxStates: rf.maxStates, Log: log},
			)
			if err != nil {
				return err
			}
			results.AddReport(rep)

			livenessCfg := apmodel.LivenessConfig(vs, maxSlot)

			rep, err = aptemporal.CheckEventualProgress(livenessCfg, opts)
			if err != nil {
				return err
			}
			results.AddReport(rep)

			rep, err = aptemporal.CheckHonestLeaderFinalization(livenessCfg, opts)
			if err != nil {
				return err
			}
			results.AddReport(rep)

			rep, err = aptemporal.CheckBoundedTime(
				apmodel.BoundedTimeConfig(vs, maxSlot),
				aptemporal.BoundedTimeOptions{Options: opts},
			)
			if err != nil {
				return err
			}
			results.AddReport(rep)

			if err := runSim(log, rf, &sf, results); err != nil {
				return err
			}

			return finishRun(cmd.Context(), log, rf, results)
		},
	}

	addSimFlags(cmd, &sf)
	return cmd
}
