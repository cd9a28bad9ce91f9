// Command create-history generates a synthetic pairing history: it runs
// many rounds over random participants and writes one "<idx>.txt" file
// per round, then prints the most repeated directions.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/coffee/internal/simulate"
	"github.com/okian/coffee/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simulate.DefaultConfig()
	var verbose bool

	root := &cobra.Command{
		Use:          "create-history",
		Short:        "Generate a synthetic pairing history",
		Long:         "Runs pairing rounds over generated participants, writing <idx>.txt after each round.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			_ = logger.Init(logger.WithWriter(cmd.ErrOrStderr()))
			logger.SetLevel(level)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := simulate.Run(cmd.Context(), cfg, logger.Get().Named("simulate"))
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), cfg, report)
			return nil
		},
	}

	flags := root.Flags()
	flags.IntVar(&cfg.Users, "users", cfg.Users, "number of participants")
	flags.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "number of rounds to generate")
	flags.IntVar(&cfg.NameLength, "name-length", cfg.NameLength, "length of each participant name")
	flags.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory receiving the round files")
	flags.IntVar(&cfg.Top, "top", cfg.Top, "number of repeated directions to print (0 prints all)")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 picks one)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every round")

	root.AddCommand(newReplayCmd())
	return root
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <dir>",
		Short: "Load a history directory and describe it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := simulate.Replay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files: %d\n", report.Files)
			fmt.Fprintf(out, "pairs: %d\n", report.Pairs)
			fmt.Fprintf(out, "participants: %d\n", report.Participants)
			fmt.Fprintf(out, "largest history: %d (%s)\n", report.LargestHistory, report.Busiest)
			return nil
		},
	}
}

func printReport(out io.Writer, cfg simulate.Config, report simulate.Report) {
	deferred := 0
	for _, r := range report.Rounds {
		deferred += r.Deferred
	}
	fmt.Fprintf(out, "seed: %d\n", report.Seed)
	fmt.Fprintf(out, "rounds: %d written to %s\n", len(report.Rounds), cfg.Dir)
	fmt.Fprintf(out, "deferred: %d\n", deferred)
	fmt.Fprintf(out, "repeats: %d\n", report.RepeatTotal)
	for _, row := range report.Top {
		fmt.Fprintf(out, "%s -> %s: %d\n", row.From, row.To, row.Count)
	}
}
