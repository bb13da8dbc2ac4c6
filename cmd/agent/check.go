package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"healthmon-agent/internal/agent"
	"healthmon-agent/internal/collector"
	"healthmon-agent/internal/model"
	"healthmon-agent/internal/stream"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Collect and evaluate once",
	Long:  `Runs a single collection against the configured source, prints every metric and breach, and exits 1 when the result is a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if cfg.LogLevel == "debug" {
			logger = agent.BuildLogger(cfg)
		}
		source, err := collector.NewSourceFromConfig(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = collector.CloseSource(source) }()

		a, err := agent.New(cfg, agent.Deps{Source: source, Sink: stream.NewLogSink(logger)}, logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		res, err := a.Check(ctx)
		if err != nil {
			return err
		}
		printCheck(cmd.OutOrStdout(), cfg.InstanceName, cfg.Thresholds, res)
		if res.State == model.HealthWarning {
			return errUnhealthy
		}
		return nil
	},
}

func printCheck(w io.Writer, instance string, thresholds model.Thresholds, res agent.CheckResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", cyan("=== "+instance+" ==="))
	for _, name := range res.Sample.Metrics() {
		line := fmt.Sprintf("  %-10s %10.2f", name, res.Sample.Values[name])
		if limit, ok := thresholds[name]; ok {
			line += gray(fmt.Sprintf("  (threshold %.2f)", limit))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	if res.State != model.HealthWarning {
		fmt.Fprintf(w, "%s\n", green("System Status: HEALTHY"))
		return
	}
	fmt.Fprintf(w, "%s\n", red(fmt.Sprintf("System Status: WARNING - %d alert(s)", len(res.Alerts))))
	for _, ev := range res.Alerts {
		fmt.Fprintf(w, "  %s\n", ev)
	}
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "overall timeout for the check")
	rootCmd.AddCommand(checkCmd)
}
