package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/noodlebox/vclock/historicaltime"
	"github.com/noodlebox/vclock/internal/scenario"
	"github.com/noodlebox/vclock/internal/telemetry"
	"github.com/noodlebox/vclock/virtualtime"
)

// metricsNamespace prefixes every metric the replay exposes.
const metricsNamespace = "vclock"

// replayReport is the JSON shape of a replay.
type replayReport struct {
	RunID string `json:"run_id"`
	*scenario.Result
}

// NewReplayCmd returns the replay command.
func NewReplayCmd(outputFn func() *Output, loggerFn func() *slog.Logger) *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Replay a scenario on a virtual clock and print what ran",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			runID := telemetry.NewRunID()
			logger := telemetry.WithRunID(loggerFn(), runID)

			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			opts := []historicaltime.Option{
				virtualtime.WithLogger[historicaltime.Time](logger),
				virtualtime.WithMetrics[historicaltime.Time](reg, metricsNamespace),
			}

			logger.Info("replaying scenario", "file", args[0], "events", len(sc.Events), "steps", len(sc.Steps))
			res, replayErr := scenario.Replay(sc, opts...)
			if res != nil {
				if err := printResult(out, runID, res); err != nil {
					return err
				}
			}
			if replayErr != nil {
				return replayErr
			}
			logger.Info("replay finished", "entries", len(res.Entries), "skipped", res.Skipped, "clock", res.Clock)

			if showMetrics {
				return writeMetrics(out.Writer(), reg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print scheduler metrics in Prometheus text format")

	return cmd
}

// NewValidateCmd returns the validate command.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check scenario files without replaying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			for _, path := range args {
				if _, err := scenario.Load(path); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				out.Success(path + ": ok")
			}
			return nil
		},
	}
}

func printResult(out *Output, runID string, res *scenario.Result) error {
	headers := []string{"STEP", "LABEL", "CLOCK", "OFFSET"}
	rows := make([][]string, len(res.Entries))
	for i, e := range res.Entries {
		rows[i] = []string{
			strconv.Itoa(e.Step), e.Label, e.Clock.Format(time.RFC3339Nano), e.Offset.String(),
		}
	}
	return out.Print(headers, rows, replayReport{RunID: runID, Result: res})
}

// writeMetrics writes every gathered family in the text exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
