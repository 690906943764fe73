package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/daylog"
	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/node"
	"github.com/snore/snore-cli/internal/recorder"
	"github.com/snore/snore-cli/internal/staging"
	"github.com/snore/snore-cli/internal/storage"
)

var (
	replayIn     string
	replayDir    string
	replaySpeed  float64
	replayPolicy string
	replaySerial uint32
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild a day log from a radio trace",
	Long: `Replays a trace recorded by 'snore stationary --trace' into a fresh
stationary node. Values are staged and rows stored exactly where the
trace recorded them, into the next free day log of --dir.

Examples:
  snore replay --in night.ndjson --dir ./rebuilt
  snore replay --in night.ndjson --dir ./rebuilt --policy reset
  snore replay --in night.ndjson --dir ./rebuilt --speed 60`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayIn, "in", "", "Trace file to replay (required)")
	replayCmd.Flags().StringVar(&replayDir, "dir", "", "Storage directory for the rebuilt day log")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed multiplier (0 replays at once)")
	replayCmd.Flags().StringVar(&replayPolicy, "policy", "", "Staging policy: retain|reset")
	replayCmd.Flags().Uint32Var(&replaySerial, "serial", 0, "Serial written to id.txt")
	replayCmd.MarkFlagRequired("in")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("dir") {
			cfg.Storage.Dir = replayDir
		}
		if cmd.Flags().Changed("policy") {
			cfg.Staging.Policy = replayPolicy
		}
		if cmd.Flags().Changed("serial") {
			cfg.Radio.Serial = replaySerial
		}
	})
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, "snore-replay")
	if err != nil {
		return err
	}
	defer log.Sync()

	rep := recorder.NewReplayer(replayIn, replaySpeed)
	values, stores, err := rep.Count()
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	policy, err := staging.ParsePolicy(cfg.Staging.Policy)
	if err != nil {
		return err
	}
	medium, err := storage.NewDir(cfg.Storage.Dir)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	st := node.NewStationary(node.StationaryConfig{Policy: policy}, medium, identityFor(cfg), device.NewLogIndicator(log), log)
	if err := st.Initialise(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !globalOpts.Quiet {
		fmt.Fprintf(out, "Replay started\n\n")
		fmt.Fprintf(out, "Trace:        %s (%d values, %d stores)\n", replayIn, values, stores)
		fmt.Fprintf(out, "Day log:      %s/%s\n", medium.Root(), daylog.FileName(st.Day()))
		fmt.Fprintf(out, "Staging:      %s\n\n", policy)
	}

	if err := replayTrace(ctx, rep, st); err != nil && err != context.Canceled {
		return fmt.Errorf("replay error: %w", err)
	}

	if !globalOpts.Quiet {
		fmt.Fprintf(out, "Rebuilt %d rows\n", st.Rows())
	}
	return nil
}

// replayTrace drives st from the entries of a trace
func replayTrace(ctx context.Context, rep *recorder.Replayer, st *node.Stationary) error {
	return rep.Replay(ctx, func(entry models.TraceEntry) error {
		if entry.Kind == models.TraceStore {
			_, err := st.StoreData()
			return err
		}
		st.ReceiveData(entry.Message.Name, entry.Message.Value)
		return nil
	})
}
