package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/aggregator"
	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/node"
)

var (
	wristwatchFlags    nodeFlags
	wristwatchDuration string
)

var wristwatchCmd = &cobra.Command{
	Use:   "wristwatch",
	Short: "Run the wearable node on simulated sensors",
	Long: `Runs the wristwatch node. Every tick it records acceleration, sound
level and one pulse pin sample; every 20 ticks it sends accel, pulse and
vol to the base node.

Sensors are simulated from a sleep scenario.

Examples:
  snore wristwatch --scenario restless
  snore wristwatch --transport mqtt --broker tcp://pi.local:1883 --duration 8h`,
	RunE: runWristwatch,
}

func init() {
	wristwatchFlags.register(wristwatchCmd)
	wristwatchCmd.Flags().StringVar(&wristwatchDuration, "duration", "", "Stop after this long, e.g. 30m")
}

func runWristwatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, applyWristwatchFlags)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, "snore-wristwatch")
	if err != nil {
		return err
	}
	defer log.Sync()

	wc, err := wristwatchConfig(cfg)
	if err != nil {
		return err
	}
	sensors, scen, err := newSimulatedSensors(cfg)
	if err != nil {
		return err
	}

	identity := identityFor(cfg)
	radio, serve, err := openRadio(cfg, identity.SerialNumber(), log)
	if err != nil {
		return err
	}
	defer radio.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	ctx, stop, err := withDuration(ctx, wristwatchDuration)
	if err != nil {
		return err
	}
	defer stop()

	go func() {
		if err := serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("radio stopped", zap.Error(err))
		}
	}()

	watch := node.NewWristwatch(wc, aggregator.New(sensors, wc.Aggregator), radio, log)

	if !globalOpts.Quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "SNORE wristwatch started\n\n")
		fmt.Fprintf(out, "Serial:       %d\n", identity.SerialNumber())
		fmt.Fprintf(out, "Scenario:     %s\n", scen.Name)
		fmt.Fprintf(out, "Radio:        %s (group %d, %s)\n", radioAddress(cfg), cfg.Radio.Group, cfg.Radio.Encoding)
		fmt.Fprintf(out, "Sampling:     every %s, send every %d samples\n", wc.Interval, wc.MeasuresPerInterval)
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	}

	if err := watch.Run(ctx); err != nil {
		return fmt.Errorf("wristwatch stopped: %w", err)
	}

	if !globalOpts.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nSent %d cycles\n", watch.Cycles())
	}
	return nil
}

// applyWristwatchFlags applies the node flags. The config's UDP addresses
// are the base node's, so unless either address was given the wristwatch
// listens on the base's peer and sends to the base's listen address.
func applyWristwatchFlags(cmd *cobra.Command, cfg *config.Config) {
	wristwatchFlags.apply(cmd, cfg)
	if cfg.Radio.Transport == "udp" && !cmd.Flags().Changed("listen") && !cmd.Flags().Changed("peer") {
		cfg.Radio.Listen, cfg.Radio.Peer = cfg.Radio.Peer, cfg.Radio.Listen
	}
}
