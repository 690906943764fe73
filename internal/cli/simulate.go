package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/aggregator"
	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/daylog"
	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/node"
	"github.com/snore/snore-cli/internal/storage"
	"github.com/snore/snore-cli/internal/transport"
)

var (
	simulateFlags    nodeFlags
	simulateDuration string
	simulateMemory   bool
	simulateTrace    string
	simulateFeed     bool
	simulateLoss     float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run both nodes in one process",
	Long: `Runs a wristwatch and a stationary node connected by an in-process
radio. The wristwatch reads simulated sensors driven by a sleep scenario
and every stored row is printed.

Examples:
  snore simulate --scenario demo --rate 50hz --duration 30s
  snore simulate --memory --duration 10s
  snore simulate --dir ./night --trace night.ndjson --feed`,
	RunE: runSimulate,
}

func init() {
	simulateFlags.register(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateDuration, "duration", "", "Stop after this long (default: scenario duration)")
	simulateCmd.Flags().BoolVar(&simulateMemory, "memory", false, "Keep day logs in memory instead of --dir")
	simulateCmd.Flags().StringVar(&simulateTrace, "trace", "", "Record received values to an NDJSON trace")
	simulateCmd.Flags().BoolVar(&simulateFeed, "feed", false, "Serve stored rows over WebSocket")
	simulateCmd.Flags().Float64Var(&simulateLoss, "loss", 0, "Fraction of radio messages lost in transit (0-1)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(cmd *cobra.Command, cfg *config.Config) {
		simulateFlags.apply(cmd, cfg)
		cfg.Radio.Transport = "loopback"
		if cmd.Flags().Changed("trace") {
			cfg.Trace.Path = simulateTrace
		}
		if cmd.Flags().Changed("feed") {
			cfg.Feed.Enabled = simulateFeed
		}
	})
	if err != nil {
		return err
	}
	if simulateLoss < 0 || simulateLoss > 1 {
		return fmt.Errorf("--loss must be between 0 and 1")
	}

	log, err := newLogger(cfg, "snore-simulate")
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

	var medium storage.Medium
	location := "memory"
	if simulateMemory {
		medium = storage.NewMemory()
	} else {
		dir, err := storage.NewDir(cfg.Storage.Dir)
		if err != nil {
			return err
		}
		medium = dir
		location = dir.Root()
	}

	watchID, baseID := device.NewRandomIdentity(), identityFor(cfg)
	watchRadio, baseRadio := transport.NewLoopbackPair(cfg.Radio.Group, watchID.SerialNumber(), baseID.SerialNumber(), log)
	if simulateLoss > 0 {
		watchRadio.Drop = lossyLink(simulateLoss, cfg.Sensors.Seed)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	ctx, stop, err := withDuration(ctx, simulateDuration)
	if err != nil {
		return err
	}
	defer stop()
	if simulateDuration == "" {
		go stopWhen(ctx, sensors.Complete, wc.Interval, stop)
	}

	out := cmd.OutOrStdout()
	if globalOpts.Quiet {
		out = io.Discard
	}

	base, err := newBaseNode(ctx, cfg, medium, baseID, log, printRows(out, sensors.Phase))
	if err != nil {
		return err
	}
	defer base.Close()

	fmt.Fprintf(out, "SNORE simulation started\n\n")
	fmt.Fprintf(out, "Scenario:     %s (%s)\n", scen.Name, scen.Description)
	fmt.Fprintf(out, "Phase:        %s\n", sensors.Phase())
	fmt.Fprintf(out, "Duration:     %s\n", simulationLength(simulateDuration, scen.Duration))
	fmt.Fprintf(out, "Day log:      %s/%s\n", location, daylog.FileName(base.node.Day()))
	fmt.Fprintf(out, "Sampling:     every %s, send every %d samples\n", wc.Interval, wc.MeasuresPerInterval)
	fmt.Fprintf(out, "Staging:      %s\n", cfg.Staging.Policy)
	if base.feed != nil {
		fmt.Fprintf(out, "Feed:         %s\n", base.feed.GetAddress())
	}
	fmt.Fprintf(out, "\n%s\n", models.CSVHeader)

	watch := node.NewWristwatch(wc, aggregator.New(sensors, wc.Aggregator), watchRadio, log)

	baseErr := make(chan error, 1)
	go func() { baseErr <- base.node.Run(ctx, baseRadio) }()

	if err := watch.Run(ctx); err != nil {
		return err
	}
	if err := <-baseErr; err != nil {
		return err
	}

	if err := base.Close(); err != nil {
		return fmt.Errorf("failed to close trace: %w", err)
	}

	log.Info("simulation finished",
		zap.String("phase", sensors.Phase()),
		zap.Int("cycles", watch.Cycles()),
		zap.Int("rows", base.node.Rows()),
		zap.Int("sent", watchRadio.Sent()),
		zap.Int64("dropped", base.Dropped()))
	fmt.Fprintf(out, "\nSent %d cycles, stored %d rows, %d printed rows dropped\n", watch.Cycles(), base.node.Rows(), base.Dropped())

	if mem, ok := medium.(*storage.Memory); ok {
		name := daylog.FileName(base.node.Day())
		content, _ := mem.Read(name)
		fmt.Fprintf(out, "Files in memory: %v\n\n%s:\n%s", mem.Names(), name, content)
	}
	return nil
}

// simulationLength describes how long the simulation runs for the banner
func simulationLength(flag, scenario string) string {
	switch {
	case flag != "":
		return flag
	case scenario == "" || scenario == "unlimited":
		return "until Ctrl+C"
	}
	return scenario + " (scenario)"
}

// stopWhen calls stop once done reports true, checking every interval
func stopWhen(ctx context.Context, done func() bool, interval time.Duration, stop context.CancelFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done() {
				stop()
				return
			}
		}
	}
}

// lossyLink drops each message with probability loss
func lossyLink(loss float64, seed int64) func(models.Message) bool {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return func(models.Message) bool {
		return rng.Float64() < loss
	}
}
