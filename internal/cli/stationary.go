package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/daylog"
	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/node"
	"github.com/snore/snore-cli/internal/recorder"
	"github.com/snore/snore-cli/internal/storage"
	"github.com/snore/snore-cli/internal/transport"
)

var (
	stationaryFlags nodeFlags
	stationaryTrace string
	stationaryFeed  bool
	stationaryPort  int
	stationaryStore string
)

var stationaryCmd = &cobra.Command{
	Use:   "stationary",
	Short: "Run the base node",
	Long: `Runs the stationary base node: opens the next day log, writes id.txt,
then stages every received value and appends rows to the day log.

Examples:
  snore stationary --dir /mnt/sd
  snore stationary --transport mqtt --broker tcp://pi.local:1883 --feed
  snore stationary --store-every 4s --trace night.ndjson`,
	RunE: runStationary,
}

func init() {
	stationaryFlags.register(stationaryCmd)
	stationaryCmd.Flags().StringVar(&stationaryTrace, "trace", "", "Record received values to an NDJSON trace")
	stationaryCmd.Flags().BoolVar(&stationaryFeed, "feed", false, "Serve stored rows over WebSocket")
	stationaryCmd.Flags().IntVar(&stationaryPort, "feed-port", 0, "WebSocket feed port")
	stationaryCmd.Flags().StringVar(&stationaryStore, "store-every", "", "Store a row on a timer instead of after each vol, e.g. 4s")
}

func runStationary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(cmd *cobra.Command, cfg *config.Config) {
		stationaryFlags.apply(cmd, cfg)
		if cmd.Flags().Changed("trace") {
			cfg.Trace.Path = stationaryTrace
		}
		if cmd.Flags().Changed("feed") {
			cfg.Feed.Enabled = stationaryFeed
		}
		if cmd.Flags().Changed("feed-port") {
			cfg.Feed.Port = stationaryPort
		}
		if cmd.Flags().Changed("store-every") {
			if d, err := time.ParseDuration(stationaryStore); err == nil {
				cfg.Store.Interval = d
			} else {
				cfg.Store.Interval = -1
			}
		}
	})
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, "snore-stationary")
	if err != nil {
		return err
	}
	defer log.Sync()

	medium, err := storage.NewDir(cfg.Storage.Dir)
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

	base, err := newBaseNode(ctx, cfg, medium, identity, log)
	if err != nil {
		return err
	}
	defer base.Close()

	if !globalOpts.Quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "SNORE stationary node started\n\n")
		fmt.Fprintf(out, "Serial:       %d\n", identity.SerialNumber())
		fmt.Fprintf(out, "Day log:      %s/%s\n", medium.Root(), daylog.FileName(base.node.Day()))
		fmt.Fprintf(out, "Radio:        %s (group %d, %s)\n", radioAddress(cfg), cfg.Radio.Group, cfg.Radio.Encoding)
		fmt.Fprintf(out, "Staging:      %s\n", cfg.Staging.Policy)
		if base.feed != nil {
			fmt.Fprintf(out, "Feed:         %s\n", base.feed.GetAddress())
		}
		if cfg.Trace.Path != "" {
			fmt.Fprintf(out, "Trace:        %s\n", cfg.Trace.Path)
		}
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	}

	go func() {
		if err := serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("radio stopped", zap.Error(err))
			cancel()
		}
	}()

	if err := base.node.Run(ctx, radio); err != nil {
		return fmt.Errorf("stationary node stopped: %w", err)
	}
	if err := base.Close(); err != nil {
		return fmt.Errorf("failed to close trace: %w", err)
	}

	if !globalOpts.Quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nStored %d rows to %s\n", base.node.Rows(), daylog.FileName(base.node.Day()))
		if base.dispatcher != nil {
			fmt.Fprintf(out, "Feed rows dropped: %d\n", base.Dropped())
		}
	}
	return nil
}

// baseNode is an initialised stationary node with its optional trace and feed
type baseNode struct {
	node       *node.Stationary
	rec        *recorder.Recorder
	feed       *transport.FeedServer
	dispatcher *transport.Dispatcher
	rows       chan models.StoredRow
	log        *zap.Logger
	stopFeed   context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
	closeErr   error
}

// newBaseNode initialises a stationary node on medium and starts the trace
// recorder and live feed when configured. extra subscribers receive every
// stored row.
func newBaseNode(ctx context.Context, cfg config.Config, medium storage.Medium, identity device.Identity, log *zap.Logger, extra ...func(<-chan models.StoredRow)) (*baseNode, error) {
	sc, err := stationaryConfig(cfg)
	if err != nil {
		return nil, err
	}

	st := node.NewStationary(sc, medium, identity, device.NewLogIndicator(log), log)
	if err := st.Initialise(ctx); err != nil {
		return nil, err
	}
	b := &baseNode{node: st, log: log}

	if cfg.Trace.Path != "" {
		rec, err := recorder.NewRecorder(cfg.Trace.Path)
		if err != nil {
			return nil, err
		}
		b.rec = rec
		st.SetTracer(rec)
	}

	if !cfg.Feed.Enabled && len(extra) == 0 {
		return b, nil
	}

	feedCtx, stop := context.WithCancel(ctx)
	b.stopFeed = stop
	b.rows = make(chan models.StoredRow, 100)
	st.SetRowSink(b.rows)

	b.dispatcher = transport.NewDispatcher(b.rows, 100, log)
	if cfg.Feed.Enabled {
		b.feed = transport.NewFeedServer(cfg.Feed.Host, cfg.Feed.Port, log)
		go func() {
			if err := b.feed.Start(feedCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("feed server stopped", zap.Error(err))
			}
		}()
		sub := b.dispatcher.Subscribe()
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			_ = b.feed.BroadcastFromChannel(feedCtx, sub)
		}()
	}
	for _, fn := range extra {
		sub := b.dispatcher.Subscribe()
		b.wg.Add(1)
		go func(fn func(<-chan models.StoredRow)) {
			defer b.wg.Done()
			fn(sub)
		}(fn)
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.dispatcher.Run(feedCtx)
	}()

	return b, nil
}

// Dropped returns how many row deliveries the subscribers missed
func (b *baseNode) Dropped() int64 {
	if b.dispatcher == nil {
		return 0
	}
	return b.dispatcher.GetDroppedCount()
}

// Close stops the feed, waits for the subscribers to drain and flushes the
// trace. It is safe to call more than once.
func (b *baseNode) Close() error {
	b.closeOnce.Do(func() {
		if b.stopFeed != nil {
			b.stopFeed()
			b.wg.Wait()
			b.log.Info("row feed closed",
				zap.Int("subscribers", b.dispatcher.GetSubscriberCount()),
				zap.Int64("dropped", b.dispatcher.GetDroppedCount()))
		}
		if b.rec != nil {
			b.closeErr = b.rec.Close()
		}
	})
	return b.closeErr
}

// printRows writes every stored row, tagged with the current phase when
// phase is set, until the channel closes
func printRows(out io.Writer, phase func() string) func(<-chan models.StoredRow) {
	return func(rows <-chan models.StoredRow) {
		for row := range rows {
			if phase == nil {
				fmt.Fprintln(out, formatRow(row))
				continue
			}
			fmt.Fprintf(out, "%s  %s\n", formatRow(row), phase())
		}
	}
}
