package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/aggregator"
	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/encoding"
	"github.com/snore/snore-cli/internal/node"
	"github.com/snore/snore-cli/internal/scenario"
	"github.com/snore/snore-cli/internal/sensor"
	"github.com/snore/snore-cli/internal/staging"
	"github.com/snore/snore-cli/internal/transport"
)

// nodeFlags are the per-node flags that override config values
type nodeFlags struct {
	transport string
	group     int
	encoding  string
	listen    string
	peer      string
	broker    string
	serial    uint32
	dir       string
	scenario  string
	interval  string
}

func (f *nodeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.transport, "transport", "", "Radio transport: udp|mqtt|loopback")
	cmd.Flags().IntVar(&f.group, "group", 0, "Radio group")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "Radio encoding: json|protobuf")
	cmd.Flags().StringVar(&f.listen, "listen", "", "UDP listen address")
	cmd.Flags().StringVar(&f.peer, "peer", "", "UDP peer address")
	cmd.Flags().StringVar(&f.broker, "broker", "", "MQTT broker URL")
	cmd.Flags().Uint32Var(&f.serial, "serial", 0, "Device serial (random when 0)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "Storage directory for day logs")
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "Sleep scenario for simulated sensors")
	cmd.Flags().StringVar(&f.interval, "rate", "", "Sampling rate, e.g. 5hz")
}

func (f *nodeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("transport") {
		cfg.Radio.Transport = f.transport
	}
	if changed("group") {
		cfg.Radio.Group = f.group
	}
	if changed("encoding") {
		cfg.Radio.Encoding = f.encoding
	}
	if changed("listen") {
		cfg.Radio.Listen = f.listen
	}
	if changed("peer") {
		cfg.Radio.Peer = f.peer
	}
	if changed("broker") {
		cfg.Radio.Broker = f.broker
	}
	if changed("serial") {
		cfg.Radio.Serial = f.serial
	}
	if changed("dir") {
		cfg.Storage.Dir = f.dir
	}
	if changed("scenario") {
		cfg.Sensors.Scenario = f.scenario
	}
	if changed("rate") {
		if d, err := parseTickRate(f.interval); err == nil {
			cfg.Sampling.Interval = d
		} else {
			// Validate reports the non-positive interval
			cfg.Sampling.Interval = 0
		}
	}
}

func parseTickRate(rate string) (time.Duration, error) {
	var hz float64
	_, err := fmt.Sscanf(rate, "%fhz", &hz)
	if err != nil {
		return 0, err
	}
	if hz <= 0 {
		return 0, fmt.Errorf("rate must be positive")
	}
	return time.Duration(float64(time.Second) / hz), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// withDuration bounds ctx by a duration flag; empty means unbounded
func withDuration(ctx context.Context, duration string) (context.Context, context.CancelFunc, error) {
	if duration == "" {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid duration: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, cancel, nil
}

func identityFor(cfg config.Config) device.Identity {
	if cfg.Radio.Serial != 0 {
		return device.StaticIdentity(cfg.Radio.Serial)
	}
	return device.NewRandomIdentity()
}

// serveFunc runs a radio's receive side until ctx is cancelled
type serveFunc func(ctx context.Context) error

// openRadio builds the configured network radio. Loopback radios come in
// pairs and are built by the caller.
func openRadio(cfg config.Config, serial uint32, log *zap.Logger) (transport.Radio, serveFunc, error) {
	format, err := encoding.ParseFormat(cfg.Radio.Encoding)
	if err != nil {
		return nil, nil, err
	}
	codec := encoding.NewCodec(format)

	switch cfg.Radio.Transport {
	case "udp":
		radio := transport.NewUDPRadio(cfg.Radio.Listen, cfg.Radio.Peer, cfg.Radio.Group, serial, codec, log)
		if err := radio.Open(); err != nil {
			return nil, nil, err
		}
		return radio, radio.Serve, nil
	case "mqtt":
		client, err := transport.DialMQTT(transport.MQTTConfig{
			Broker:   cfg.Radio.Broker,
			ClientID: fmt.Sprintf("%s-%d", cfg.Radio.ClientID, serial),
			Username: cfg.Radio.Username,
			Password: cfg.Radio.Password,
			QoS:      cfg.Radio.QoS,
		})
		if err != nil {
			return nil, nil, err
		}
		radio := transport.NewMQTTRadio(client, cfg.Radio.QoS, cfg.Radio.Group, serial, codec, log)
		serve := func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}
		return radio, serve, nil
	}
	return nil, nil, fmt.Errorf("transport %q needs both nodes in one process; use simulate", cfg.Radio.Transport)
}

func radioAddress(cfg config.Config) string {
	if cfg.Radio.Transport == "mqtt" {
		return fmt.Sprintf("%s (topic %s)", cfg.Radio.Broker, transport.Topic(cfg.Radio.Group))
	}
	return "udp://" + cfg.Radio.Listen + " -> " + cfg.Radio.Peer
}

func loadRegistry() (*scenario.Registry, error) {
	registry, err := scenario.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in scenarios: %w", err)
	}
	if dir := getScenarioDir(); dir != "" {
		if err := registry.LoadFromDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load scenarios from %s: %w", dir, err)
		}
	}
	return registry, nil
}

// getScenarioDir finds extra scenario files next to the working directory
// or the executable, or returns ""
func getScenarioDir() string {
	if _, err := os.Stat("scenarios"); err == nil {
		return "scenarios"
	}

	exe, err := os.Executable()
	if err == nil {
		dir := filepath.Join(filepath.Dir(exe), "scenarios")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	return ""
}

// newSimulatedSensors starts the configured scenario
func newSimulatedSensors(cfg config.Config) (*sensor.Simulated, *scenario.Scenario, error) {
	registry, err := loadRegistry()
	if err != nil {
		return nil, nil, err
	}
	scen, err := registry.Get(cfg.Sensors.Scenario)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load scenario '%s': %w", cfg.Sensors.Scenario, err)
	}

	seed := cfg.Sensors.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return sensor.NewSimulated(scenario.NewEngine(scen), seed), scen, nil
}

func stationaryConfig(cfg config.Config) (node.StationaryConfig, error) {
	policy, err := staging.ParsePolicy(cfg.Staging.Policy)
	if err != nil {
		return node.StationaryConfig{}, err
	}
	return node.StationaryConfig{
		Policy:        policy,
		StoreInterval: cfg.Store.Interval,
		AutoStore:     cfg.Store.Interval == 0,
	}, nil
}

func wristwatchConfig(cfg config.Config) (node.WristwatchConfig, error) {
	policy, err := aggregator.ParseEmptyWindowPolicy(cfg.Sampling.EmptyWindow)
	if err != nil {
		return node.WristwatchConfig{}, err
	}
	return node.WristwatchConfig{
		Interval:            cfg.Sampling.Interval,
		MeasuresPerInterval: cfg.Sampling.MeasuresPerInterval,
		Aggregator: aggregator.Config{
			IntervalSize: aggregator.IntervalSize,
			EmptyWindow:  policy,
			Sentinel:     cfg.Sampling.Sentinel,
		},
	}, nil
}
