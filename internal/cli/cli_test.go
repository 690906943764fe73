package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/node"
	"github.com/snore/snore-cli/internal/recorder"
	"github.com/snore/snore-cli/internal/staging"
	"github.com/snore/snore-cli/internal/storage"
)

func TestParseTickRate(t *testing.T) {
	d, err := parseTickRate("5hz")
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, d)

	_, err = parseTickRate("0hz")
	assert.Error(t, err)
	_, err = parseTickRate("fast")
	assert.Error(t, err)
}

func TestFormatRow(t *testing.T) {
	full := formatRow(models.StoredRow{Row: models.Row{Accel: models.Value(1), Pulse: models.Value(150), Vol: models.Value(2)}})
	assert.Contains(t, full, "1,150,2")
	assert.Contains(t, full, renderBar(1, 20))

	unset := formatRow(models.StoredRow{Row: models.Row{Accel: models.Value(1), Vol: models.Value(2)}})
	assert.Contains(t, unset, "1,,2")
	assert.Contains(t, unset, renderBar(0, 20))
}

func TestRenderBar_Clamps(t *testing.T) {
	assert.Equal(t, renderBar(1, 4), renderBar(3, 4))
	assert.Equal(t, renderBar(0, 4), renderBar(-1, 4))
}

func TestNodeFlags_OnlyChangedFlagsOverride(t *testing.T) {
	var f nodeFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--group", "9", "--rate", "10hz", "--dir", "/tmp/x"}))

	cfg := config.Default()
	f.apply(cmd, &cfg)

	assert.Equal(t, 9, cfg.Radio.Group)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, "/tmp/x", cfg.Storage.Dir)
	assert.Equal(t, config.Default().Radio.Transport, cfg.Radio.Transport)
	assert.Equal(t, config.Default().Sensors.Scenario, cfg.Sensors.Scenario)
}

func TestNodeFlags_BadRateFailsValidation(t *testing.T) {
	var f nodeFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--rate", "often"}))

	cfg := config.Default()
	f.apply(cmd, &cfg)
	assert.Error(t, cfg.Validate())
}

func TestStationaryAndWristwatchConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Staging.Policy = "reset"
	cfg.Sampling.EmptyWindow = "sentinel"
	cfg.Sampling.Sentinel = -2

	sc, err := stationaryConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, staging.PolicyReset, sc.Policy)
	assert.True(t, sc.AutoStore)

	cfg.Store.Interval = 4 * time.Second
	sc, err = stationaryConfig(cfg)
	require.NoError(t, err)
	assert.False(t, sc.AutoStore)

	wc, err := wristwatchConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, -2.0, wc.Aggregator.Sentinel)
	assert.Equal(t, 20, wc.MeasuresPerInterval)
}

func TestReplayTrace_RebuildsDayLog(t *testing.T) {
	ctx := context.Background()
	tracePath := filepath.Join(t.TempDir(), "night.ndjson")

	original, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)
	rec, err := recorder.NewRecorder(tracePath)
	require.NoError(t, err)

	live := node.NewStationary(node.StationaryConfig{AutoStore: true}, original, device.StaticIdentity(7), device.NewLogIndicator(nil), zap.NewNop())
	require.NoError(t, live.Initialise(ctx))
	live.SetTracer(rec)
	for _, msg := range []models.Message{
		{Name: "accel", Value: 9.8}, {Name: "pulse", Value: 150}, {Name: "vol", Value: 40},
		{Name: "accel", Value: 12}, {Name: "vol", Value: 35},
		{Name: "temp", Value: 21},
	} {
		live.HandleMessage(msg)
	}
	require.NoError(t, rec.Close())

	rebuilt, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)
	st := node.NewStationary(node.StationaryConfig{}, rebuilt, device.StaticIdentity(7), device.NewLogIndicator(nil), zap.NewNop())
	require.NoError(t, st.Initialise(ctx))

	require.NoError(t, replayTrace(ctx, recorder.NewReplayer(tracePath, 0), st))

	want, err := os.ReadFile(filepath.Join(original.Root(), "01.csv"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(rebuilt.Root(), "01.csv"))
	require.NoError(t, err)
	assert.Equal(t, "accel,pulse,vol\n9.8,150,40\n12,150,35\n", string(want))
	assert.Equal(t, string(want), string(got))
	assert.Equal(t, 2, st.Rows())
}

func TestVersionCommand(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	runVersion(cmd, nil)
	assert.Contains(t, out.String(), "SNORE CLI v"+Version)
}

func TestNewBaseNode_TraceAndSubscriber(t *testing.T) {
	cfg := config.Default()
	cfg.Trace.Path = filepath.Join(t.TempDir(), "night.ndjson")

	delivered := make(chan models.StoredRow, 1)
	collect := func(rows <-chan models.StoredRow) {
		for row := range rows {
			delivered <- row
		}
	}

	medium := storage.NewMemory()
	base, err := newBaseNode(context.Background(), cfg, medium, device.StaticIdentity(7), zap.NewNop(), collect)
	require.NoError(t, err)
	defer base.Close()

	for _, msg := range []models.Message{
		{Name: "accel", Value: 9.8}, {Name: "pulse", Value: 150}, {Name: "vol", Value: 40},
	} {
		base.node.HandleMessage(msg)
	}

	select {
	case row := <-delivered:
		assert.Equal(t, 1, row.Day)
		assert.Equal(t, "9.8,150,40", row.Row.CSVLine())
		assert.NotEmpty(t, row.At)
	case <-time.After(2 * time.Second):
		t.Fatal("stored row not delivered to subscriber")
	}

	require.NoError(t, base.Close())
	assert.Equal(t, int64(0), base.Dropped())

	content, ok := medium.Read("01.csv")
	require.True(t, ok)
	assert.Equal(t, "accel,pulse,vol\n9.8,150,40\n", content)

	data, err := os.ReadFile(cfg.Trace.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)

	var kinds []string
	for _, line := range lines {
		var entry models.TraceEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		kinds = append(kinds, entry.Kind)
	}
	assert.Equal(t, []string{models.TraceValue, models.TraceValue, models.TraceValue, models.TraceStore}, kinds)
}

func TestSimulateCommand_MemoryDayLog(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"simulate", "--memory", "--duration", "1s", "--rate", "200hz", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		globalOpts = GlobalOptions{}
	})

	require.NoError(t, rootCmd.Execute())

	output := out.String()
	assert.Contains(t, output, "SNORE simulation started")
	assert.Contains(t, output, "Phase:")

	marker := "01.csv:\n"
	i := strings.Index(output, marker)
	require.GreaterOrEqual(t, i, 0, output)
	lines := strings.Split(strings.TrimSpace(output[i+len(marker):]), "\n")
	require.GreaterOrEqual(t, len(lines), 2, output)
	assert.Equal(t, models.CSVHeader, lines[0])
	assert.Regexp(t, `^[-\d.]+,[-\d.]*,[-\d.]+$`, lines[1])
}

func TestApplyWristwatchFlags_SwapsUDPAddresses(t *testing.T) {
	defaults := config.Default()

	cmd := &cobra.Command{Use: "wristwatch"}
	wristwatchFlags.register(cmd)
	require.NoError(t, cmd.ParseFlags(nil))
	cfg, err := loadConfig(cmd, applyWristwatchFlags)
	require.NoError(t, err)
	assert.Equal(t, defaults.Radio.Peer, cfg.Radio.Listen)
	assert.Equal(t, defaults.Radio.Listen, cfg.Radio.Peer)

	cmd = &cobra.Command{Use: "wristwatch"}
	wristwatchFlags.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--listen", "127.0.0.1:9000"}))
	cfg, err = loadConfig(cmd, applyWristwatchFlags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Radio.Listen)
	assert.Equal(t, defaults.Radio.Peer, cfg.Radio.Peer)

	cmd = &cobra.Command{Use: "wristwatch"}
	wristwatchFlags.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--transport", "mqtt"}))
	cfg, err = loadConfig(cmd, applyWristwatchFlags)
	require.NoError(t, err)
	assert.Equal(t, defaults.Radio.Listen, cfg.Radio.Listen)
}

func TestStopWhen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	done := func() bool {
		calls++
		return calls >= 3
	}
	go stopWhen(ctx, done, time.Millisecond, cancel)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not stopped once done")
	}
}

func TestPrintRows_TagsPhase(t *testing.T) {
	rows := make(chan models.StoredRow, 1)
	rows <- models.StoredRow{Row: models.Row{Accel: models.Value(1), Pulse: models.Value(60), Vol: models.Value(2)}}
	close(rows)

	var out bytes.Buffer
	printRows(&out, func() string { return "asleep" })(rows)
	assert.Contains(t, out.String(), "1,60,2")
	assert.True(t, strings.HasSuffix(out.String(), "  asleep\n"))
}
