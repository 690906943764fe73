package node

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/staging"
	"github.com/snore/snore-cli/internal/storage"
	"github.com/snore/snore-cli/internal/transport"
)

type fakeTracer struct {
	values []models.Message
	stores int
}

func (f *fakeTracer) RecordValue(msg models.Message) error {
	f.values = append(f.values, msg)
	return nil
}

func (f *fakeTracer) RecordStore() error {
	f.stores++
	return nil
}

func newStationary(t *testing.T, cfg StationaryConfig) (*Stationary, *storage.Memory, *device.LogIndicator) {
	t.Helper()
	medium := storage.NewMemory()
	indicator := device.NewLogIndicator(zap.NewNop())
	return NewStationary(cfg, medium, device.StaticIdentity(8675309), indicator, zap.NewNop()), medium, indicator
}

func read(t *testing.T, m *storage.Memory, name string) string {
	t.Helper()
	content, ok := m.Read(name)
	require.True(t, ok, "%s missing", name)
	return content
}

func TestInitialise_FreshMedium(t *testing.T) {
	s, medium, indicator := newStationary(t, StationaryConfig{})

	require.NoError(t, s.Initialise(context.Background()))

	assert.Equal(t, 1, s.Day())
	assert.Equal(t, "accel,pulse,vol\n", read(t, medium, "01.csv"))
	assert.Equal(t, "8675309", read(t, medium, "id.txt"))
	assert.Equal(t, 1, indicator.Clears())
}

func TestInitialise_NextDay(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{})
	for _, name := range []string{"01.csv", "02.csv", "04.csv"} {
		require.NoError(t, medium.Overwrite(name, "accel,pulse,vol\n1,2,3\n"))
	}

	require.NoError(t, s.Initialise(context.Background()))
	assert.Equal(t, 3, s.Day())
	assert.Equal(t, "accel,pulse,vol\n", read(t, medium, "03.csv"))
	assert.Equal(t, "accel,pulse,vol\n1,2,3\n", read(t, medium, "04.csv"), "later files untouched")
}

func TestInitialise_StorageFailure(t *testing.T) {
	s, medium, indicator := newStationary(t, StationaryConfig{})
	medium.Fail = errors.New("card removed")

	err := s.Initialise(context.Background())
	assert.ErrorIs(t, err, medium.Fail)
	assert.Equal(t, 0, s.Day())
	assert.Equal(t, 0, indicator.Clears())
}

func TestInitialise_Cancelled(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Initialise(ctx), context.Canceled)
	assert.Empty(t, medium.Names())
}

func TestStoreData_BeforeInitialise(t *testing.T) {
	s, _, _ := newStationary(t, StationaryConfig{})
	_, err := s.StoreData()
	assert.ErrorIs(t, err, ErrNotInitialised)
}

func TestStoreData_RetainRepeatsStaleValues(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{Policy: staging.PolicyRetain})
	require.NoError(t, s.Initialise(context.Background()))

	s.ReceiveData("accel", 5)
	s.ReceiveData("vol", 3)
	_, err := s.StoreData()
	require.NoError(t, err)

	s.ReceiveData("pulse", 72)
	_, err = s.StoreData()
	require.NoError(t, err)
	_, err = s.StoreData()
	require.NoError(t, err)

	assert.Equal(t, "accel,pulse,vol\n5,,3\n5,72,3\n5,72,3\n", read(t, medium, "01.csv"))
	assert.Equal(t, 3, s.Rows())
}

func TestStoreData_ResetClearsBetweenRows(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{Policy: staging.PolicyReset})
	require.NoError(t, s.Initialise(context.Background()))

	s.ReceiveData("accel", 5)
	s.ReceiveData("pulse", 72)
	s.ReceiveData("vol", 3)
	_, err := s.StoreData()
	require.NoError(t, err)
	s.ReceiveData("vol", 4)
	_, err = s.StoreData()
	require.NoError(t, err)

	assert.Equal(t, "accel,pulse,vol\n5,72,3\n,,4\n", read(t, medium, "01.csv"))
}

func TestReceiveData_UnknownName(t *testing.T) {
	s, _, _ := newStationary(t, StationaryConfig{})
	tracer := &fakeTracer{}
	s.SetTracer(tracer)

	assert.False(t, s.ReceiveData("temp", 21))
	assert.True(t, s.ReceiveData("vol", 21))
	assert.Len(t, tracer.values, 1)
	assert.Equal(t, 21.0, s.Staged().Vol.Value)
}

func TestHandleMessage_AutoStoreOnVol(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{AutoStore: true})
	require.NoError(t, s.Initialise(context.Background()))
	tracer := &fakeTracer{}
	s.SetTracer(tracer)
	rows := make(chan models.StoredRow, 4)
	s.SetRowSink(rows)

	s.HandleMessage(models.Message{Name: "accel", Value: 1})
	s.HandleMessage(models.Message{Name: "pulse", Value: 60})
	assert.Equal(t, 0, s.Rows())
	s.HandleMessage(models.Message{Name: "vol", Value: 2})

	assert.Equal(t, "accel,pulse,vol\n1,60,2\n", read(t, medium, "01.csv"))
	assert.Equal(t, 1, tracer.stores)
	require.Len(t, rows, 1)
	stored := <-rows
	assert.Equal(t, 1, stored.Day)
	assert.Equal(t, "1,60,2", stored.Row.CSVLine())
}

func TestStoreData_FullSinkDoesNotBlock(t *testing.T) {
	s, _, _ := newStationary(t, StationaryConfig{})
	require.NoError(t, s.Initialise(context.Background()))
	s.SetRowSink(make(chan models.StoredRow))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.StoreData()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StoreData blocked on row sink")
	}
}

func TestStoreData_AppendFailure(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{})
	require.NoError(t, s.Initialise(context.Background()))
	medium.Fail = errors.New("card full")

	_, err := s.StoreData()
	assert.ErrorIs(t, err, medium.Fail)
	assert.Equal(t, 0, s.Rows())
}

func TestRun_StoresOnInterval(t *testing.T) {
	s, medium, _ := newStationary(t, StationaryConfig{StoreInterval: 10 * time.Millisecond})
	require.NoError(t, s.Initialise(context.Background()))
	watch, base := transport.NewLoopbackPair(1, 1, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, base) }()

	require.Eventually(t, func() bool {
		_ = watch.SendValue(ctx, "vol", 7)
		content, _ := medium.Read("01.csv")
		return strings.Contains(content, "0,,7\n")
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, s.Rows(), 1)
}
