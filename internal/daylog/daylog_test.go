package daylog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/storage"
)

func TestFormatDay(t *testing.T) {
	tests := []struct {
		day  int
		want string
	}{
		{1, "01"},
		{9, "09"},
		{10, "10"},
		{42, "42"},
		{99, "99"},
		{100, "100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDay(tt.day))
	}
	assert.Equal(t, "07.csv", FileName(7))
}

func TestResolve_Empty(t *testing.T) {
	day, err := NewResolver(storage.NewMemory()).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1, day)
}

func TestResolve_ContiguousRun(t *testing.T) {
	for k := 1; k <= 12; k++ {
		mem := storage.NewMemory()
		for d := 1; d <= k; d++ {
			require.NoError(t, mem.Overwrite(FileName(d), models.CSVHeader+"\n"))
		}

		day, err := NewResolver(mem).Resolve()
		require.NoError(t, err)
		assert.Equal(t, k+1, day, "files 1..%d present", k)
	}
}

func TestResolve_FirstGapWins(t *testing.T) {
	mem := storage.NewMemory()
	for _, d := range []int{1, 2, 4, 5} {
		require.NoError(t, mem.Overwrite(FileName(d), ""))
	}

	day, err := NewResolver(mem).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 3, day)
}

func TestResolve_IgnoresUnpaddedNames(t *testing.T) {
	mem := storage.NewMemory()
	require.NoError(t, mem.Overwrite("1.csv", ""))

	day, err := NewResolver(mem).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1, day)
}

func TestResolve_StorageFailure(t *testing.T) {
	mem := storage.NewMemory()
	mem.Fail = errors.New("no card")

	_, err := NewResolver(mem).Resolve()
	assert.ErrorIs(t, err, mem.Fail)
}

func TestStore_RowFollowsHeader(t *testing.T) {
	dir, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)
	store := NewStore(dir)

	require.NoError(t, store.Open(3))
	require.NoError(t, store.AppendRow(3, models.Row{
		Accel: models.Value(1.5),
		Pulse: models.Value(150),
		Vol:   models.Value(40),
	}))

	content, err := os.ReadFile(filepath.Join(dir.Root(), "03.csv"))
	require.NoError(t, err)
	assert.Equal(t, "accel,pulse,vol\n1.5,150,40\n", string(content))
}

// Opening the same day twice is destructive: callers open a day once per
// initialise, and a second open starts that day's log over.
func TestStore_SecondOpenTruncates(t *testing.T) {
	mem := storage.NewMemory()
	store := NewStore(mem)

	require.NoError(t, store.Open(1))
	require.NoError(t, store.AppendRow(1, models.Row{Accel: models.Value(1), Vol: models.Value(2)}))
	require.NoError(t, store.AppendRow(1, models.Row{Accel: models.Value(3), Vol: models.Value(4)}))

	require.NoError(t, store.Open(1))

	content, ok := mem.Read("01.csv")
	require.True(t, ok)
	assert.Equal(t, "accel,pulse,vol\n", content)
}

func TestStore_InvalidDay(t *testing.T) {
	store := NewStore(storage.NewMemory())
	assert.Error(t, store.Open(0))
}

func TestStore_PropagatesStorageErrors(t *testing.T) {
	mem := storage.NewMemory()
	store := NewStore(mem)
	mem.Fail = errors.New("card full")

	assert.ErrorIs(t, store.Open(1), mem.Fail)
	assert.ErrorIs(t, store.AppendRow(1, models.Row{}), mem.Fail)
}
