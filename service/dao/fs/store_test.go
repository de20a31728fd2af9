package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vigil/service/dao"
)

type entry struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func entryKey(e *entry) string { return e.ID }

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), "nested", "entries.json")

	s, err := New[string, entry](location, entryKey)
	require.NoError(t, err)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	created := time.Date(2024, 5, 1, 10, 30, 0, 123000000, time.UTC)
	records := map[string]*entry{
		"e1": {ID: "e1", Status: "pending", CreatedAt: created},
		"e2": {ID: "e2", Status: "approved", CreatedAt: created.Add(time.Minute)},
	}
	require.NoError(t, s.SaveAll(ctx, records))

	reopened, err := New[string, entry](location, entryKey)
	require.NoError(t, err)
	loaded, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "approved", loaded["e2"].Status)
	assert.True(t, created.Equal(loaded["e1"].CreatedAt))

	delete(records, "e1")
	require.NoError(t, s.SaveAll(ctx, records))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	files, err := os.ReadDir(filepath.Dir(location))
	require.NoError(t, err)
	assert.Len(t, files, 1, "temporary documents must not be left behind")
}

func TestStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(location, []byte("[{broken"), 0o644))

	s, err := New[string, entry](location, entryKey)
	require.NoError(t, err)
	_, err = s.Load(ctx)
	assert.True(t, errors.Is(err, dao.ErrCorrupt))
}

func TestNew_Validation(t *testing.T) {
	_, err := New[string, entry]("", entryKey)
	assert.Error(t, err)
	_, err = New[string, entry](filepath.Join(t.TempDir(), "x.json"), nil)
	assert.Error(t, err)
}
