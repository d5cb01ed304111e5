package room

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	payload := testRoomPayload(t)
	id, err := store.SaveProject(ctx, "user-1", payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, payload, got.Payload)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_MarkerProject(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	payload := NewMarkerProject("Hallway", []RecordedPoint{{X: 1, Y: 0, Z: 2}, {X: 3, Y: 0, Z: 4}})
	id, err := store.SaveProject(ctx, "user-1", payload)
	require.NoError(t, err)

	got, err := store.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Payload.Room)
	require.Len(t, got.Payload.Markers, 2)
	assert.Equal(t, 3.0, got.Payload.Markers[1].Position.X)
}

func TestSQLiteStore_ListProjects(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	clock := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, name := range []string{"Kitchen", "Bedroom", "Office"} {
		_, err := store.SaveProject(ctx, "alice", ProjectPayload{Name: name})
		require.NoError(t, err)
	}
	_, err := store.SaveProject(ctx, "bob", ProjectPayload{Name: "Garage"})
	require.NoError(t, err)

	projects, err := store.ListProjects(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "Kitchen", projects[0].Payload.Name)
	assert.Equal(t, "Bedroom", projects[1].Payload.Name)
	assert.Equal(t, "Office", projects[2].Payload.Name)
	assert.True(t, projects[0].CreatedAt.Before(projects[2].CreatedAt))

	none, err := store.ListProjects(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestSQLiteStore_EmptyUser(t *testing.T) {
	store := openTestStore(t)
	_, err := store.SaveProject(context.Background(), "", ProjectPayload{Name: "x"})
	assert.ErrorContains(t, err, "user ID is empty")
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "projects.db")

	store, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	id, err := store.SaveProject(ctx, "u1", ProjectPayload{Name: "Persisted"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Payload.Name)
}

func TestOpenStore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "p.db")

	store, closeFn, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	assert.NoError(t, closeFn())

	cfg.Store = StoreConfig{Driver: "http", URL: "http://localhost:3000", Token: "t"}
	store, closeFn, err = OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &ProjectClient{}, store)
	assert.NoError(t, closeFn())

	cfg.Store.Driver = "ftp"
	_, _, err = OpenStore(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown store driver")
}
