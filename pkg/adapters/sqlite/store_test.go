package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateStore = (*Store)(nil)

func openTempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStore_Contract(t *testing.T) {
	store, _ := openTempStore(t)
	ports.RunStateStoreContract(t, store)
}

func TestStore_InMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ports.RunStateStoreContract(t, store)
}

func TestStore_ReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	store, path := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", domain.NewTreeState("s1", "guard")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "guard", loaded.TreeID)

	var applied int
	require.NoError(t, reopened.sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestStore_ListByTree(t *testing.T) {
	store, _ := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "b", domain.NewTreeState("b", "guard")))
	require.NoError(t, store.Save(ctx, "a", domain.NewTreeState("a", "guard")))
	require.NoError(t, store.Save(ctx, "c", domain.NewTreeState("c", "patrol")))

	ids, err := store.ListByTree(ctx, "guard")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	// Upsert moves a session to its new tree.
	require.NoError(t, store.Save(ctx, "a", domain.NewTreeState("a", "patrol")))
	ids, err = store.ListByTree(ctx, "patrol")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestExtractUp(t *testing.T) {
	assert.Equal(t, "\nCREATE x;\n", extractUp("-- +migrate Up\nCREATE x;\n-- +migrate Down\nDROP x;"))
	assert.Equal(t, "CREATE y;", extractUp("CREATE y;"))
}
