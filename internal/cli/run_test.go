package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guardTree = `
id: guard
root: main
blackboard:
  - {name: Done, type: bool}
nodes:
  - {id: main, kind: sequence, children: [wait, finish]}
  - {id: wait, kind: wait_frames, properties: {frames: 2}}
  - {id: finish, kind: set_variable, properties: {target: Done, value: true}}
`

const brokenTree = `
id: broken
root: missing
nodes:
  - {id: lonely, kind: wait_frames, properties: {frames: 1}}
`

func writeTrees(t *testing.T, trees map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for id, body := range trees {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(body), 0o644))
	}
	return dir
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		name       string
		cfg        config.Config
		wantLocker bool
	}{
		{name: "memory", cfg: config.Config{Store: config.StoreMemory}},
		{name: "file", cfg: config.Config{Store: config.StoreFile}},
		{name: "sqlite", cfg: config.Config{Store: config.StoreSQLite, StorePath: filepath.Join(dir, "sessions.db")}},
		{name: "redis", cfg: config.Config{Store: config.StoreRedis, RedisAddr: mr.Addr(), RedisPrefix: "test:"}, wantLocker: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := OpenBackend(tt.cfg, dir)
			require.NoError(t, err)
			defer func() { assert.NoError(t, b.Close()) }()

			assert.Equal(t, tt.wantLocker, b.Locker != nil)
			require.NoError(t, b.Store.Save(ctx, "s1", domain.NewTreeState("s1", "guard")))
			st, err := b.Store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "guard", st.TreeID)
		})
	}

	_, err := OpenBackend(config.Config{Store: "etcd"}, dir)
	assert.Error(t, err)
}

func TestOpenBackend_FileDefaultsToProjectDir(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBackend(config.Config{Store: config.StoreFile}, dir)
	require.NoError(t, err)
	require.NoError(t, b.Store.Save(context.Background(), "s1", domain.NewTreeState("s1", "guard")))

	_, err = os.Stat(filepath.Join(dir, ".arbor", "sessions"))
	assert.NoError(t, err)
}

func TestEnv_RunResumesSession(t *testing.T) {
	ctx := context.Background()
	dir := writeTrees(t, map[string]string{"guard": guardTree})
	env, err := NewEnv(ctx, config.Config{Store: config.StoreFile}, dir, false)
	require.NoError(t, err)
	defer env.Close(ctx)

	opts := RunOptions{Tree: "guard", SessionID: "s1", Frames: 1, Quiet: true, Out: &bytes.Buffer{}}
	for _, want := range []domain.Status{domain.StatusWaiting, domain.StatusWaiting, domain.StatusSuccess} {
		status, err := env.Run(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, want, status)
	}

	st, err := env.Engine.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Frame)

	opts.Fresh = true
	status, err := env.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, status, "fresh runs discard the saved session")

	opts.Tree = "other"
	opts.Fresh = false
	_, err = env.Run(ctx, opts)
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestEnv_RunPrintsFrames(t *testing.T) {
	ctx := context.Background()
	dir := writeTrees(t, map[string]string{"guard": guardTree})
	env, err := NewEnv(ctx, config.Config{}, dir, false)
	require.NoError(t, err)
	defer env.Close(ctx)

	var out bytes.Buffer
	status, err := env.Run(ctx, RunOptions{Tree: "guard", Out: &out, Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, status)

	assert.Contains(t, out.String(), "[   1] waiting")
	assert.Contains(t, out.String(), "[   3] success")
	assert.Contains(t, out.String(), "Finished with")
	assert.Contains(t, out.String(), "Done")
}

func TestEnv_RunCancelled(t *testing.T) {
	dir := writeTrees(t, map[string]string{"guard": guardTree})
	env, err := NewEnv(context.Background(), config.Config{}, dir, false)
	require.NoError(t, err)
	defer env.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = env.Run(ctx, RunOptions{Tree: "guard", Quiet: true, Out: &bytes.Buffer{}})
	assert.NoError(t, err, "interruptions are not failures")
}

func TestEnv_ValidateAll(t *testing.T) {
	ctx := context.Background()
	dir := writeTrees(t, map[string]string{"guard": guardTree, "broken": brokenTree})
	env, err := NewEnv(ctx, config.Config{}, dir, false)
	require.NoError(t, err)
	defer env.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, env.ValidateAll(&out, []string{"guard"}))
	assert.Equal(t, "✓ guard\n", out.String())

	out.Reset()
	err = env.ValidateAll(&out, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 trees are invalid")
	assert.Contains(t, out.String(), "✗ broken")
	assert.Contains(t, out.String(), "✓ guard")

	empty, err := NewEnv(ctx, config.Config{}, t.TempDir(), false)
	require.NoError(t, err)
	assert.Error(t, empty.ValidateAll(&out, nil))
}

func TestOpenBackend_Encrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	sealed, err := OpenBackend(config.Config{Store: config.StoreFile, EncryptionKey: key, RedactPatterns: []string{"Secret"}}, dir)
	require.NoError(t, err)
	st := domain.NewTreeState("s1", "guard")
	st.Variables = []domain.VariableState{{Name: "Secret", Value: "x"}, {Name: "Public", Value: "y"}}
	require.NoError(t, sealed.Store.Save(ctx, "s1", st))

	loaded, err := sealed.Store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Variables, 1)
	assert.Equal(t, "Public", loaded.Variables[0].Name)

	plain, err := OpenBackend(config.Config{Store: config.StoreFile}, dir)
	require.NoError(t, err)
	raw, err := plain.Store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)
	assert.Empty(t, raw.Variables)

	_, err = OpenBackend(config.Config{Store: config.StoreFile, EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short"))}, dir)
	assert.Error(t, err)
}

const shoutTree = `
id: shout
root: shout
blackboard:
  - {name: Word, type: string, value: hey}
  - {name: Echo, type: string}
nodes:
  - {id: shout, kind: call_action, properties: {action: shout, args: {word: $Word, save_to: Echo}}}
`

const shoutActions = `
actions:
  - name: shout
    command: sh
    args: ["-c", "echo $ARBOR_ARG_WORD | tr a-z A-Z"]
`

func TestEnv_ProcessActions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process actions are exercised through sh")
	}
	ctx := context.Background()
	dir := writeTrees(t, map[string]string{"shout": shoutTree})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "actions.yaml"), []byte(shoutActions), 0o644))

	env, err := NewEnv(ctx, config.Config{}, dir, false)
	require.NoError(t, err)
	defer env.Close(ctx)
	assert.Equal(t, []string{"shout"}, env.Actions.Names())

	status, err := env.Run(ctx, RunOptions{Tree: "shout", SessionID: "s1", Interval: 5 * time.Millisecond, Frames: 1000, Quiet: true, Out: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, status)

	st, err := env.Engine.State(ctx, "s1")
	require.NoError(t, err)
	var echo any
	for _, v := range st.Variables {
		if v.Name == "Echo" {
			echo = v.Value
		}
	}
	assert.Equal(t, "HEY", echo)
}
