package scripting_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gridfall/internal/game/dice"
	"github.com/cory-johannsen/gridfall/internal/scripting"
)

// maxSource always rolls the highest face.
type maxSource struct{}

func (maxSource) Intn(n int) int { return n - 1 }

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(maxSource{}, logger)
	return scripting.NewManager(roller, logger), logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_RunEffectTick_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "hooks.lua", `
		function on_tick_burning(bearer, remaining)
			return bearer .. " burns for " .. remaining .. " more rounds"
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_burning", "Goblin", 2)
	require.NoError(t, err)
	assert.Equal(t, "Goblin burns for 2 more rounds", msg)
}

func TestManager_RunEffectTick_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_unknown", "Goblin", 1)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestManager_RunEffectTick_NoVMLoaded_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_burning", "Goblin", 1)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestManager_RunEffectTick_RuntimeError_Returned(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "bad.lua", `
		function on_tick_cursed()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_cursed", "Goblin", 1)
	assert.Error(t, err)
	assert.Empty(t, msg)
}

func TestManager_RunEffectTick_NilReturn_NoMessage(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "quiet.lua", `
		function on_tick_quiet()
			return nil
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_quiet", "Goblin", 1)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestManager_LoadDirectory_EmptyDir_NoError(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	require.NoError(t, mgr.LoadDirectory(t.TempDir(), 0))
}

func TestManager_LoadDirectory_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.LoadDirectory(dir, 0))
}

func TestManager_LoadDirectory_MultipleFiles_OrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`suffix = " smolders"`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function on_tick_smolder(bearer, remaining)
			return bearer .. suffix
		end
	`), 0644))
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_smolder", "Goblin", 1)
	require.NoError(t, err)
	assert.Equal(t, "Goblin smolders", msg)
}

func TestManager_LoadDirectory_ReplacesPreviousVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	first := writeTempLua(t, "v1.lua", `function on_tick_x() return "old" end`)
	require.NoError(t, mgr.LoadDirectory(first, 0))
	second := writeTempLua(t, "v2.lua", `function on_tick_x() return "new" end`)
	require.NoError(t, mgr.LoadDirectory(second, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_x", "Goblin", 1)
	require.NoError(t, err)
	assert.Equal(t, "new", msg)
}

func TestManager_GameRoll_AvailableInHooks(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "roll.lua", `
		function on_tick_bleeding(bearer, remaining)
			local dmg = game.roll("2d4")
			return bearer .. " bleeds for " .. dmg
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_bleeding", "Goblin", 3)
	require.NoError(t, err)
	assert.Equal(t, "Goblin bleeds for 8", msg, "maxSource rolls every d4 at 4")
}

func TestManager_GameRoll_BadSpecRaisesLuaError(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "roll.lua", `
		function on_tick_garbled()
			return game.roll("not dice")
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	_, err := mgr.RunEffectTick(context.Background(), "on_tick_garbled", "Goblin", 1)
	assert.Error(t, err)
}

func TestManager_GameLog_WritesInfo(t *testing.T) {
	mgr, logs := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "log.lua", `
		function on_tick_noisy(bearer, remaining)
			game.log(bearer .. " is still afflicted")
			return nil
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	_, err := mgr.RunEffectTick(context.Background(), "on_tick_noisy", "Goblin", 1)
	require.NoError(t, err)

	found := false
	for _, e := range logs.All() {
		if e.Level == zap.InfoLevel && e.Message == "script log" {
			found = true
			break
		}
	}
	assert.True(t, found, "expected Info log from game.log")
}

func TestManager_Close_ReleasesVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "init.lua", `function on_tick_x() return "x" end`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))
	mgr.Close()

	msg, err := mgr.RunEffectTick(context.Background(), "on_tick_x", "Goblin", 1)
	assert.NoError(t, err)
	assert.Empty(t, msg)
}

func TestNewManager_PanicsOnNilRoller(t *testing.T) {
	logger := zap.NewNop()
	assert.Panics(t, func() {
		scripting.NewManager(nil, logger)
	})
}

func TestNewManager_PanicsOnNilLogger(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), zap.NewNop())
	assert.Panics(t, func() {
		scripting.NewManager(roller, nil)
	})
}

func TestProperty_RunEffectTickMissingHookNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))
	rapid.Check(t, func(rt *rapid.T) {
		hook := rapid.StringMatching(`[a-z_]{1,20}`).Draw(rt, "hook")
		bearer := rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(rt, "bearer")
		remaining := rapid.IntRange(0, 10).Draw(rt, "remaining")
		msg, err := mgr.RunEffectTick(context.Background(), hook, bearer, remaining)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		_ = msg
	})
}

func TestProperty_RunEffectTickConcurrent_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	defer mgr.Close()
	dir := writeTempLua(t, "hooks.lua", `
		function on_tick_shared(bearer, remaining)
			return bearer .. " ticks"
		end
	`)
	require.NoError(t, mgr.LoadDirectory(dir, 0))

	const goroutines = 10
	const callsEach = 5
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				msg, err := mgr.RunEffectTick(context.Background(), "on_tick_shared", "Goblin", 1)
				assert.NoError(t, err)
				assert.Equal(t, "Goblin ticks", msg)
			}
		}()
	}
	wg.Wait()
}
