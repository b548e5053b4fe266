package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// Manager owns a sandboxed LState holding the loaded effect hook scripts and
// dispatches tick hooks into it. It satisfies the combat engine's effect hook
// runner interface.
//
// The LState is single-threaded; the mutex serializes concurrent hook calls.
type Manager struct {
	mu     sync.Mutex
	state  *lua.LState
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager with no scripts loaded. RunEffectTick is a
// no-op until LoadDirectory succeeds.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VM.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting: roller must be non-nil")
	}
	if logger == nil {
		panic("scripting: logger must be non-nil")
	}
	return &Manager{
		roller: roller,
		logger: logger,
	}
}

// LoadDirectory creates a sandboxed VM, registers the game.* modules, then
// executes every *.lua file in dir in lexicographic order. Loading again
// replaces the previous VM.
//
// Precondition: dir must be a readable directory.
// Postcondition: The VM is ready for RunEffectTick, or an error is returned
// and the previous VM (if any) stays active.
func (m *Manager) LoadDirectory(dir string, instLimit int) error {
	L := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(dir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.state != nil {
		m.state.Close()
	}
	m.state = L
	m.mu.Unlock()

	m.logger.Info("effect hook scripts loaded",
		zap.String("dir", dir),
		zap.Int("files", len(luaFiles)))
	return nil
}

// Close releases the VM. The Manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}

// RunEffectTick calls the named Lua global function with the bearer's name
// and the effect's remaining duration. The hook's string return value becomes
// a combat log message; returning nil yields no message. Lua runtime errors
// are returned for the caller to log.
//
// Postcondition: Returns ("", nil) when no VM is loaded or the hook is not
// defined.
func (m *Manager) RunEffectTick(_ context.Context, hook, bearer string, remaining int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return "", nil
	}
	fn := m.state.GetGlobal(hook)
	if fn == lua.LNil {
		return "", nil
	}

	if err := m.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(bearer), lua.LNumber(remaining)); err != nil {
		return "", fmt.Errorf("scripting: hook %q: %w", hook, err)
	}

	ret := m.state.Get(-1)
	m.state.Pop(1)
	if s, ok := ret.(lua.LString); ok {
		return string(s), nil
	}
	return "", nil
}
