package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the game.* Lua table into L.
//
// game.roll(spec) rolls a dice expression like "2d6+1" and returns the total;
// an unparseable spec raises a Lua error. game.log(msg) writes msg to the
// server log at info level.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: game global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	game := L.NewTable()

	L.SetField(game, "roll", L.NewFunction(func(ls *lua.LState) int {
		spec := ls.CheckString(1)
		result, err := m.roller.RollExpr(spec)
		if err != nil {
			ls.RaiseError("game.roll: %s", err.Error())
			return 0
		}
		ls.Push(lua.LNumber(result.Total()))
		return 1
	}))

	L.SetField(game, "log", L.NewFunction(func(ls *lua.LState) int {
		msg := ls.CheckString(1)
		m.logger.Info("script log", zap.String("message", msg))
		return 0
	}))

	L.SetGlobal("game", game)
}
