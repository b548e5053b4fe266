// Package combat implements the turn-based combat engine: session and
// combatant state, initiative scheduling, action resolution, status effects,
// death saving throws, NPC decisions, and reward resolution.
package combat

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a combat session.
type Status string

const (
	StatusInitializing   Status = "initializing"
	StatusInProgress     Status = "in_progress"
	StatusAwaitingPlayer Status = "awaiting_player"
	StatusResolving      Status = "resolving"
	StatusFinished       Status = "finished"
)

// InitiativeType selects how initiative is rolled at combat start.
type InitiativeType string

const (
	// InitiativeIndividual rolls d20 + DEX modifier per combatant.
	InitiativeIndividual InitiativeType = "individual"
	// InitiativeGroup rolls once per team; members share the result.
	InitiativeGroup InitiativeType = "group"
	// InitiativeSide ranks whole teams, then randomizes order within a team.
	InitiativeSide InitiativeType = "side"
	// InitiativeReroll behaves like individual but re-rolls every round.
	InitiativeReroll InitiativeType = "reroll"
)

// Valid reports whether t is a known initiative type.
func (t InitiativeType) Valid() bool {
	switch t {
	case InitiativeIndividual, InitiativeGroup, InitiativeSide, InitiativeReroll:
		return true
	}
	return false
}

// ActionType identifies what a combatant did on their turn.
type ActionType string

const (
	ActionAttack  ActionType = "attack"
	ActionDefend  ActionType = "defend"
	ActionDodge   ActionType = "dodge"
	ActionFlee    ActionType = "flee"
	ActionSpell   ActionType = "spell"
	ActionItem    ActionType = "item"
	ActionAbility ActionType = "ability"
	ActionPass    ActionType = "pass"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionAttack, ActionDefend, ActionDodge, ActionFlee,
		ActionSpell, ActionItem, ActionAbility, ActionPass:
		return true
	}
	return false
}

// Combatant is one participant's combat-local state, snapshotted from their
// character when the session starts. Only HP is synced back to the character
// record; everything else is session-local.
//
// Invariant: IsAlive is false once the combatant is dead or has fled; it does
// not mean the underlying character is dead. CanAct is false while the
// combatant is unconscious.
type Combatant struct {
	ID          int64
	SessionID   int64
	CharacterID int64
	TeamID      int
	IsPlayer    bool
	Name        string

	Initiative int
	TurnOrder  int
	TurnCount  int

	CurrentHP  int
	MaxHP      int
	ArmorClass int

	// Threat grows by half the damage this combatant deals and drives
	// NPC target selection.
	Threat int

	IsAlive bool
	CanAct  bool

	// StatusEffects maps effect id to remaining duration in turns.
	StatusEffects map[string]int
}

// HasEffect reports whether the combatant currently bears the given effect.
func (c *Combatant) HasEffect(effectID string) bool {
	_, ok := c.StatusEffects[effectID]
	return ok
}

// Action is one resolved combat action, recorded for the session history.
type Action struct {
	ID          int64
	SessionID   int64
	RoundNumber int
	TurnNumber  int

	ActorID  int64
	TargetID int64 // 0 when the action has no target

	Type      ActionType
	Roll      int
	Total     int
	Damage    int
	Healing   int
	Hit       bool
	Critical  bool
	SpellName string
	ItemName  string
	AbilityID string

	Description string
	CreatedAt   time.Time
}

// Session is the aggregate state of one combat encounter.
type Session struct {
	ID             int64
	Status         Status
	RoundNumber    int
	CurrentTurn    int
	WinnerTeamID   *int
	ZoneID         int64 // 0 when no zone is attached
	InitiativeType InitiativeType
	StartedAt      time.Time
	EndedAt        *time.Time

	Combatants []*Combatant
	Actions    []*Action
}

// ActiveCombatants returns the combatants still in the fight, sorted by turn
// order. Unconscious combatants are included; they spend their turns on death
// saving throws. Dead and fled combatants are not.
func (s *Session) ActiveCombatants() []*Combatant {
	var out []*Combatant
	for _, c := range s.Combatants {
		if c.IsAlive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TurnOrder < out[j].TurnOrder })
	return out
}

// CurrentCombatant returns the combatant whose turn it is, or nil when no
// combatant can act.
func (s *Session) CurrentCombatant() *Combatant {
	actors := s.ActiveCombatants()
	if len(actors) == 0 {
		return nil
	}
	return actors[s.CurrentTurn%len(actors)]
}

// Combatant returns the combatant with the given id, or nil.
func (s *Session) Combatant(id int64) *Combatant {
	for _, c := range s.Combatants {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CombatantForCharacter returns the combatant snapshotted from the given
// character, or nil.
func (s *Session) CombatantForCharacter(characterID int64) *Combatant {
	for _, c := range s.Combatants {
		if c.CharacterID == characterID {
			return c
		}
	}
	return nil
}

// Winner reports whether combat is over: at most one team has living
// combatants left. The winner is nil when nobody is left standing (mutual
// destruction or everyone fled).
func (s *Session) Winner() (winner *int, over bool) {
	teams := make(map[int]struct{})
	for _, c := range s.Combatants {
		if c.IsAlive {
			teams[c.TeamID] = struct{}{}
		}
	}
	if len(teams) > 1 {
		return nil, false
	}
	for t := range teams {
		return &t, true
	}
	return nil, true
}

// recordAction appends an action to the session history, stamping session,
// round, and turn bookkeeping.
func (s *Session) recordAction(a *Action) *Action {
	a.SessionID = s.ID
	a.RoundNumber = s.RoundNumber
	a.TurnNumber = s.CurrentTurn
	a.CreatedAt = time.Now().UTC()
	s.Actions = append(s.Actions, a)
	return a
}
