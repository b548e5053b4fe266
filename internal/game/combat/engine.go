package combat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// CharacterStore loads and persists characters touched by combat.
type CharacterStore interface {
	Get(ctx context.Context, id int64) (*character.Character, error)
	Save(ctx context.Context, c *character.Character) error
}

// InventoryItem is a character's inventory row as combat sees it. Weapon and
// consumable stats are resolved through the catalog by ItemName.
type InventoryItem struct {
	ID          int64
	CharacterID int64
	ItemName    string
	ItemType    string // "weapon", "armor", "consumable", ...
	Quantity    int
	Equipped    bool
	Slot        string // "main_hand", "off_hand", ...
}

// InventoryStore provides the inventory access combat needs: equipped gear
// lookup and consumable usage.
type InventoryStore interface {
	Get(ctx context.Context, id int64) (*InventoryItem, error)
	// EquippedWeapon returns the weapon in main or off hand, or nil when
	// the character fights unarmed.
	EquippedWeapon(ctx context.Context, characterID int64) (*InventoryItem, error)
	// EquippedInSlot returns the item equipped in slot, or nil.
	EquippedInSlot(ctx context.Context, characterID int64, slot string) (*InventoryItem, error)
	// HealingPotion returns a healing potion from the character's
	// inventory, or nil.
	HealingPotion(ctx context.Context, characterID int64) (*InventoryItem, error)
	// Consume decrements the item's quantity, deleting the row at zero.
	Consume(ctx context.Context, item *InventoryItem) error
}

// SessionStore persists combat sessions, combatants, and action history.
type SessionStore interface {
	// Create persists a new session and assigns IDs to it and its combatants.
	Create(ctx context.Context, s *Session) error
	// Save persists the session's current state atomically.
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id int64) (*Session, error)
}

// TerrainSource resolves the terrain type at a grid position. An empty string
// means no terrain data.
type TerrainSource interface {
	TerrainAt(ctx context.Context, zoneID int64, x, y int) (string, error)
}

// EffectHookRunner runs a scripted hook when a status effect ticks on its
// bearer. The returned string is appended to the turn's effect messages.
type EffectHookRunner interface {
	RunEffectTick(ctx context.Context, hook, bearer string, remaining int) (string, error)
}

// DefaultMaxRounds bounds runaway encounters that can never reach a winner.
const DefaultMaxRounds = 100

// Config carries the engine's dependencies.
type Config struct {
	Catalog    *catalog.Catalog
	Source     dice.Source
	Characters CharacterStore
	Inventory  InventoryStore
	Sessions   SessionStore
	Terrain    TerrainSource // optional
	Hooks      EffectHookRunner
	Logger     *zap.Logger
	MaxRounds  int // 0 means DefaultMaxRounds
}

// Engine drives combat sessions. All mutating methods load the session,
// apply the change, and persist through the SessionStore before returning.
type Engine struct {
	catalog    *catalog.Catalog
	src        dice.Source
	characters CharacterStore
	inventory  InventoryStore
	sessions   SessionStore
	terrain    TerrainSource
	hooks      EffectHookRunner
	logger     *zap.Logger
	maxRounds  int
}

// NewEngine constructs an Engine.
//
// Precondition: cfg.Catalog, cfg.Source, cfg.Characters, cfg.Inventory, and
// cfg.Sessions must be non-nil.
func NewEngine(cfg Config) *Engine {
	if cfg.Catalog == nil || cfg.Source == nil || cfg.Characters == nil ||
		cfg.Inventory == nil || cfg.Sessions == nil {
		panic("combat: NewEngine requires catalog, source, and stores")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Engine{
		catalog:    cfg.Catalog,
		src:        cfg.Source,
		characters: cfg.Characters,
		inventory:  cfg.Inventory,
		sessions:   cfg.Sessions,
		terrain:    cfg.Terrain,
		hooks:      cfg.Hooks,
		logger:     logger,
		maxRounds:  maxRounds,
	}
}

// Participant names one character joining a combat on a team.
type Participant struct {
	CharacterID int64
	TeamID      int
}

// StartRequest describes a new combat encounter.
type StartRequest struct {
	Participants   []Participant
	ZoneID         int64
	InitiativeType InitiativeType
}

// Start creates a combat session: characters are snapshotted into combatants,
// initiative is rolled per the requested mode, and turn order assigned by
// descending initiative with randomized ties.
//
// Postcondition: The returned session is persisted with StatusInProgress,
// RoundNumber 1, and every combatant holding a distinct TurnOrder.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if len(req.Participants) < 2 {
		return nil, NewValidationError("combat requires at least 2 participants")
	}
	if !req.InitiativeType.Valid() {
		return nil, NewValidationError("unknown initiative type %q", req.InitiativeType)
	}

	s := &Session{
		Status:         StatusInitializing,
		RoundNumber:    1,
		ZoneID:         req.ZoneID,
		InitiativeType: req.InitiativeType,
		StartedAt:      time.Now().UTC(),
	}

	chars := make(map[int64]*character.Character, len(req.Participants))
	for _, p := range req.Participants {
		char, err := e.characters.Get(ctx, p.CharacterID)
		if err != nil {
			return nil, err
		}
		chars[char.ID] = char
		s.Combatants = append(s.Combatants, &Combatant{
			CharacterID:   char.ID,
			TeamID:        p.TeamID,
			IsPlayer:      char.Type == character.TypePlayer,
			Name:          char.Name,
			CurrentHP:     char.CurrentHP,
			MaxHP:         char.MaxHP,
			ArmorClass:    char.ArmorClass,
			IsAlive:       true,
			CanAct:        true,
			StatusEffects: make(map[string]int),
		})
	}

	switch req.InitiativeType {
	case InitiativeIndividual, InitiativeReroll:
		for _, c := range s.Combatants {
			c.Initiative = e.rollInitiative(chars[c.CharacterID])
		}
	case InitiativeGroup:
		e.rollGroupInitiative(s.Combatants, chars)
	case InitiativeSide:
		e.rollSideInitiative(s.Combatants)
	}

	e.assignTurnOrder(s.Combatants)
	s.Status = StatusInProgress

	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("creating combat session: %w", err)
	}
	e.logger.Info("combat started",
		zap.Int64("session_id", s.ID),
		zap.Int("combatants", len(s.Combatants)),
		zap.String("initiative_type", string(s.InitiativeType)))
	return s, nil
}

// Get returns a persisted session by id.
func (e *Engine) Get(ctx context.Context, sessionID int64) (*Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// rogueInitiativeBonus is the flat initiative bonus rogues receive.
const rogueInitiativeBonus = 2

// rollInitiative rolls d20 + DEX modifier + class bonus.
func (e *Engine) rollInitiative(char *character.Character) int {
	bonus := 0
	if char.Class == character.ClassRogue {
		bonus = rogueInitiativeBonus
	}
	return dice.D20(e.src) + char.Abilities.DexterityMod() + bonus
}

// rollGroupInitiative rolls once per team, using the first listed member's
// modifiers; all team members share the result.
func (e *Engine) rollGroupInitiative(combatants []*Combatant, chars map[int64]*character.Character) {
	teamRolls := make(map[int]int)
	for _, c := range combatants {
		if _, done := teamRolls[c.TeamID]; done {
			continue
		}
		if char, ok := chars[c.CharacterID]; ok {
			teamRolls[c.TeamID] = e.rollInitiative(char)
		} else {
			teamRolls[c.TeamID] = dice.D20(e.src)
		}
	}
	for _, c := range combatants {
		c.Initiative = teamRolls[c.TeamID]
	}
}

// rollSideInitiative ranks whole teams by a d20 roll and spaces their
// initiative bands 100 apart; order within a team is randomized and carries
// no mechanical meaning.
func (e *Engine) rollSideInitiative(combatants []*Combatant) {
	teamRolls := make(map[int]int)
	var teams []int
	for _, c := range combatants {
		if _, done := teamRolls[c.TeamID]; done {
			continue
		}
		teamRolls[c.TeamID] = dice.D20(e.src)
		teams = append(teams, c.TeamID)
	}
	// Rank teams by their roll, highest first.
	for i := 1; i < len(teams); i++ {
		for j := i; j > 0 && teamRolls[teams[j]] > teamRolls[teams[j-1]]; j-- {
			teams[j], teams[j-1] = teams[j-1], teams[j]
		}
	}
	base := make(map[int]int, len(teams))
	for rank, teamID := range teams {
		base[teamID] = rank * 100
	}
	for _, c := range combatants {
		c.Initiative = base[c.TeamID] + e.src.Intn(99) + 1
	}
}

// assignTurnOrder shuffles then stable-sorts by descending initiative, so
// tied combatants land in random relative order, and assigns ranks.
func (e *Engine) assignTurnOrder(combatants []*Combatant) {
	e.shuffle(combatants)
	stableSortByInitiativeDesc(combatants)
	for i, c := range combatants {
		c.TurnOrder = i
	}
}

// shuffle is a Fisher-Yates shuffle driven by the engine's dice source.
func (e *Engine) shuffle(combatants []*Combatant) {
	for i := len(combatants) - 1; i > 0; i-- {
		j := e.src.Intn(i + 1)
		combatants[i], combatants[j] = combatants[j], combatants[i]
	}
}

// stableSortByInitiativeDesc is an insertion sort; stability preserves the
// shuffled order between equal initiatives.
func stableSortByInitiativeDesc(combatants []*Combatant) {
	for i := 1; i < len(combatants); i++ {
		for j := i; j > 0 && combatants[j].Initiative > combatants[j-1].Initiative; j-- {
			combatants[j], combatants[j-1] = combatants[j-1], combatants[j]
		}
	}
}

// rerollInitiative re-rolls initiative for all living combatants and
// reassigns turn order. Used at round boundaries under InitiativeReroll.
func (e *Engine) rerollInitiative(ctx context.Context, s *Session) error {
	var alive []*Combatant
	for _, c := range s.Combatants {
		if !c.IsAlive {
			continue
		}
		char, err := e.characters.Get(ctx, c.CharacterID)
		if err != nil {
			return err
		}
		c.Initiative = e.rollInitiative(char)
		alive = append(alive, c)
	}
	e.shuffle(alive)
	stableSortByInitiativeDesc(alive)
	for i, c := range alive {
		c.TurnOrder = i
	}
	return nil
}

// advanceTurn moves to the next combatant: the finished actor's turn count
// is bumped and its effects ticked down, then the turn index advances,
// wrapping into a new round when every eligible combatant has acted.
func (e *Engine) advanceTurn(ctx context.Context, s *Session) error {
	if current := s.CurrentCombatant(); current != nil {
		current.TurnCount++
		e.tickDownEffects(s, current)
	}

	s.CurrentTurn++
	if s.CurrentTurn >= len(s.ActiveCombatants()) {
		s.CurrentTurn = 0
		s.RoundNumber++
		if s.InitiativeType == InitiativeReroll {
			if err := e.rerollInitiative(ctx, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// finish marks the session finished with the given winner.
func (e *Engine) finish(s *Session, winner *int) {
	s.Status = StatusFinished
	s.WinnerTeamID = winner
	now := time.Now().UTC()
	s.EndedAt = &now
}

// TurnReport is the result of processing turns until a pause point.
type TurnReport struct {
	Actions        []*Action
	Session        *Session
	AwaitingPlayer *Combatant
	CombatEnded    bool
	EffectMessages []string
}

// ProcessTurns runs NPC turns until a player must act, combat ends, or the
// round limit trips. Sessions that exceed the round limit finish as a draw
// with no winning team.
//
// Precondition: The session must not already be finished.
func (e *Engine) ProcessTurns(ctx context.Context, sessionID int64) (*TurnReport, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusFinished {
		return nil, NewCombatError("combat has already ended")
	}

	report := &TurnReport{Session: s}

	for {
		if winner, over := s.Winner(); over {
			e.finish(s, winner)
			report.CombatEnded = true
			break
		}

		if s.RoundNumber > e.maxRounds {
			e.logger.Warn("combat exceeded round limit, declaring a draw",
				zap.Int64("session_id", s.ID),
				zap.Int("max_rounds", e.maxRounds))
			e.finish(s, nil)
			report.CombatEnded = true
			break
		}

		current := s.CurrentCombatant()
		if current == nil {
			break
		}

		if current.IsPlayer {
			pause, msgs, err := e.beginPlayerTurn(ctx, s, current, report)
			if err != nil {
				return nil, err
			}
			if pause {
				s.Status = StatusAwaitingPlayer
				report.AwaitingPlayer = current
				report.EffectMessages = msgs
				break
			}
			continue
		}

		action, err := e.processNPCAction(ctx, s, current)
		if err != nil {
			return nil, err
		}
		report.Actions = append(report.Actions, action)
		if err := e.advanceTurn(ctx, s); err != nil {
			return nil, err
		}
	}

	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving combat session: %w", err)
	}
	return report, nil
}

// beginPlayerTurn runs start-of-turn upkeep for a player combatant. It
// returns pause=true when the player must choose an action; false when the
// turn resolved itself (incapacitated or turn-skipping effect) and the loop
// should continue.
func (e *Engine) beginPlayerTurn(ctx context.Context, s *Session, current *Combatant, report *TurnReport) (pause bool, msgs []string, err error) {
	e.clearStance(s, current)

	msgs, err = e.processStartOfTurnEffects(ctx, s, current)
	if err != nil {
		return false, nil, err
	}

	if !current.IsAlive || !current.CanAct {
		desc := joinMessages(msgs, fmt.Sprintf("%s is incapacitated.", current.Name))
		if len(msgs) > 0 {
			desc = joinMessages(msgs, "")
		}
		report.Actions = append(report.Actions, s.recordAction(&Action{
			ActorID:     current.ID,
			Type:        ActionPass,
			Description: desc,
		}))
		return false, nil, e.advanceTurn(ctx, s)
	}

	if skipped, desc := e.turnSkippingEffect(current); skipped {
		if len(msgs) > 0 {
			desc = joinMessages(msgs, desc)
		}
		report.Actions = append(report.Actions, s.recordAction(&Action{
			ActorID:     current.ID,
			Type:        ActionPass,
			Description: desc,
		}))
		return false, nil, e.advanceTurn(ctx, s)
	}

	return true, msgs, nil
}

// PlayerActionRequest describes one player action.
type PlayerActionRequest struct {
	CharacterID int64
	Type        ActionType
	TargetID    int64
	SpellName   string
	ItemID      int64
	AbilityID   string
}

// ActionReport is the result of a player action.
type ActionReport struct {
	Action      *Action
	Session     *Session
	CombatEnded bool
}

// PlayerAction executes one action for the player whose turn it is, then
// advances the turn and re-checks termination.
//
// Precondition: The session must be awaiting player input and the request
// must come from the combatant whose turn it is.
func (e *Engine) PlayerAction(ctx context.Context, sessionID int64, req PlayerActionRequest) (*ActionReport, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusAwaitingPlayer {
		return nil, NewCombatError("not waiting for player input")
	}

	combatant := s.CombatantForCharacter(req.CharacterID)
	if combatant == nil || !combatant.IsPlayer {
		return nil, NewCombatError("player character %d not found in combat", req.CharacterID)
	}
	current := s.CurrentCombatant()
	if current == nil || current.ID != combatant.ID {
		return nil, NewCombatError("it's not this player's turn")
	}

	action, err := e.resolvePlayerAction(ctx, s, combatant, req)
	if err != nil {
		return nil, err
	}

	if err := e.advanceTurn(ctx, s); err != nil {
		return nil, err
	}

	report := &ActionReport{Action: action, Session: s}
	if winner, over := s.Winner(); over {
		e.finish(s, winner)
		report.CombatEnded = true
	} else {
		s.Status = StatusInProgress
	}

	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving combat session: %w", err)
	}
	return report, nil
}

// joinMessages prefixes desc with accumulated effect messages.
func joinMessages(msgs []string, desc string) string {
	if len(msgs) == 0 {
		return desc
	}
	joined := strings.Join(msgs, " ")
	if desc == "" {
		return joined
	}
	return joined + " " + desc
}
