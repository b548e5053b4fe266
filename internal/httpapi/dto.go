package httpapi

import (
	"time"

	"github.com/cory-johannsen/gridfall/internal/game/combat"
)

// startRequest is the POST /combat/start body.
type startRequest struct {
	Participants   []participantRequest `json:"participants"`
	ZoneID         int64                `json:"zone_id"`
	InitiativeType string               `json:"initiative_type"`
}

type participantRequest struct {
	CharacterID int64 `json:"character_id"`
	TeamID      int   `json:"team_id"`
}

// actRequest is the POST /combat/{id}/act body.
type actRequest struct {
	CharacterID int64  `json:"character_id"`
	ActionType  string `json:"action_type"`
	TargetID    int64  `json:"target_id,omitempty"`
	SpellName   string `json:"spell_name,omitempty"`
	ItemID      int64  `json:"item_id,omitempty"`
	AbilityID   string `json:"ability_id,omitempty"`
}

type combatantView struct {
	ID            int64          `json:"id"`
	CharacterID   int64          `json:"character_id"`
	TeamID        int            `json:"team_id"`
	IsPlayer      bool           `json:"is_player"`
	Name          string         `json:"name"`
	Initiative    int            `json:"initiative"`
	TurnOrder     int            `json:"turn_order"`
	CurrentHP     int            `json:"current_hp"`
	MaxHP         int            `json:"max_hp"`
	ArmorClass    int            `json:"armor_class"`
	IsAlive       bool           `json:"is_alive"`
	CanAct        bool           `json:"can_act"`
	StatusEffects map[string]int `json:"status_effects,omitempty"`
}

func viewCombatant(c *combat.Combatant) combatantView {
	return combatantView{
		ID:            c.ID,
		CharacterID:   c.CharacterID,
		TeamID:        c.TeamID,
		IsPlayer:      c.IsPlayer,
		Name:          c.Name,
		Initiative:    c.Initiative,
		TurnOrder:     c.TurnOrder,
		CurrentHP:     c.CurrentHP,
		MaxHP:         c.MaxHP,
		ArmorClass:    c.ArmorClass,
		IsAlive:       c.IsAlive,
		CanAct:        c.CanAct,
		StatusEffects: c.StatusEffects,
	}
}

type sessionView struct {
	ID             int64           `json:"id"`
	Status         string          `json:"status"`
	RoundNumber    int             `json:"round_number"`
	CurrentTurn    int             `json:"current_turn"`
	WinnerTeamID   *int            `json:"winner_team_id,omitempty"`
	ZoneID         int64           `json:"zone_id,omitempty"`
	InitiativeType string          `json:"initiative_type"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	Combatants     []combatantView `json:"combatants"`
	// AwaitingPlayer is set only while the session waits for a player's
	// action; it names the combatant whose turn it is.
	AwaitingPlayer *combatantView `json:"awaiting_player,omitempty"`
}

func viewSession(s *combat.Session) sessionView {
	view := sessionView{
		ID:             s.ID,
		Status:         string(s.Status),
		RoundNumber:    s.RoundNumber,
		CurrentTurn:    s.CurrentTurn,
		WinnerTeamID:   s.WinnerTeamID,
		ZoneID:         s.ZoneID,
		InitiativeType: string(s.InitiativeType),
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
	}
	for _, c := range s.Combatants {
		view.Combatants = append(view.Combatants, viewCombatant(c))
	}
	if s.Status == combat.StatusAwaitingPlayer {
		if current := s.CurrentCombatant(); current != nil && current.IsPlayer {
			cv := viewCombatant(current)
			view.AwaitingPlayer = &cv
		}
	}
	return view
}

type actionView struct {
	ID          int64     `json:"id"`
	RoundNumber int       `json:"round_number"`
	TurnNumber  int       `json:"turn_number"`
	ActorID     int64     `json:"actor_id"`
	TargetID    int64     `json:"target_id,omitempty"`
	Type        string    `json:"type"`
	Roll        int       `json:"roll,omitempty"`
	Total       int       `json:"total,omitempty"`
	Damage      int       `json:"damage,omitempty"`
	Healing     int       `json:"healing,omitempty"`
	Hit         bool      `json:"hit"`
	Critical    bool      `json:"critical,omitempty"`
	SpellName   string    `json:"spell_name,omitempty"`
	ItemName    string    `json:"item_name,omitempty"`
	AbilityID   string    `json:"ability_id,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewAction(a *combat.Action) actionView {
	return actionView{
		ID:          a.ID,
		RoundNumber: a.RoundNumber,
		TurnNumber:  a.TurnNumber,
		ActorID:     a.ActorID,
		TargetID:    a.TargetID,
		Type:        string(a.Type),
		Roll:        a.Roll,
		Total:       a.Total,
		Damage:      a.Damage,
		Healing:     a.Healing,
		Hit:         a.Hit,
		Critical:    a.Critical,
		SpellName:   a.SpellName,
		ItemName:    a.ItemName,
		AbilityID:   a.AbilityID,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
}

func viewActions(actions []*combat.Action) []actionView {
	out := make([]actionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, viewAction(a))
	}
	return out
}

// processResponse is the POST /combat/{id}/process body.
type processResponse struct {
	Session        sessionView    `json:"session"`
	Actions        []actionView   `json:"actions"`
	CombatEnded    bool           `json:"combat_ended"`
	AwaitingPlayer *combatantView `json:"awaiting_player,omitempty"`
	EffectMessages []string       `json:"effect_messages,omitempty"`
}

// actResponse is the POST /combat/{id}/act body.
type actResponse struct {
	Action      actionView  `json:"action"`
	Session     sessionView `json:"session"`
	CombatEnded bool        `json:"combat_ended"`
}

type lootItemView struct {
	InstanceID string `json:"instance_id"`
	ItemName   string `json:"item_name"`
	Quantity   int    `json:"quantity"`
}

type lootView struct {
	Gold  int            `json:"gold"`
	Items []lootItemView `json:"items"`
}

func viewLoot(l combat.LootResult) lootView {
	view := lootView{Gold: l.Gold, Items: make([]lootItemView, 0, len(l.Items))}
	for _, item := range l.Items {
		view.Items = append(view.Items, lootItemView{
			InstanceID: item.InstanceID,
			ItemName:   item.ItemName,
			Quantity:   item.Quantity,
		})
	}
	return view
}

type levelUpView struct {
	CharacterID int64 `json:"character_id"`
	OldLevel    int   `json:"old_level"`
	NewLevel    int   `json:"new_level"`
}

// resolveResponse is the POST /combat/{id}/resolve body.
type resolveResponse struct {
	WinnerTeamID     *int          `json:"winner_team_id,omitempty"`
	ExperienceEarned map[int64]int `json:"experience_earned"`
	LevelUps         []levelUpView `json:"level_ups,omitempty"`
	Loot             lootView      `json:"loot"`
}

// finishResponse is the POST /combat/{id}/finish body.
type finishResponse struct {
	SessionID             int64           `json:"session_id"`
	WinnerTeamID          *int            `json:"winner_team_id,omitempty"`
	TotalRounds           int             `json:"total_rounds"`
	TotalActions          int             `json:"total_actions"`
	StartedAt             time.Time       `json:"started_at"`
	EndedAt               *time.Time      `json:"ended_at,omitempty"`
	Participants          []combatantView `json:"participants"`
	ExperienceByCharacter map[int64]int   `json:"experience_by_character"`
	Loot                  lootView        `json:"loot"`
}

// historyResponse is the GET /combat/{id}/history body.
type historyResponse struct {
	Actions []actionView `json:"actions"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}
