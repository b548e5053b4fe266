package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridfall/internal/game/combat"
)

// SessionRepository persists combat sessions, their combatants, and action
// history. It implements the combat engine's session store.
//
// Save writes the session, all combatants, and any unrecorded actions in one
// transaction, so a crash mid-save never leaves a half-updated encounter.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session and its combatants, assigning IDs.
//
// Precondition: s.ID must be zero and every combatant ID must be zero.
// Postcondition: s.ID and every combatant's ID and SessionID are set.
func (r *SessionRepository) Create(ctx context.Context, s *combat.Session) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning session tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		INSERT INTO combat_sessions
			(status, round_number, current_turn, winner_team_id, zone_id,
			 initiative_type, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		s.Status, s.RoundNumber, s.CurrentTurn, s.WinnerTeamID, s.ZoneID,
		s.InitiativeType, s.StartedAt, s.EndedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("inserting combat session: %w", err)
	}

	for _, c := range s.Combatants {
		c.SessionID = s.ID
		if err := insertCombatant(ctx, tx, c); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertCombatant(ctx context.Context, tx pgx.Tx, c *combat.Combatant) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO combatants
			(session_id, character_id, team_id, is_player, name,
			 initiative, turn_order, turn_count,
			 current_hp, max_hp, armor_class, threat,
			 is_alive, can_act, status_effects)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		c.SessionID, c.CharacterID, c.TeamID, c.IsPlayer, c.Name,
		c.Initiative, c.TurnOrder, c.TurnCount,
		c.CurrentHP, c.MaxHP, c.ArmorClass, c.Threat,
		c.IsAlive, c.CanAct, c.StatusEffects,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("inserting combatant: %w", err)
	}
	return nil
}

// Save persists the session's current state atomically: the session row,
// every combatant, and any actions recorded since the last save (those with
// a zero ID).
//
// Precondition: s must have been created through Create.
func (r *SessionRepository) Save(ctx context.Context, s *combat.Session) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning session tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE combat_sessions SET
			status = $2, round_number = $3, current_turn = $4,
			winner_team_id = $5, ended_at = $6, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Status, s.RoundNumber, s.CurrentTurn, s.WinnerTeamID, s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("updating combat session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return combat.NewNotFoundError("combat session", s.ID)
	}

	for _, c := range s.Combatants {
		if c.ID == 0 {
			c.SessionID = s.ID
			if err := insertCombatant(ctx, tx, c); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE combatants SET
				initiative = $2, turn_order = $3, turn_count = $4,
				current_hp = $5, threat = $6,
				is_alive = $7, can_act = $8, status_effects = $9
			WHERE id = $1`,
			c.ID, c.Initiative, c.TurnOrder, c.TurnCount,
			c.CurrentHP, c.Threat,
			c.IsAlive, c.CanAct, c.StatusEffects,
		); err != nil {
			return fmt.Errorf("updating combatant %d: %w", c.ID, err)
		}
	}

	for _, a := range s.Actions {
		if a.ID != 0 {
			continue
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO combat_actions
				(session_id, round_number, turn_number, actor_id, target_id,
				 action_type, roll, total, damage, healing, hit, critical,
				 spell_name, item_name, ability_id, description, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			RETURNING id`,
			a.SessionID, a.RoundNumber, a.TurnNumber, a.ActorID, a.TargetID,
			a.Type, a.Roll, a.Total, a.Damage, a.Healing, a.Hit, a.Critical,
			a.SpellName, a.ItemName, a.AbilityID, a.Description, a.CreatedAt,
		).Scan(&a.ID); err != nil {
			return fmt.Errorf("inserting combat action: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Get loads a session with its combatants and full action history.
//
// Postcondition: Returns the Session or a NotFoundError.
func (r *SessionRepository) Get(ctx context.Context, id int64) (*combat.Session, error) {
	var s combat.Session
	err := r.db.QueryRow(ctx, `
		SELECT id, status, round_number, current_turn, winner_team_id, zone_id,
		       initiative_type, started_at, ended_at
		FROM combat_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Status, &s.RoundNumber, &s.CurrentTurn, &s.WinnerTeamID,
		&s.ZoneID, &s.InitiativeType, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, combat.NewNotFoundError("combat session", id)
		}
		return nil, fmt.Errorf("querying combat session: %w", err)
	}

	if s.Combatants, err = r.combatants(ctx, id); err != nil {
		return nil, err
	}
	if s.Actions, err = r.actions(ctx, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) combatants(ctx context.Context, sessionID int64) ([]*combat.Combatant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, character_id, team_id, is_player, name,
		       initiative, turn_order, turn_count,
		       current_hp, max_hp, armor_class, threat,
		       is_alive, can_act, status_effects
		FROM combatants WHERE session_id = $1 ORDER BY turn_order ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing combatants: %w", err)
	}
	defer rows.Close()

	var out []*combat.Combatant
	for rows.Next() {
		var c combat.Combatant
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.CharacterID, &c.TeamID, &c.IsPlayer, &c.Name,
			&c.Initiative, &c.TurnOrder, &c.TurnCount,
			&c.CurrentHP, &c.MaxHP, &c.ArmorClass, &c.Threat,
			&c.IsAlive, &c.CanAct, &c.StatusEffects,
		); err != nil {
			return nil, fmt.Errorf("scanning combatant row: %w", err)
		}
		if c.StatusEffects == nil {
			c.StatusEffects = make(map[string]int)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *SessionRepository) actions(ctx context.Context, sessionID int64) ([]*combat.Action, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, round_number, turn_number, actor_id, target_id,
		       action_type, roll, total, damage, healing, hit, critical,
		       spell_name, item_name, ability_id, description, created_at
		FROM combat_actions WHERE session_id = $1 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing combat actions: %w", err)
	}
	defer rows.Close()

	var out []*combat.Action
	for rows.Next() {
		var a combat.Action
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.RoundNumber, &a.TurnNumber, &a.ActorID, &a.TargetID,
			&a.Type, &a.Roll, &a.Total, &a.Damage, &a.Healing, &a.Hit, &a.Critical,
			&a.SpellName, &a.ItemName, &a.AbilityID, &a.Description, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning combat action row: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
