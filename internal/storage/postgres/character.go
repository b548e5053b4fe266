package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/combat"
)

// ErrCharacterNameTaken is returned when creating a character with a name
// already in use.
var ErrCharacterNameTaken = errors.New("character name already taken")

// characterColumns is the column list shared by every character query, in
// scan order.
const characterColumns = `
	id, name, class, type, status, level,
	strength, dexterity, constitution, intelligence, wisdom, charisma,
	current_hp, max_hp, temporary_hp, armor_class,
	gold, experience,
	spell_slots, max_spell_slots, ability_uses,
	death_save_successes, death_save_failures, is_stable,
	monster_id, x, y, zone_id`

// CharacterRepository provides character persistence. It implements the
// combat engine's character store.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func scanCharacter(row pgx.Row) (*character.Character, error) {
	var c character.Character
	err := row.Scan(
		&c.ID, &c.Name, &c.Class, &c.Type, &c.Status, &c.Level,
		&c.Abilities.Strength, &c.Abilities.Dexterity, &c.Abilities.Constitution,
		&c.Abilities.Intelligence, &c.Abilities.Wisdom, &c.Abilities.Charisma,
		&c.CurrentHP, &c.MaxHP, &c.TemporaryHP, &c.ArmorClass,
		&c.Gold, &c.Experience,
		&c.SpellSlots, &c.MaxSpellSlots, &c.AbilityUses,
		&c.DeathSaveSuccesses, &c.DeathSaveFailures, &c.IsStable,
		&c.MonsterID, &c.X, &c.Y, &c.ZoneID,
	)
	if err != nil {
		return nil, err
	}
	if c.AbilityUses == nil {
		c.AbilityUses = make(map[string]int)
	}
	return &c, nil
}

// Create inserts a new character and returns it with its ID set.
//
// Precondition: c.Name must be non-empty; c.ID must be zero.
// Postcondition: Returns the created character with ID set, or
// ErrCharacterNameTaken on duplicate.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO characters
			(name, class, type, status, level,
			 strength, dexterity, constitution, intelligence, wisdom, charisma,
			 current_hp, max_hp, temporary_hp, armor_class,
			 gold, experience,
			 spell_slots, max_spell_slots, ability_uses,
			 death_save_successes, death_save_failures, is_stable,
			 monster_id, x, y, zone_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
		        $18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
		RETURNING`+characterColumns,
		c.Name, c.Class, c.Type, c.Status, c.Level,
		c.Abilities.Strength, c.Abilities.Dexterity, c.Abilities.Constitution,
		c.Abilities.Intelligence, c.Abilities.Wisdom, c.Abilities.Charisma,
		c.CurrentHP, c.MaxHP, c.TemporaryHP, c.ArmorClass,
		c.Gold, c.Experience,
		c.SpellSlots, c.MaxSpellSlots, c.AbilityUses,
		c.DeathSaveSuccesses, c.DeathSaveFailures, c.IsStable,
		c.MonsterID, c.X, c.Y, c.ZoneID,
	)
	out, err := scanCharacter(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// Get retrieves a character by its primary key.
//
// Precondition: id must be > 0.
// Postcondition: Returns the Character or a NotFoundError.
func (r *CharacterRepository) Get(ctx context.Context, id int64) (*character.Character, error) {
	row := r.db.QueryRow(ctx, `SELECT`+characterColumns+` FROM characters WHERE id = $1`, id)
	c, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, combat.NewNotFoundError("character", id)
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// Save persists a character's full mutable state. Combat syncs HP, death
// saves, resources, and rewards back through here.
//
// Precondition: c.ID must be > 0.
// Postcondition: Returns nil on success, a NotFoundError if no row updated.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE characters SET
			status = $2, level = $3,
			strength = $4, dexterity = $5, constitution = $6,
			intelligence = $7, wisdom = $8, charisma = $9,
			current_hp = $10, max_hp = $11, temporary_hp = $12, armor_class = $13,
			gold = $14, experience = $15,
			spell_slots = $16, max_spell_slots = $17, ability_uses = $18,
			death_save_successes = $19, death_save_failures = $20, is_stable = $21,
			x = $22, y = $23, zone_id = $24,
			updated_at = NOW()
		WHERE id = $1`,
		c.ID,
		c.Status, c.Level,
		c.Abilities.Strength, c.Abilities.Dexterity, c.Abilities.Constitution,
		c.Abilities.Intelligence, c.Abilities.Wisdom, c.Abilities.Charisma,
		c.CurrentHP, c.MaxHP, c.TemporaryHP, c.ArmorClass,
		c.Gold, c.Experience,
		c.SpellSlots, c.MaxSpellSlots, c.AbilityUses,
		c.DeathSaveSuccesses, c.DeathSaveFailures, c.IsStable,
		c.X, c.Y, c.ZoneID,
	)
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return combat.NewNotFoundError("character", c.ID)
	}
	return nil
}

// List returns all characters ordered by id.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) List(ctx context.Context) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx, `SELECT`+characterColumns+` FROM characters ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	chars := make([]*character.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
