package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridfall/internal/game/combat"
)

// InventoryRepository provides inventory persistence. It implements the
// combat engine's inventory store.
type InventoryRepository struct {
	db *pgxpool.Pool
	// healingNames are the catalog consumables with a heal effect, used by
	// the NPC self-heal lookup.
	healingNames []string
}

// NewInventoryRepository creates an InventoryRepository backed by the given
// pool. healingNames lists the catalog's healing consumables; pass the names
// of every consumable whose effect type is "heal".
//
// Precondition: db must be a valid, open connection pool.
func NewInventoryRepository(db *pgxpool.Pool, healingNames []string) *InventoryRepository {
	return &InventoryRepository{db: db, healingNames: healingNames}
}

const inventoryColumns = `
	id, character_id, item_name, item_type, quantity, equipped, slot`

func scanInventoryItem(row pgx.Row) (*combat.InventoryItem, error) {
	var it combat.InventoryItem
	err := row.Scan(&it.ID, &it.CharacterID, &it.ItemName, &it.ItemType,
		&it.Quantity, &it.Equipped, &it.Slot)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Get returns the inventory row by id, or nil when it does not exist.
func (r *InventoryRepository) Get(ctx context.Context, id int64) (*combat.InventoryItem, error) {
	row := r.db.QueryRow(ctx, `SELECT`+inventoryColumns+` FROM inventory_items WHERE id = $1`, id)
	it, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying inventory item: %w", err)
	}
	return it, nil
}

// EquippedWeapon returns the weapon the character has equipped in either
// hand, preferring the main hand, or nil when the character fights unarmed.
func (r *InventoryRepository) EquippedWeapon(ctx context.Context, characterID int64) (*combat.InventoryItem, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+inventoryColumns+`
		FROM inventory_items
		WHERE character_id = $1 AND equipped AND item_type = 'weapon'
		  AND slot IN ('main_hand', 'off_hand')
		ORDER BY CASE slot WHEN 'main_hand' THEN 0 ELSE 1 END
		LIMIT 1`,
		characterID,
	)
	it, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying equipped weapon: %w", err)
	}
	return it, nil
}

// EquippedInSlot returns the item equipped in the named slot, or nil.
func (r *InventoryRepository) EquippedInSlot(ctx context.Context, characterID int64, slot string) (*combat.InventoryItem, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+inventoryColumns+`
		FROM inventory_items
		WHERE character_id = $1 AND equipped AND slot = $2
		LIMIT 1`,
		characterID, slot,
	)
	it, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying equipped slot: %w", err)
	}
	return it, nil
}

// HealingPotion returns a healing consumable from the character's inventory,
// or nil when they carry none.
func (r *InventoryRepository) HealingPotion(ctx context.Context, characterID int64) (*combat.InventoryItem, error) {
	if len(r.healingNames) == 0 {
		return nil, nil
	}
	row := r.db.QueryRow(ctx, `
		SELECT`+inventoryColumns+`
		FROM inventory_items
		WHERE character_id = $1 AND item_type = 'consumable'
		  AND item_name = ANY($2) AND quantity > 0
		ORDER BY id
		LIMIT 1`,
		characterID, r.healingNames,
	)
	it, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying healing potion: %w", err)
	}
	return it, nil
}

// Consume decrements the item's quantity, deleting the row when it reaches
// zero. The passed item's Quantity is updated to match.
//
// Precondition: item must have been loaded from this repository.
func (r *InventoryRepository) Consume(ctx context.Context, item *combat.InventoryItem) error {
	if item.Quantity <= 1 {
		if _, err := r.db.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, item.ID); err != nil {
			return fmt.Errorf("deleting consumed item: %w", err)
		}
		item.Quantity = 0
		return nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE inventory_items SET quantity = quantity - 1 WHERE id = $1`, item.ID)
	if err != nil {
		return fmt.Errorf("consuming item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consuming item: row %d vanished", item.ID)
	}
	item.Quantity--
	return nil
}

// Add inserts an inventory row, stacking onto an existing unequipped row of
// the same item when one exists. Loot drops land here.
//
// Precondition: characterID must reference an existing character; quantity > 0.
func (r *InventoryRepository) Add(ctx context.Context, characterID int64, itemName, itemType string, quantity int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventory_items SET quantity = quantity + $4
		WHERE character_id = $1 AND item_name = $2 AND item_type = $3 AND NOT equipped`,
		characterID, itemName, itemType, quantity,
	)
	if err != nil {
		return fmt.Errorf("stacking inventory item: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO inventory_items (character_id, item_name, item_type, quantity, equipped, slot)
		VALUES ($1, $2, $3, $4, FALSE, '')`,
		characterID, itemName, itemType, quantity,
	)
	if err != nil {
		return fmt.Errorf("inserting inventory item: %w", err)
	}
	return nil
}

// ListForCharacter returns all inventory rows for a character, ordered by id.
func (r *InventoryRepository) ListForCharacter(ctx context.Context, characterID int64) ([]*combat.InventoryItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT`+inventoryColumns+` FROM inventory_items WHERE character_id = $1 ORDER BY id ASC`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing inventory: %w", err)
	}
	defer rows.Close()

	items := make([]*combat.InventoryItem, 0)
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Equip marks an item as equipped in the given slot, unequipping whatever
// occupied that slot first.
//
// Precondition: id must reference an item owned by characterID.
func (r *InventoryRepository) Equip(ctx context.Context, characterID, id int64, slot string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning equip tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		UPDATE inventory_items SET equipped = FALSE, slot = ''
		WHERE character_id = $1 AND equipped AND slot = $2`,
		characterID, slot,
	); err != nil {
		return fmt.Errorf("clearing slot: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE inventory_items SET equipped = TRUE, slot = $3
		WHERE id = $1 AND character_id = $2`,
		id, characterID, slot,
	)
	if err != nil {
		return fmt.Errorf("equipping item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("equipping item: no item %d owned by character %d", id, characterID)
	}
	return tx.Commit(ctx)
}
