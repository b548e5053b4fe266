package combat_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/combat"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// constSource always resolves Intn(n) to min(v, n-1), giving deterministic
// "always rolls v+1" dice.
type constSource struct{ v int }

func (c constSource) Intn(n int) int {
	if c.v >= n {
		return n - 1
	}
	return c.v
}

// seqSource returns a scripted sequence of Intn results, then repeats the
// last value.
type seqSource struct {
	values []int
	idx    int
}

func (s *seqSource) Intn(n int) int {
	v := s.values[s.idx]
	if s.idx < len(s.values)-1 {
		s.idx++
	}
	if v >= n {
		v = n - 1
	}
	return v
}

type fakeCharacters struct {
	chars map[int64]*character.Character
	saves int
}

func newFakeCharacters(chars ...*character.Character) *fakeCharacters {
	f := &fakeCharacters{chars: make(map[int64]*character.Character)}
	for _, c := range chars {
		f.chars[c.ID] = c
	}
	return f
}

func (f *fakeCharacters) Get(_ context.Context, id int64) (*character.Character, error) {
	c, ok := f.chars[id]
	if !ok {
		return nil, combat.NewNotFoundError("Character", id)
	}
	return c, nil
}

func (f *fakeCharacters) Save(_ context.Context, c *character.Character) error {
	f.chars[c.ID] = c
	f.saves++
	return nil
}

type fakeInventory struct {
	items map[int64]*combat.InventoryItem
}

func newFakeInventory(items ...*combat.InventoryItem) *fakeInventory {
	f := &fakeInventory{items: make(map[int64]*combat.InventoryItem)}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeInventory) Get(_ context.Context, id int64) (*combat.InventoryItem, error) {
	return f.items[id], nil
}

func (f *fakeInventory) EquippedWeapon(_ context.Context, characterID int64) (*combat.InventoryItem, error) {
	for _, it := range f.items {
		if it.CharacterID == characterID && it.Equipped && it.ItemType == "weapon" &&
			(it.Slot == "main_hand" || it.Slot == "off_hand") {
			return it, nil
		}
	}
	return nil, nil
}

func (f *fakeInventory) EquippedInSlot(_ context.Context, characterID int64, slot string) (*combat.InventoryItem, error) {
	for _, it := range f.items {
		if it.CharacterID == characterID && it.Equipped && it.Slot == slot {
			return it, nil
		}
	}
	return nil, nil
}

func (f *fakeInventory) HealingPotion(_ context.Context, characterID int64) (*combat.InventoryItem, error) {
	for _, it := range f.items {
		if it.CharacterID == characterID && it.ItemType == "consumable" &&
			strings.Contains(strings.ToLower(it.ItemName), "healing potion") {
			return it, nil
		}
	}
	return nil, nil
}

func (f *fakeInventory) Consume(_ context.Context, item *combat.InventoryItem) error {
	stored, ok := f.items[item.ID]
	if !ok {
		return fmt.Errorf("item %d not found", item.ID)
	}
	if stored.Quantity > 1 {
		stored.Quantity--
		return nil
	}
	delete(f.items, item.ID)
	return nil
}

type fakeSessions struct {
	sessions map[int64]*combat.Session
	nextID   int64
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[int64]*combat.Session), nextID: 1}
}

func (f *fakeSessions) Create(_ context.Context, s *combat.Session) error {
	s.ID = f.nextID
	f.nextID++
	for i, c := range s.Combatants {
		c.ID = s.ID*100 + int64(i) + 1
		c.SessionID = s.ID
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessions) Save(_ context.Context, s *combat.Session) error {
	for i, a := range s.Actions {
		if a.ID == 0 {
			a.ID = int64(i) + 1
		}
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id int64) (*combat.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, combat.NewNotFoundError("CombatSession", id)
	}
	return s, nil
}

type fakeTerrain struct {
	cells map[string]string
}

func (f *fakeTerrain) TerrainAt(_ context.Context, zoneID int64, x, y int) (string, error) {
	return f.cells[fmt.Sprintf("%d:%d:%d", zoneID, x, y)], nil
}

// newTestCatalog builds the reference data used across the engine tests.
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]*catalog.Spell{
			{Name: "Fire Bolt", Level: 0, Classes: []string{"mage"}, Range: 120, DamageDice: "1d10", DamageType: "fire"},
			{Name: "Magic Missile", Level: 1, Classes: []string{"mage"}, Range: 120, DamageDice: "3d4", DamageType: "force", AutoHit: true},
			{Name: "Cure Wounds", Level: 1, Classes: []string{"cleric"}, Range: 0, HealingDice: "1d8"},
			{Name: "Sacred Flame", Level: 0, Classes: []string{"cleric"}, Range: 60, DamageDice: "1d8", DamageType: "radiant"},
			{Name: "Bless", Level: 1, Classes: []string{"cleric"}, Range: 30, ACBonus: 2, Duration: 5},
			{Name: "Poison Spray", Level: 0, Classes: []string{"mage"}, Range: 30, Status: "poisoned", Duration: 2},
		},
		[]*catalog.Consumable{
			{Name: "Healing Potion", EffectType: "heal", HealingDice: "2d4"},
			{Name: "Alchemist's Fire", EffectType: "damage", DamageDice: "1d6", DamageType: "fire"},
			{Name: "Antitoxin", EffectType: "cure", Cures: []string{"poisoned"}},
			{Name: "Potion of Regeneration", EffectType: "buff", GrantsStatus: "regenerating", Duration: 3},
		},
		[]*catalog.ClassAbility{
			{ID: "second_wind", Name: "Second Wind", Class: "warrior", MinLevel: 1, MaxUses: 1,
				EffectType: "heal_self", HealingDice: "1d10", AddsLevel: true},
			{ID: "sneak_attack", Name: "Sneak Attack", Class: "rogue", MinLevel: 1,
				EffectType: "bonus_damage", DamageDice: "1d6", ScalesWithLevel: true},
			{ID: "preserve_life", Name: "Preserve Life", Class: "cleric", MinLevel: 2, MaxUses: 1,
				EffectType: "heal_allies", HealingMultiplier: 5},
			{ID: "arcane_recovery", Name: "Arcane Recovery", Class: "mage", MinLevel: 1, MaxUses: 1,
				EffectType: "recover_slots"},
			{ID: "action_surge", Name: "Action Surge", Class: "warrior", MinLevel: 2, MaxUses: 1,
				EffectType: "extra_action"},
			{ID: "hunters_mark", Name: "Hunter's Mark", Class: "ranger", MinLevel: 1,
				EffectType: "mark_target", StatusApplied: "marked", Duration: 5},
			{ID: "turn_undead", Name: "Turn Undead", Class: "cleric", MinLevel: 2, MaxUses: 1,
				EffectType: "area_effect", StatusApplied: "frightened", Duration: 3},
		},
		[]*catalog.StatusEffectDef{
			{ID: "defending", Name: "Defending", DefaultDuration: 1, ACModifier: 2},
			{ID: "dodging", Name: "Dodging", DefaultDuration: 1, DisadvantageAgainst: true},
			{ID: "poisoned", Name: "Poisoned", DefaultDuration: 3, DamagePerTurn: "1d4", DamageType: "poison", AttackDisadvantage: true},
			{ID: "stunned", Name: "Stunned", DefaultDuration: 1, SkipsTurn: true, AdvantageAgainst: true},
			{ID: "paralyzed", Name: "Paralyzed", DefaultDuration: 2, SkipsTurn: true, AdvantageAgainst: true, AutoCrit: true},
			{ID: "blinded", Name: "Blinded", DefaultDuration: 2, AdvantageAgainst: true, AttackDisadvantage: true},
			{ID: "invisible", Name: "Invisible", DefaultDuration: 3, DisadvantageAgainst: true, AttackAdvantage: true},
			{ID: "frightened", Name: "Frightened", DefaultDuration: 3, AttackDisadvantage: true},
			{ID: "blessed", Name: "Blessed", DefaultDuration: 5, ACModifier: 2},
			{ID: "marked", Name: "Marked", DefaultDuration: 5},
			{ID: "regenerating", Name: "Regenerating", DefaultDuration: 3, HealPerTurn: "1d4"},
		},
		[]*catalog.Weapon{
			{Name: "Longsword", Category: "martial_melee", DamageDice: "1d8", DamageType: "slashing",
				Properties: []string{"versatile"}, VersatileDice: "1d10"},
			{Name: "Dagger", Category: "simple_melee", DamageDice: "1d4", DamageType: "piercing",
				Range: "20/60", Properties: []string{"finesse", "thrown"}},
			{Name: "Longbow", Category: "martial_ranged", DamageDice: "1d8", DamageType: "piercing",
				Range: "150/600", Properties: []string{"ammunition"}},
			{Name: "Pike", Category: "martial_melee", DamageDice: "1d10", DamageType: "piercing",
				Properties: []string{"reach"}},
		},
		[]*catalog.Monster{
			{ID: "goblin", Name: "Goblin", LootTable: "goblin_loot"},
			{ID: "rat", Name: "Giant Rat"},
		},
		[]*catalog.TerrainEffect{
			{TerrainType: "forest", CoverBonus: 2},
		},
		[]*catalog.LootTable{
			{ID: "goblin_loot", Name: "Goblin Loot", GoldMin: 5, GoldMax: 10,
				GuaranteedDrops: []catalog.LootDrop{{ItemName: "Goblin Ear", Quantity: 1}},
				DropCountMin:    1, DropCountMax: 1,
				Items: []catalog.LootEntry{
					{ItemName: "Dagger", Weight: 3, Quantity: 1},
					{ItemName: "Shiny Pebble", Weight: 1, Quantity: 2},
				}},
		},
	)
	require.NoError(t, err)
	return c
}

// testWorld bundles an engine with its fakes.
type testWorld struct {
	engine     *combat.Engine
	characters *fakeCharacters
	inventory  *fakeInventory
	sessions   *fakeSessions
	terrain    *fakeTerrain
}

type worldOption func(*combat.Config)

func withSource(src dice.Source) worldOption {
	return func(cfg *combat.Config) { cfg.Source = src }
}

func withMaxRounds(n int) worldOption {
	return func(cfg *combat.Config) { cfg.MaxRounds = n }
}

func newTestWorld(t *testing.T, chars []*character.Character, items []*combat.InventoryItem, opts ...worldOption) *testWorld {
	t.Helper()
	w := &testWorld{
		characters: newFakeCharacters(chars...),
		inventory:  newFakeInventory(items...),
		sessions:   newFakeSessions(),
		terrain:    &fakeTerrain{cells: make(map[string]string)},
	}
	cfg := combat.Config{
		Catalog:    newTestCatalog(t),
		Source:     constSource{9},
		Characters: w.characters,
		Inventory:  w.inventory,
		Sessions:   w.sessions,
		Terrain:    w.terrain,
		Logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	w.engine = combat.NewEngine(cfg)
	return w
}

// testCharacter builds a combat-ready character with sane defaults.
func testCharacter(id int64, name string, class character.Class, typ character.Type) *character.Character {
	c, err := character.New(name, class, typ)
	if err != nil {
		panic(err)
	}
	c.ID = id
	return c
}
