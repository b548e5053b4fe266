package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is the immutable set of all game reference data, keyed for lookup.
// Construct with New or LoadDirectory; do not mutate after construction.
type Catalog struct {
	spells      map[string]*Spell // keyed by lowercase name
	consumables map[string]*Consumable
	abilities   map[string]*ClassAbility
	effects     map[string]*StatusEffectDef
	weapons     map[string]*Weapon
	monsters    map[string]*Monster
	terrain     map[string]*TerrainEffect
	lootTables  map[string]*LootTable

	spellList   []*Spell
	abilityList []*ClassAbility
}

// New builds a Catalog from definition slices, validating every entry.
//
// Postcondition: Returns a fully indexed Catalog, or the first validation error.
func New(
	spells []*Spell,
	consumables []*Consumable,
	abilities []*ClassAbility,
	effects []*StatusEffectDef,
	weapons []*Weapon,
	monsters []*Monster,
	terrain []*TerrainEffect,
	lootTables []*LootTable,
) (*Catalog, error) {
	c := &Catalog{
		spells:      make(map[string]*Spell, len(spells)),
		consumables: make(map[string]*Consumable, len(consumables)),
		abilities:   make(map[string]*ClassAbility, len(abilities)),
		effects:     make(map[string]*StatusEffectDef, len(effects)),
		weapons:     make(map[string]*Weapon, len(weapons)),
		monsters:    make(map[string]*Monster, len(monsters)),
		terrain:     make(map[string]*TerrainEffect, len(terrain)),
		lootTables:  make(map[string]*LootTable, len(lootTables)),
	}

	for _, s := range spells {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		c.spells[strings.ToLower(s.Name)] = s
		c.spellList = append(c.spellList, s)
	}
	for _, cons := range consumables {
		if err := cons.Validate(); err != nil {
			return nil, err
		}
		c.consumables[strings.ToLower(cons.Name)] = cons
	}
	for _, a := range abilities {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		c.abilities[a.ID] = a
		c.abilityList = append(c.abilityList, a)
	}
	for _, e := range effects {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		c.effects[e.ID] = e
	}
	for _, w := range weapons {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		c.weapons[strings.ToLower(w.Name)] = w
	}
	for _, m := range monsters {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		c.monsters[m.ID] = m
	}
	for _, t := range terrain {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		c.terrain[t.TerrainType] = t
	}
	for _, lt := range lootTables {
		if err := lt.Validate(); err != nil {
			return nil, err
		}
		c.lootTables[lt.ID] = lt
	}

	// Cross-reference checks: monster loot tables must exist.
	for _, m := range c.monsters {
		if m.LootTable != "" {
			if _, ok := c.lootTables[m.LootTable]; !ok {
				return nil, fmt.Errorf("monster %q: loot_table %q not found", m.ID, m.LootTable)
			}
		}
	}

	return c, nil
}

// Spell looks up a spell by name, case-insensitively.
func (c *Catalog) Spell(name string) (*Spell, bool) {
	s, ok := c.spells[strings.ToLower(name)]
	return s, ok
}

// Spells returns all spells in registration order.
// The slice is shared; callers must not modify it.
func (c *Catalog) Spells() []*Spell { return c.spellList }

// Consumable looks up a consumable by name, case-insensitively.
func (c *Catalog) Consumable(name string) (*Consumable, bool) {
	cons, ok := c.consumables[strings.ToLower(name)]
	return cons, ok
}

// Ability looks up a class ability by id.
func (c *Catalog) Ability(id string) (*ClassAbility, bool) {
	a, ok := c.abilities[id]
	return a, ok
}

// Abilities returns all class abilities in registration order.
// The slice is shared; callers must not modify it.
func (c *Catalog) Abilities() []*ClassAbility { return c.abilityList }

// StatusEffect looks up a status effect definition by id.
func (c *Catalog) StatusEffect(id string) (*StatusEffectDef, bool) {
	e, ok := c.effects[id]
	return e, ok
}

// Weapon looks up a weapon by name, case-insensitively.
func (c *Catalog) Weapon(name string) (*Weapon, bool) {
	w, ok := c.weapons[strings.ToLower(name)]
	return w, ok
}

// Monster looks up a monster template by id.
func (c *Catalog) Monster(id string) (*Monster, bool) {
	m, ok := c.monsters[id]
	return m, ok
}

// TerrainEffect looks up a terrain effect by terrain type.
func (c *Catalog) TerrainEffect(terrainType string) (*TerrainEffect, bool) {
	t, ok := c.terrain[terrainType]
	return t, ok
}

// LootTable looks up a loot table by id.
func (c *Catalog) LootTable(id string) (*LootTable, bool) {
	lt, ok := c.lootTables[id]
	return lt, ok
}

// HealingConsumables returns the names of every consumable with a heal
// effect, sorted for deterministic output.
func (c *Catalog) HealingConsumables() []string {
	var names []string
	for _, cons := range c.consumables {
		if cons.EffectType == "heal" {
			names = append(names, cons.Name)
		}
	}
	sort.Strings(names)
	return names
}

// LootTableForMonster returns the loot table for a monster id, or (nil, false)
// if the monster is unknown or drops nothing.
func (c *Catalog) LootTableForMonster(monsterID string) (*LootTable, bool) {
	m, ok := c.monsters[monsterID]
	if !ok || m.LootTable == "" {
		return nil, false
	}
	return c.LootTable(m.LootTable)
}
