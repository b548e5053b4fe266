// Package catalog provides the immutable game-data catalog: spells,
// consumables, class abilities, status effects, weapons, monsters, terrain
// effects, and loot tables. Definitions are loaded once at startup from YAML
// and validated at load time; lookups are read-only thereafter.
package catalog

import "fmt"

// Spell is the static definition of a spell.
type Spell struct {
	Name        string   `yaml:"name"`
	Level       int      `yaml:"level"` // 0 = cantrip
	Classes     []string `yaml:"classes"`
	Range       int      `yaml:"range"` // feet; 0 = self/touch
	DamageDice  string   `yaml:"damage_dice"`
	DamageType  string   `yaml:"damage_type"`
	HealingDice string   `yaml:"healing_dice"`
	AutoHit     bool     `yaml:"auto_hit"`
	Duration    int      `yaml:"duration"` // turns, for applied effects
	ACBonus     int      `yaml:"ac_bonus"` // buff spells; applies the "blessed" status
	Status      string   `yaml:"status"`   // status effect id inflicted on the target
}

// IsDamage reports whether the spell deals damage.
func (s *Spell) IsDamage() bool { return s.DamageDice != "" }

// IsHealing reports whether the spell heals.
func (s *Spell) IsHealing() bool { return s.HealingDice != "" }

// AllowsClass reports whether the given class may cast this spell.
func (s *Spell) AllowsClass(class string) bool {
	for _, c := range s.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Validate checks the spell definition invariants.
//
// Postcondition: Returns nil iff Name is non-empty, Level >= 0, Range >= 0,
// and at least one class is listed.
func (s *Spell) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("spell: name must not be empty")
	}
	if s.Level < 0 {
		return fmt.Errorf("spell %q: level must be >= 0", s.Name)
	}
	if s.Range < 0 {
		return fmt.Errorf("spell %q: range must be >= 0", s.Name)
	}
	if len(s.Classes) == 0 {
		return fmt.Errorf("spell %q: at least one class required", s.Name)
	}
	return nil
}

// Consumable is the static definition of a usable item effect.
type Consumable struct {
	Name         string   `yaml:"name"`
	EffectType   string   `yaml:"effect_type"` // "heal" | "damage" | "buff" | "cure"
	HealingDice  string   `yaml:"healing_dice"`
	DamageDice   string   `yaml:"damage_dice"`
	DamageType   string   `yaml:"damage_type"`
	Duration     int      `yaml:"duration"`
	GrantsStatus string   `yaml:"grants_status"`
	Cures        []string `yaml:"cures"`
}

// Validate checks the consumable definition invariants.
func (c *Consumable) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("consumable: name must not be empty")
	}
	switch c.EffectType {
	case "heal", "damage", "buff", "cure":
		return nil
	default:
		return fmt.Errorf("consumable %q: unknown effect_type %q", c.Name, c.EffectType)
	}
}

// ClassAbility is the static definition of a class combat ability.
type ClassAbility struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Class             string `yaml:"class"`
	MinLevel          int    `yaml:"min_level"`
	MaxUses           int    `yaml:"max_uses"` // 0 = unlimited
	EffectType        string `yaml:"effect_type"`
	HealingDice       string `yaml:"healing_dice"`
	AddsLevel         bool   `yaml:"adds_level"`
	DamageDice        string `yaml:"damage_dice"`
	ScalesWithLevel   bool   `yaml:"scales_with_level"`
	HealingMultiplier int    `yaml:"healing_multiplier"`
	Duration          int    `yaml:"duration"`
	StatusApplied     string `yaml:"status_applied"`
}

// Validate checks the ability definition invariants.
func (a *ClassAbility) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("ability: id must not be empty")
	}
	if a.Class == "" {
		return fmt.Errorf("ability %q: class must not be empty", a.ID)
	}
	switch a.EffectType {
	case "heal_self", "bonus_damage", "heal_allies", "extra_action",
		"mark_target", "recover_slots", "area_effect":
		return nil
	default:
		return fmt.Errorf("ability %q: unknown effect_type %q", a.ID, a.EffectType)
	}
}

// StatusEffectDef is the static definition of a timed status effect.
//
// The advantage/disadvantage flags describe how the effect interacts with
// attack rolls: the *Against flags apply to attacks made against the bearer,
// the Attack* flags apply to attacks the bearer makes.
type StatusEffectDef struct {
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	DefaultDuration     int    `yaml:"default_duration"`
	DamagePerTurn       string `yaml:"damage_per_turn"` // dice spec; empty = none
	HealPerTurn         string `yaml:"heal_per_turn"`   // dice spec; empty = none
	DamageType          string `yaml:"damage_type"`
	ACModifier          int    `yaml:"ac_modifier"`
	SkipsTurn           bool   `yaml:"skips_turn"`
	AdvantageAgainst    bool   `yaml:"advantage_against"`    // attacks against bearer have advantage
	DisadvantageAgainst bool   `yaml:"disadvantage_against"` // attacks against bearer have disadvantage
	AttackAdvantage     bool   `yaml:"attack_advantage"`     // bearer attacks with advantage
	AttackDisadvantage  bool   `yaml:"attack_disadvantage"`  // bearer attacks at disadvantage
	AutoCrit            bool   `yaml:"auto_crit"`            // hits against bearer are critical
	OnTickHook          string `yaml:"on_tick_hook"`         // optional Lua hook name
}

// Validate checks the status effect definition invariants.
func (e *StatusEffectDef) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("status effect: id must not be empty")
	}
	if e.Name == "" {
		return fmt.Errorf("status effect %q: name must not be empty", e.ID)
	}
	if e.DefaultDuration < 1 {
		return fmt.Errorf("status effect %q: default_duration must be >= 1", e.ID)
	}
	return nil
}

// Weapon is the static definition of a weapon's combat properties.
type Weapon struct {
	Name          string   `yaml:"name"`
	Category      string   `yaml:"category"` // e.g. "simple_melee", "martial_ranged"
	DamageDice    string   `yaml:"damage_dice"`
	DamageType    string   `yaml:"damage_type"`
	HitBonus      int      `yaml:"hit_bonus"`
	Range         string   `yaml:"range"` // "normal/long" in feet; empty = melee
	Properties    []string `yaml:"properties"`
	VersatileDice string   `yaml:"versatile_dice"`
}

// HasProperty reports whether the weapon carries the named property
// (e.g. "finesse", "reach", "thrown", "ammunition", "versatile").
func (w *Weapon) HasProperty(name string) bool {
	for _, p := range w.Properties {
		if p == name {
			return true
		}
	}
	return false
}

// Validate checks the weapon definition invariants.
func (w *Weapon) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("weapon: name must not be empty")
	}
	if w.DamageDice == "" {
		return fmt.Errorf("weapon %q: damage_dice must not be empty", w.Name)
	}
	return nil
}

// Monster is the static definition of a monster template.
type Monster struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	LootTable string `yaml:"loot_table"` // empty = no loot
}

// Validate checks the monster definition invariants.
func (m *Monster) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("monster: id must not be empty")
	}
	if m.Name == "" {
		return fmt.Errorf("monster %q: name must not be empty", m.ID)
	}
	return nil
}

// TerrainEffect is the static definition of a terrain type's combat effects.
type TerrainEffect struct {
	TerrainType string `yaml:"terrain_type"`
	CoverBonus  int    `yaml:"cover_bonus"`
	Description string `yaml:"description"`
}

// Validate checks the terrain effect definition invariants.
func (t *TerrainEffect) Validate() error {
	if t.TerrainType == "" {
		return fmt.Errorf("terrain effect: terrain_type must not be empty")
	}
	if t.CoverBonus < 0 {
		return fmt.Errorf("terrain effect %q: cover_bonus must be >= 0", t.TerrainType)
	}
	return nil
}

// LootDrop is one guaranteed or rolled item drop.
type LootDrop struct {
	ItemName string `yaml:"item_name"`
	Quantity int    `yaml:"quantity"`
}

// LootEntry is a weighted item entry in a loot table.
type LootEntry struct {
	ItemName string `yaml:"item_name"`
	Weight   int    `yaml:"weight"`
	Quantity int    `yaml:"quantity"`
}

// LootTable defines the possible drops from a defeated monster.
type LootTable struct {
	ID              string      `yaml:"id"`
	Name            string      `yaml:"name"`
	GoldMin         int         `yaml:"gold_min"`
	GoldMax         int         `yaml:"gold_max"`
	Items           []LootEntry `yaml:"items"`
	GuaranteedDrops []LootDrop  `yaml:"guaranteed_drops"`
	DropCountMin    int         `yaml:"drop_count_min"`
	DropCountMax    int         `yaml:"drop_count_max"`
}

// Validate checks the loot table invariants.
//
// Postcondition: Returns nil iff gold and drop-count ranges are well formed
// and every weighted entry has a positive weight and quantity. An empty
// table (no gold, no items) is valid.
func (lt *LootTable) Validate() error {
	if lt.ID == "" {
		return fmt.Errorf("loot table: id must not be empty")
	}
	if lt.GoldMin < 0 {
		return fmt.Errorf("loot table %q: gold_min must be >= 0", lt.ID)
	}
	if lt.GoldMin > lt.GoldMax {
		return fmt.Errorf("loot table %q: gold_min (%d) must be <= gold_max (%d)", lt.ID, lt.GoldMin, lt.GoldMax)
	}
	if lt.DropCountMin < 0 || lt.DropCountMin > lt.DropCountMax {
		return fmt.Errorf("loot table %q: drop count range [%d,%d] is invalid", lt.ID, lt.DropCountMin, lt.DropCountMax)
	}
	for i, e := range lt.Items {
		if e.ItemName == "" {
			return fmt.Errorf("loot table %q: items[%d] must have a non-empty item_name", lt.ID, i)
		}
		if e.Weight < 1 {
			return fmt.Errorf("loot table %q: items[%d] weight must be >= 1", lt.ID, i)
		}
		if e.Quantity < 1 {
			return fmt.Errorf("loot table %q: items[%d] quantity must be >= 1", lt.ID, i)
		}
	}
	for i, d := range lt.GuaranteedDrops {
		if d.ItemName == "" {
			return fmt.Errorf("loot table %q: guaranteed_drops[%d] must have a non-empty item_name", lt.ID, i)
		}
		if d.Quantity < 1 {
			return fmt.Errorf("loot table %q: guaranteed_drops[%d] quantity must be >= 1", lt.ID, i)
		}
	}
	return nil
}
