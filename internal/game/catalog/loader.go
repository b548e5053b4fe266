package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File names expected inside a catalog data directory. A missing file is
// treated as an empty section so test fixtures can stay small.
const (
	spellsFile      = "spells.yaml"
	consumablesFile = "consumables.yaml"
	abilitiesFile   = "class_abilities.yaml"
	effectsFile     = "status_effects.yaml"
	weaponsFile     = "weapons.yaml"
	monstersFile    = "monsters.yaml"
	terrainFile     = "terrain_effects.yaml"
	lootTablesFile  = "loot_tables.yaml"
)

// LoadDirectory reads every catalog YAML file in dir and returns a validated
// Catalog. Unknown YAML fields are rejected.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Catalog, or an error naming the first
// file or entry that failed to parse or validate.
func LoadDirectory(dir string) (*Catalog, error) {
	var spells struct {
		Spells []*Spell `yaml:"spells"`
	}
	if err := decodeFile(filepath.Join(dir, spellsFile), &spells); err != nil {
		return nil, err
	}

	var consumables struct {
		Consumables []*Consumable `yaml:"consumables"`
	}
	if err := decodeFile(filepath.Join(dir, consumablesFile), &consumables); err != nil {
		return nil, err
	}

	var abilities struct {
		ClassAbilities []*ClassAbility `yaml:"class_abilities"`
	}
	if err := decodeFile(filepath.Join(dir, abilitiesFile), &abilities); err != nil {
		return nil, err
	}

	var effects struct {
		StatusEffects []*StatusEffectDef `yaml:"status_effects"`
	}
	if err := decodeFile(filepath.Join(dir, effectsFile), &effects); err != nil {
		return nil, err
	}

	var weapons struct {
		Weapons []*Weapon `yaml:"weapons"`
	}
	if err := decodeFile(filepath.Join(dir, weaponsFile), &weapons); err != nil {
		return nil, err
	}

	var monsters struct {
		Monsters []*Monster `yaml:"monsters"`
	}
	if err := decodeFile(filepath.Join(dir, monstersFile), &monsters); err != nil {
		return nil, err
	}

	var terrain struct {
		TerrainEffects []*TerrainEffect `yaml:"terrain_effects"`
	}
	if err := decodeFile(filepath.Join(dir, terrainFile), &terrain); err != nil {
		return nil, err
	}

	var lootTables struct {
		LootTables []*LootTable `yaml:"loot_tables"`
	}
	if err := decodeFile(filepath.Join(dir, lootTablesFile), &lootTables); err != nil {
		return nil, err
	}

	return New(
		spells.Spells,
		consumables.Consumables,
		abilities.ClassAbilities,
		effects.StatusEffects,
		weapons.Weapons,
		monsters.Monsters,
		terrain.TerrainEffects,
		lootTables.LootTables,
	)
}

// decodeFile strictly decodes a single YAML file into out. A missing file is
// not an error; out is left at its zero value.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("catalog: reading %q: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("catalog: parsing %q: %w", path, err)
	}
	return nil
}
