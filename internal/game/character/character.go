// Package character defines the character domain model: ability scores,
// classes, health and death state, spell slots, and experience progression.
// All logic here is pure; persistence lives in internal/storage.
package character

import (
	"fmt"

	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// Class identifies a character class.
type Class string

const (
	ClassWarrior Class = "warrior"
	ClassMage    Class = "mage"
	ClassRogue   Class = "rogue"
	ClassCleric  Class = "cleric"
	ClassRanger  Class = "ranger"
)

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	switch c {
	case ClassWarrior, ClassMage, ClassRogue, ClassCleric, ClassRanger:
		return true
	}
	return false
}

// IsSpellcaster reports whether the class has spell slots.
func (c Class) IsSpellcaster() bool {
	return c == ClassMage || c == ClassCleric
}

// Type distinguishes player characters from NPCs.
type Type string

const (
	TypePlayer Type = "player"
	TypeNPC    Type = "npc"
)

// Status is a character's life state.
type Status string

const (
	StatusAlive       Status = "alive"
	StatusUnconscious Status = "unconscious"
	StatusDead        Status = "dead"
)

// AbilityScores holds the six ability score values for a character.
type AbilityScores struct {
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
}

// Modifiers for each ability score.
func (a AbilityScores) StrengthMod() int     { return dice.AbilityModifier(a.Strength) }
func (a AbilityScores) DexterityMod() int    { return dice.AbilityModifier(a.Dexterity) }
func (a AbilityScores) ConstitutionMod() int { return dice.AbilityModifier(a.Constitution) }
func (a AbilityScores) IntelligenceMod() int { return dice.AbilityModifier(a.Intelligence) }
func (a AbilityScores) WisdomMod() int       { return dice.AbilityModifier(a.Wisdom) }
func (a AbilityScores) CharismaMod() int     { return dice.AbilityModifier(a.Charisma) }

// Character is a player character or NPC's persistent state.
//
// ID is assigned by the persistence layer; zero indicates an unsaved
// character. SpellSlots and MaxSpellSlots are keyed by spell level.
// AbilityUses is keyed by class ability id and holds remaining uses.
//
// Invariant: 0 <= CurrentHP <= MaxHP; Status is StatusUnconscious or
// StatusDead whenever CurrentHP == 0.
type Character struct {
	ID int64

	Name   string
	Class  Class
	Type   Type
	Status Status
	Level  int

	Abilities AbilityScores

	CurrentHP   int
	MaxHP       int
	TemporaryHP int
	ArmorClass  int

	Gold       int
	Experience int

	SpellSlots    map[int]int
	MaxSpellSlots map[int]int
	AbilityUses   map[string]int

	DeathSaveSuccesses int
	DeathSaveFailures  int
	IsStable           bool

	// MonsterID references the monster template for loot rolls. Empty for
	// player characters.
	MonsterID string

	X      int
	Y      int
	ZoneID int64
}

// classBonuses are the starting adjustments applied at creation.
var classBonuses = map[Class]AbilityScores{
	ClassWarrior: {Strength: 2, Constitution: 1},
	ClassMage:    {Intelligence: 2, Wisdom: 1},
	ClassRogue:   {Dexterity: 2, Charisma: 1},
	ClassCleric:  {Wisdom: 2, Constitution: 1},
	ClassRanger:  {Strength: 1, Dexterity: 1, Wisdom: 1},
}

// warriorBaseHPBonus is extra starting HP for warriors.
const warriorBaseHPBonus = 10

// New constructs a level-1 character of the given class with base ability
// scores of 10, class bonuses applied, and spell slots initialized for
// spellcasters.
//
// Precondition: name must be non-empty and class must be a known class.
// Postcondition: Returns a Character with CurrentHP == MaxHP >= 1, or a
// non-nil error.
func New(name string, class Class, typ Type) (*Character, error) {
	if name == "" {
		return nil, fmt.Errorf("character name must not be empty")
	}
	if !class.Valid() {
		return nil, fmt.Errorf("unknown character class %q", class)
	}

	abilities := AbilityScores{
		Strength: 10, Dexterity: 10, Constitution: 10,
		Intelligence: 10, Wisdom: 10, Charisma: 10,
	}
	bonus := classBonuses[class]
	abilities.Strength += bonus.Strength
	abilities.Dexterity += bonus.Dexterity
	abilities.Constitution += bonus.Constitution
	abilities.Intelligence += bonus.Intelligence
	abilities.Wisdom += bonus.Wisdom
	abilities.Charisma += bonus.Charisma

	maxHP := 10
	if class == ClassWarrior {
		maxHP += warriorBaseHPBonus
	}

	c := &Character{
		Name:        name,
		Class:       class,
		Type:        typ,
		Status:      StatusAlive,
		Level:       1,
		Abilities:   abilities,
		CurrentHP:   maxHP,
		MaxHP:       maxHP,
		ArmorClass:  10,
		AbilityUses: make(map[string]int),
	}
	c.initSpellSlots()
	return c, nil
}

// spellSlotsByLevel maps caster level to slots per spell level.
var spellSlotsByLevel = map[int]map[int]int{
	1:  {1: 2},
	2:  {1: 3},
	3:  {1: 4, 2: 2},
	4:  {1: 4, 2: 3},
	5:  {1: 4, 2: 3, 3: 2},
	6:  {1: 4, 2: 3, 3: 3},
	7:  {1: 4, 2: 3, 3: 3, 4: 1},
	8:  {1: 4, 2: 3, 3: 3, 4: 2},
	9:  {1: 4, 2: 3, 3: 3, 4: 3, 5: 1},
	10: {1: 4, 2: 3, 3: 3, 4: 3, 5: 2},
}

// maxCasterTableLevel caps slot progression; higher levels keep level-10 slots.
const maxCasterTableLevel = 10

func (c *Character) initSpellSlots() {
	if !c.Class.IsSpellcaster() {
		return
	}
	lvl := min(c.Level, maxCasterTableLevel)
	c.SpellSlots = make(map[int]int)
	c.MaxSpellSlots = make(map[int]int)
	for slotLevel, count := range spellSlotsByLevel[lvl] {
		c.SpellSlots[slotLevel] = count
		c.MaxSpellSlots[slotLevel] = count
	}
}

// UpdateSpellSlotsForLevel raises the slot maxima to the character's current
// level and grants the newly gained slots as available. Already spent slots
// are not refunded.
//
// Postcondition: For every slot level, SpellSlots[l] <= MaxSpellSlots[l].
func (c *Character) UpdateSpellSlotsForLevel() {
	if !c.Class.IsSpellcaster() {
		return
	}
	if c.SpellSlots == nil {
		c.initSpellSlots()
		return
	}
	lvl := min(c.Level, maxCasterTableLevel)
	newMax := spellSlotsByLevel[lvl]
	for slotLevel, count := range newMax {
		if gained := count - c.MaxSpellSlots[slotLevel]; gained > 0 {
			c.SpellSlots[slotLevel] += gained
		}
	}
	c.MaxSpellSlots = make(map[int]int, len(newMax))
	for slotLevel, count := range newMax {
		c.MaxSpellSlots[slotLevel] = count
	}
}

// ResetDeathSaves clears the death saving throw state.
func (c *Character) ResetDeathSaves() {
	c.DeathSaveSuccesses = 0
	c.DeathSaveFailures = 0
	c.IsStable = false
}

// Alive reports whether the character is conscious and able to act.
func (c *Character) Alive() bool { return c.Status == StatusAlive }
