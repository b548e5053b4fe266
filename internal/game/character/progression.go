package character

// xpThresholds is the cumulative XP required to reach each level.
var xpThresholds = [...]int{
	1:  0,
	2:  300,
	3:  900,
	4:  2700,
	5:  6500,
	6:  14000,
	7:  23000,
	8:  34000,
	9:  48000,
	10: 64000,
	11: 85000,
	12: 100000,
	13: 120000,
	14: 140000,
	15: 165000,
	16: 195000,
	17: 225000,
	18: 265000,
	19: 305000,
	20: 355000,
}

// MaxLevel is the level cap.
const MaxLevel = 20

// LevelForXP returns the level a character with the given total XP holds.
//
// Postcondition: Returns a value in [1, MaxLevel].
func LevelForXP(xp int) int {
	level := 1
	for lvl := 2; lvl <= MaxLevel; lvl++ {
		if xp < xpThresholds[lvl] {
			break
		}
		level = lvl
	}
	return level
}

// XPForNextLevel returns the cumulative XP required for the next level, or
// (0, false) at the level cap.
func XPForNextLevel(currentLevel int) (int, bool) {
	if currentLevel >= MaxLevel {
		return 0, false
	}
	return xpThresholds[currentLevel+1], true
}

// AwardResult describes the outcome of an experience award.
type AwardResult struct {
	CharacterID  int64
	XPGained     int
	TotalXP      int
	OldLevel     int
	NewLevel     int
	LeveledUp    bool
	LevelsGained int
	HPGained     int
}

// hpPerLevelBase is the flat HP granted per level before the CON modifier.
const hpPerLevelBase = 5

// AwardExperience adds xp to the character and applies any level-ups: each
// level gained grants max(1, 5 + CON modifier) max HP (also added to current
// HP), and spellcasters gain new spell slots.
//
// Precondition: xp >= 0.
// Postcondition: c.Level == LevelForXP(c.Experience) whenever the award
// raised the level; the character's level never decreases.
func AwardExperience(c *Character, xp int) AwardResult {
	if xp < 0 {
		panic("character: AwardExperience called with negative xp")
	}
	res := AwardResult{
		CharacterID: c.ID,
		XPGained:    xp,
		OldLevel:    c.Level,
		NewLevel:    c.Level,
	}
	c.Experience += xp
	res.TotalXP = c.Experience

	newLevel := LevelForXP(c.Experience)
	if newLevel <= c.Level {
		return res
	}

	res.LeveledUp = true
	res.LevelsGained = newLevel - c.Level
	res.NewLevel = newLevel
	c.Level = newLevel

	hpPerLevel := hpPerLevelBase + c.Abilities.ConstitutionMod()
	if hpPerLevel < 1 {
		hpPerLevel = 1
	}
	res.HPGained = hpPerLevel * res.LevelsGained
	c.MaxHP += res.HPGained
	c.CurrentHP += res.HPGained

	c.UpdateSpellSlotsForLevel()
	return res
}
