package combat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/character"
)

// meleeReach is the default melee range in feet; reach weapons extend it.
const (
	meleeReach      = 5
	extendedReach   = 10
	outOfZoneFeet   = 999
	feetPerGridCell = 5
)

// distanceBetween computes the distance in feet between two characters on
// the grid. Chebyshev distance is used so diagonals count as one square;
// adjacent squares are 5 feet. Characters in different zones are treated as
// unreachably far apart.
func distanceBetween(a, b *character.Character) int {
	if a.ZoneID != b.ZoneID {
		return outOfZoneFeet
	}
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	return max(meleeReach, max(dx, dy)*feetPerGridCell)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// parseWeaponRange parses a "normal/long" range string in feet. A missing or
// malformed string falls back to melee reach.
func parseWeaponRange(rangeStr string) (normal, long int) {
	if rangeStr == "" {
		return meleeReach, meleeReach
	}
	parts := strings.SplitN(rangeStr, "/", 2)
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return meleeReach, meleeReach
	}
	l := n
	if len(parts) == 2 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			l = v
		}
	}
	return n, l
}

// RangeCheck is the verdict on whether an attack can reach its target.
type RangeCheck struct {
	InRange        bool
	AtDisadvantage bool // attack at long range
	IsRanged       bool
	Info           string
}

// checkWeaponRange decides whether a weapon (nil = unarmed) can reach a
// target at the given distance. Ranged weapons use their normal/long bands;
// a thrown melee weapon switches to its throw bands beyond melee reach; long
// range imposes disadvantage.
func checkWeaponRange(weapon *catalog.Weapon, distance int) RangeCheck {
	res := RangeCheck{InRange: true, Info: "melee range"}

	if weapon == nil {
		if distance > meleeReach {
			res.InRange = false
			res.Info = fmt.Sprintf("target is %d feet away, unarmed reach is %d feet", distance, meleeReach)
		}
		return res
	}

	reach := meleeReach
	if weapon.HasProperty("reach") {
		reach = extendedReach
	}
	isRangedWeapon := weapon.HasProperty("ammunition") || strings.HasSuffix(weapon.Category, "_ranged")

	switch {
	case isRangedWeapon:
		res.IsRanged = true
		normal, long := parseWeaponRange(weapon.Range)
		switch {
		case distance > long:
			res.InRange = false
			res.Info = fmt.Sprintf("target is %d feet away, max range is %d feet", distance, long)
		case distance > normal:
			res.AtDisadvantage = true
			res.Info = fmt.Sprintf("long range (%d feet, normal is %d)", distance, normal)
		default:
			res.Info = fmt.Sprintf("normal range (%d feet)", distance)
		}

	case weapon.HasProperty("thrown") && distance > reach:
		res.IsRanged = true
		normal, long := parseWeaponRange(weapon.Range)
		switch {
		case distance > long:
			res.InRange = false
			res.Info = fmt.Sprintf("target is %d feet away, max throw range is %d feet", distance, long)
		case distance > normal:
			res.AtDisadvantage = true
			res.Info = fmt.Sprintf("long throw range (%d feet, normal is %d)", distance, normal)
		default:
			res.Info = fmt.Sprintf("thrown (%d feet)", distance)
		}

	case distance > reach:
		res.InRange = false
		res.Info = fmt.Sprintf("target is %d feet away, melee reach is %d feet", distance, reach)
	}

	return res
}

// coverBonus returns the terrain cover AC bonus at the combatant's position,
// or 0 when the session has no zone or no terrain data is available.
func (e *Engine) coverBonus(ctx context.Context, s *Session, char *character.Character) int {
	if s.ZoneID == 0 || e.terrain == nil || char.ZoneID == 0 {
		return 0
	}
	terrainType, err := e.terrain.TerrainAt(ctx, char.ZoneID, char.X, char.Y)
	if err != nil || terrainType == "" {
		return 0
	}
	effect, ok := e.catalog.TerrainEffect(terrainType)
	if !ok {
		return 0
	}
	return effect.CoverBonus
}
