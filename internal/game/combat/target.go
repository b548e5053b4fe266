package combat

// Threat-weighted target selection. Weights are kept integral at twice the
// reference scale so the low-HP multiplier of 1.5 stays exact.

// threatWeight returns the selection weight for an enemy: a base of 10 plus
// twice their threat, boosted by half again when they are below a quarter of
// their max HP. The returned value is doubled to stay integral.
func threatWeight(c *Combatant) int {
	weight := 2 * (10 + 2*c.Threat)
	if c.MaxHP > 0 && 4*c.CurrentHP < c.MaxHP {
		weight = weight * 3 / 2
	}
	return weight
}

// selectTarget picks a living enemy of the attacker by threat-weighted
// random selection, or nil when no enemy remains.
func (e *Engine) selectTarget(attacker *Combatant, s *Session) *Combatant {
	var enemies []*Combatant
	total := 0
	for _, c := range s.Combatants {
		if c.IsAlive && c.TeamID != attacker.TeamID {
			enemies = append(enemies, c)
			total += threatWeight(c)
		}
	}
	if len(enemies) == 0 {
		return nil
	}

	roll := e.src.Intn(total)
	cumulative := 0
	for _, enemy := range enemies {
		cumulative += threatWeight(enemy)
		if roll < cumulative {
			return enemy
		}
	}
	return enemies[len(enemies)-1]
}
