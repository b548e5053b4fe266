package combat

import (
	"context"
	"fmt"
	"sort"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// NPC decision thresholds: below fleeHPFraction of max HP the NPC may run,
// below healHPFraction it looks for healing first.
const (
	fleeHPFraction   = 0.20
	healHPFraction   = 0.40
	npcFleeChance    = 0.5
	npcSpellCastOdds = 0.7
)

// processNPCAction runs one NPC turn: start-of-turn upkeep, then a decision
// tree of flee, heal, cast, and attack in priority order. Resolver failures
// (out of slots, out of range) fall through to the next option rather than
// aborting the turn.
func (e *Engine) processNPCAction(ctx context.Context, s *Session, npc *Combatant) (*Action, error) {
	e.clearStance(s, npc)

	effectMessages, err := e.processStartOfTurnEffects(ctx, s, npc)
	if err != nil {
		return nil, err
	}

	if !npc.IsAlive || !npc.CanAct {
		desc := fmt.Sprintf("%s is incapacitated.", npc.Name)
		if len(effectMessages) > 0 {
			desc = joinMessages(effectMessages, "")
		}
		return s.recordAction(&Action{
			ActorID:     npc.ID,
			Type:        ActionPass,
			Description: desc,
		}), nil
	}

	if skipped, skipDesc := e.turnSkippingEffect(npc); skipped {
		return s.recordAction(&Action{
			ActorID:     npc.ID,
			Type:        ActionPass,
			Description: joinMessages(effectMessages, skipDesc),
		}), nil
	}

	char, err := e.characters.Get(ctx, npc.CharacterID)
	if err != nil {
		return nil, err
	}

	hpFraction := 1.0
	if npc.MaxHP > 0 {
		hpFraction = float64(npc.CurrentHP) / float64(npc.MaxHP)
	}

	if hpFraction < fleeHPFraction && e.chance(npcFleeChance) {
		return e.executeFlee(s, npc), nil
	}

	if hpFraction < healHPFraction {
		if action, ok, err := e.npcTryHeal(ctx, s, npc, char); err != nil {
			return nil, err
		} else if ok {
			return action, nil
		}
	}

	target := e.selectTarget(npc, s)
	if target == nil {
		return s.recordAction(&Action{
			ActorID:     npc.ID,
			Type:        ActionPass,
			Description: joinMessages(effectMessages, fmt.Sprintf("%s has no valid target and passes.", npc.Name)),
		}), nil
	}

	if char.Class.IsSpellcaster() {
		if spell := e.npcSelectOffensiveSpell(char); spell != "" && e.chance(npcSpellCastOdds) {
			action, err := e.executeSpell(ctx, s, npc, target, spell)
			if err == nil {
				return action, nil
			}
			if !isDomainError(err) {
				return nil, err
			}
			// fall back to a plain attack
		}
	}

	return e.executeAttack(ctx, s, npc, target)
}

// npcTryHeal attempts, in order: a healing potion, a healing spell, then a
// self-targeted ability. ok is false when none was available or all failed.
func (e *Engine) npcTryHeal(ctx context.Context, s *Session, npc *Combatant, char *character.Character) (*Action, bool, error) {
	potion, err := e.inventory.HealingPotion(ctx, char.ID)
	if err != nil {
		return nil, false, err
	}
	if potion != nil {
		action, err := e.executeItem(ctx, s, npc, npc, potion.ID)
		if err == nil {
			return action, true, nil
		}
		if !isDomainError(err) {
			return nil, false, err
		}
	}

	if spell := e.npcSelectHealingSpell(char); spell != "" {
		action, err := e.executeSpell(ctx, s, npc, npc, spell)
		if err == nil {
			return action, true, nil
		}
		if !isDomainError(err) {
			return nil, false, err
		}
	}

	if ability := e.npcAvailableAbility(char); ability != "" {
		action, err := e.executeAbility(ctx, s, npc, nil, ability)
		if err == nil {
			return action, true, nil
		}
		if !isDomainError(err) {
			return nil, false, err
		}
	}

	return nil, false, nil
}

// npcCanCast checks class and slot availability for a spell.
func npcCanCast(char *character.Character, spell *catalog.Spell) bool {
	if !spell.AllowsClass(string(char.Class)) {
		return false
	}
	if spell.Level > 0 && char.SpellSlots[spell.Level] <= 0 {
		return false
	}
	return true
}

// npcSelectOffensiveSpell picks the highest-level damage spell the NPC can
// cast, or "".
func (e *Engine) npcSelectOffensiveSpell(char *character.Character) string {
	return e.npcSelectSpell(char, (*catalog.Spell).IsDamage)
}

// npcSelectHealingSpell picks the highest-level healing spell the NPC can
// cast, or "".
func (e *Engine) npcSelectHealingSpell(char *character.Character) string {
	return e.npcSelectSpell(char, (*catalog.Spell).IsHealing)
}

func (e *Engine) npcSelectSpell(char *character.Character, want func(*catalog.Spell) bool) string {
	var candidates []*catalog.Spell
	for _, spell := range e.catalog.Spells() {
		if want(spell) && spell.AllowsClass(string(char.Class)) {
			candidates = append(candidates, spell)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Level > candidates[j].Level })

	for _, spell := range candidates {
		if npcCanCast(char, spell) {
			return spell.Name
		}
	}
	return ""
}

// npcAvailableAbility returns an untargeted class ability with uses left,
// or "".
func (e *Engine) npcAvailableAbility(char *character.Character) string {
	for _, ability := range e.catalog.Abilities() {
		if ability.Class != string(char.Class) || ability.MinLevel > char.Level {
			continue
		}
		switch ability.EffectType {
		case "heal_self", "extra_action", "recover_slots":
		default:
			continue
		}
		if ability.MaxUses == 0 {
			continue
		}
		remaining, tracked := char.AbilityUses[ability.ID]
		if !tracked {
			remaining = ability.MaxUses
		}
		if remaining > 0 {
			return ability.ID
		}
	}
	return ""
}

// chance rolls a probability on the engine's dice source.
func (e *Engine) chance(p float64) bool {
	return dice.Chance(e.src, p)
}

// isDomainError reports whether err is an expected in-combat failure that
// the NPC AI should route around instead of propagating.
func isDomainError(err error) bool {
	switch err.(type) {
	case *CombatError, *ValidationError, *NotFoundError:
		return true
	}
	return false
}
