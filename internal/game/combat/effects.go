package combat

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// Stance effects are cleared at the start of the owner's next turn instead
// of ticking down at end of turn.
const (
	EffectDefending = "defending"
	EffectDodging   = "dodging"
)

// applyEffect puts a status effect on the combatant. An unknown effect id is
// ignored. Re-applying an effect only extends its duration, never stacks its
// AC modifier.
//
// Postcondition: c.StatusEffects[effectID] >= duration when the effect id is
// known; the effect's AC modifier is applied at most once.
func (e *Engine) applyEffect(c *Combatant, effectID string, duration int) {
	def, ok := e.catalog.StatusEffect(effectID)
	if !ok {
		return
	}
	if duration <= 0 {
		duration = def.DefaultDuration
	}
	current, present := c.StatusEffects[effectID]
	if present && current >= duration {
		return
	}
	if !present && def.ACModifier != 0 {
		c.ArmorClass += def.ACModifier
	}
	c.StatusEffects[effectID] = duration
}

// removeEffect strips a status effect, reverting its AC modifier.
func (e *Engine) removeEffect(c *Combatant, effectID string) {
	if _, present := c.StatusEffects[effectID]; !present {
		return
	}
	if def, ok := e.catalog.StatusEffect(effectID); ok && def.ACModifier != 0 {
		c.ArmorClass -= def.ACModifier
	}
	delete(c.StatusEffects, effectID)
}

// clearStance drops defending and dodging at the start of the owner's turn.
func (e *Engine) clearStance(_ *Session, c *Combatant) {
	e.removeEffect(c, EffectDefending)
	e.removeEffect(c, EffectDodging)
}

// sortedEffectIDs returns the combatant's effect ids in a stable order so
// per-turn processing is deterministic under a scripted dice source.
func sortedEffectIDs(c *Combatant) []string {
	ids := make([]string, 0, len(c.StatusEffects))
	for id := range c.StatusEffects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// turnSkippingEffect reports whether an active effect forces the combatant
// to skip their turn, with a log-ready description.
func (e *Engine) turnSkippingEffect(c *Combatant) (bool, string) {
	for _, id := range sortedEffectIDs(c) {
		if def, ok := e.catalog.StatusEffect(id); ok && def.SkipsTurn {
			return true, fmt.Sprintf("%s is %s and cannot act!", c.Name, def.Name)
		}
	}
	return false, ""
}

// processStartOfTurnEffects runs upkeep when a combatant's turn begins.
// Unconscious combatants make a death saving throw instead of normal upkeep.
// Otherwise each active effect applies its damage or healing over time and
// runs its scripted tick hook.
//
// Postcondition: The combatant's character record reflects any HP change.
func (e *Engine) processStartOfTurnEffects(ctx context.Context, s *Session, c *Combatant) ([]string, error) {
	char, err := e.characters.Get(ctx, c.CharacterID)
	if err != nil {
		return nil, err
	}

	if char.Status == character.StatusUnconscious {
		res := e.deathSave(c, char)
		if err := e.characters.Save(ctx, char); err != nil {
			return nil, err
		}
		return []string{res.Message}, nil
	}

	var messages []string
	for _, id := range sortedEffectIDs(c) {
		def, ok := e.catalog.StatusEffect(id)
		if !ok {
			continue
		}

		if def.DamagePerTurn != "" {
			damage := dice.RollDamage(def.DamagePerTurn, e.src)
			c.CurrentHP -= damage
			messages = append(messages, fmt.Sprintf("%s takes %d %s damage from %s!",
				c.Name, damage, def.DamageType, def.Name))
			if c.CurrentHP <= 0 {
				outcome := e.dropToZero(c, char)
				if outcome.Message != "" {
					messages = append(messages, outcome.Message)
				}
			} else {
				char.CurrentHP = c.CurrentHP
			}
		}

		if def.HealPerTurn != "" {
			healing := dice.RollDamage(def.HealPerTurn, e.src)
			if char.Status == character.StatusUnconscious {
				msg := e.healUnconscious(c, char, healing)
				messages = append(messages, msg)
			} else {
				c.CurrentHP = min(c.MaxHP, c.CurrentHP+healing)
				char.CurrentHP = c.CurrentHP
				messages = append(messages, fmt.Sprintf("%s heals %d HP from %s.", c.Name, healing, def.Name))
			}
		}

		if def.OnTickHook != "" && e.hooks != nil {
			msg, err := e.hooks.RunEffectTick(ctx, def.OnTickHook, c.Name, c.StatusEffects[id])
			if err != nil {
				e.logger.Warn("effect tick hook failed",
					zap.String("hook", def.OnTickHook),
					zap.String("effect", id),
					zap.Error(err))
			} else if msg != "" {
				messages = append(messages, msg)
			}
		}
	}

	if err := e.characters.Save(ctx, char); err != nil {
		return nil, err
	}
	return messages, nil
}

// tickDownEffects decrements effect durations at the end of the combatant's
// turn and strips expired effects. Stance effects are exempt; they clear at
// the start of the owner's next turn.
func (e *Engine) tickDownEffects(s *Session, c *Combatant) {
	for _, id := range sortedEffectIDs(c) {
		if id == EffectDefending || id == EffectDodging {
			continue
		}
		c.StatusEffects[id]--
		if c.StatusEffects[id] <= 0 {
			e.removeEffect(c, id)
			e.logger.Debug("status effect expired",
				zap.Int64("session_id", s.ID),
				zap.String("combatant", c.Name),
				zap.String("effect", id))
		}
	}
}
