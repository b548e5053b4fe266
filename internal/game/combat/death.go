package combat

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

// deathOutcome summarizes what happened when a combatant hit 0 HP or took
// damage while already down.
type deathOutcome struct {
	Dead        bool
	Unconscious bool
	Message     string
}

// dropToZero handles a combatant reaching 0 HP. Players fall unconscious and
// start making death saving throws; NPCs die outright.
//
// Postcondition: c.CurrentHP == 0 and char.CurrentHP == 0. Player characters
// are StatusUnconscious with death saves reset; NPCs are StatusDead with
// c.IsAlive == false.
func (e *Engine) dropToZero(c *Combatant, char *character.Character) deathOutcome {
	c.CurrentHP = 0
	char.CurrentHP = 0

	if !c.IsPlayer {
		char.Status = character.StatusDead
		c.IsAlive = false
		c.CanAct = false
		return deathOutcome{Dead: true, Message: fmt.Sprintf("%s is slain!", c.Name)}
	}

	char.Status = character.StatusUnconscious
	char.ResetDeathSaves()
	c.CanAct = false
	return deathOutcome{Unconscious: true, Message: fmt.Sprintf("%s falls unconscious!", c.Name)}
}

// deathSaveResult is the outcome of one death saving throw.
type deathSaveResult struct {
	Roll      int
	Successes int
	Failures  int
	WokeUp    bool
	Stable    bool
	Dead      bool
	Message   string
}

// deathSave rolls one death saving throw for an unconscious combatant.
// Natural 20 wakes them at 1 HP, natural 1 counts as two failures, 10+ is a
// success; three successes stabilize, three failures kill.
func (e *Engine) deathSave(c *Combatant, char *character.Character) deathSaveResult {
	if char.IsStable {
		return deathSaveResult{Stable: true, Message: fmt.Sprintf("%s is stable.", c.Name)}
	}
	if char.Status == character.StatusDead {
		return deathSaveResult{Dead: true, Message: fmt.Sprintf("%s is dead.", c.Name)}
	}

	roll := dice.D20(e.src)
	res := deathSaveResult{Roll: roll}

	switch {
	case roll == 20:
		char.CurrentHP = 1
		c.CurrentHP = 1
		char.Status = character.StatusAlive
		char.ResetDeathSaves()
		c.CanAct = true
		c.IsAlive = true
		res.WokeUp = true
		res.Message = fmt.Sprintf("%s rolls a natural 20! They regain 1 HP and wake up!", c.Name)
	case roll == 1:
		char.DeathSaveFailures += 2
		res.Message = fmt.Sprintf("%s rolls a natural 1! Two death save failures (%d/3).",
			c.Name, char.DeathSaveFailures)
	case roll >= 10:
		char.DeathSaveSuccesses++
		if char.DeathSaveSuccesses >= 3 {
			char.IsStable = true
			res.Stable = true
			res.Message = fmt.Sprintf("%s rolls %d - success! They stabilize (%d/3 successes).",
				c.Name, roll, char.DeathSaveSuccesses)
		} else {
			res.Message = fmt.Sprintf("%s rolls %d - success! (%d/3 successes).",
				c.Name, roll, char.DeathSaveSuccesses)
		}
	default:
		char.DeathSaveFailures++
		res.Message = fmt.Sprintf("%s rolls %d - failure! (%d/3 failures).",
			c.Name, roll, char.DeathSaveFailures)
	}

	if char.DeathSaveFailures >= 3 {
		char.Status = character.StatusDead
		c.IsAlive = false
		res.Dead = true
		res.Message = fmt.Sprintf("%s rolls %d - failure! They have died (%d/3 failures).",
			c.Name, roll, char.DeathSaveFailures)
	}

	res.Successes = char.DeathSaveSuccesses
	res.Failures = char.DeathSaveFailures
	return res
}

// damageWhileUnconscious converts damage against a downed combatant into
// death save failures: one normally, two for a melee critical.
func (e *Engine) damageWhileUnconscious(c *Combatant, char *character.Character, isMeleeCrit bool) deathOutcome {
	failures := 1
	if isMeleeCrit {
		failures = 2
	}
	char.DeathSaveFailures += failures

	if char.DeathSaveFailures >= 3 {
		char.Status = character.StatusDead
		c.IsAlive = false
		return deathOutcome{Dead: true,
			Message: fmt.Sprintf("%s takes damage while unconscious and dies!", c.Name)}
	}
	return deathOutcome{Unconscious: true,
		Message: fmt.Sprintf("%s takes damage while unconscious! (%d/3 failures).",
			c.Name, char.DeathSaveFailures)}
}

// healUnconscious wakes a downed combatant: their HP becomes the healing
// amount (capped at max) and death save state resets.
func (e *Engine) healUnconscious(c *Combatant, char *character.Character, healing int) string {
	char.CurrentHP = min(char.MaxHP, healing)
	c.CurrentHP = char.CurrentHP
	char.Status = character.StatusAlive
	char.ResetDeathSaves()
	c.CanAct = true
	c.IsAlive = true
	return fmt.Sprintf("%s receives healing and wakes up with %d HP!", c.Name, char.CurrentHP)
}

// applyDamage routes damage to a target: unconscious targets take death save
// failures, standing targets lose HP and may drop. The target's character
// record is loaded, updated, and saved.
func (e *Engine) applyDamage(ctx context.Context, target *Combatant, damage int, isMeleeCrit bool) (*deathOutcome, error) {
	char, err := e.characters.Get(ctx, target.CharacterID)
	if err != nil {
		return nil, err
	}

	var outcome *deathOutcome
	if char.Status == character.StatusUnconscious {
		o := e.damageWhileUnconscious(target, char, isMeleeCrit)
		outcome = &o
	} else {
		target.CurrentHP -= damage
		if target.CurrentHP <= 0 {
			o := e.dropToZero(target, char)
			outcome = &o
		} else {
			char.CurrentHP = target.CurrentHP
		}
	}

	if err := e.characters.Save(ctx, char); err != nil {
		return nil, err
	}
	return outcome, nil
}

// applyHealing routes healing to a target. Any healing wakes an unconscious
// target. The returned message is non-empty only for wake-ups.
func (e *Engine) applyHealing(ctx context.Context, target *Combatant, healing int) (string, error) {
	char, err := e.characters.Get(ctx, target.CharacterID)
	if err != nil {
		return "", err
	}

	var msg string
	if char.Status == character.StatusUnconscious {
		msg = e.healUnconscious(target, char, healing)
	} else {
		target.CurrentHP = min(target.MaxHP, target.CurrentHP+healing)
		char.CurrentHP = target.CurrentHP
	}

	if err := e.characters.Save(ctx, char); err != nil {
		return "", err
	}
	return msg, nil
}
