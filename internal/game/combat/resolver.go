package combat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

const (
	unarmedDamageDice = "1d4"

	// spellProficiencyBonus is the flat bonus on spell attack rolls.
	spellProficiencyBonus = 2

	// defaultEffectDuration applies when a spell, item, or ability grants a
	// status without naming a duration.
	defaultEffectDuration = 10

	fleeChance = 0.5
)

// resolvePlayerAction validates and dispatches one player action request.
func (e *Engine) resolvePlayerAction(ctx context.Context, s *Session, actor *Combatant, req PlayerActionRequest) (*Action, error) {
	lookupTarget := func() (*Combatant, error) {
		if req.TargetID == 0 {
			return nil, nil
		}
		target := s.Combatant(req.TargetID)
		if target == nil {
			return nil, NewNotFoundError("Combatant", req.TargetID)
		}
		return target, nil
	}

	switch req.Type {
	case ActionAttack:
		if req.TargetID == 0 {
			return nil, NewCombatError("attack requires a target")
		}
		target, err := lookupTarget()
		if err != nil {
			return nil, err
		}
		if target.TeamID == actor.TeamID {
			return nil, NewCombatError("cannot attack teammates")
		}
		if !target.IsAlive {
			return nil, NewCombatError("target is not alive")
		}
		return e.executeAttack(ctx, s, actor, target)

	case ActionDefend:
		return e.executeDefend(s, actor), nil

	case ActionDodge:
		return e.executeDodge(s, actor), nil

	case ActionFlee:
		return e.executeFlee(s, actor), nil

	case ActionSpell:
		if req.SpellName == "" {
			return nil, NewCombatError("spell action requires a spell name")
		}
		target, err := lookupTarget()
		if err != nil {
			return nil, err
		}
		return e.executeSpell(ctx, s, actor, target, req.SpellName)

	case ActionItem:
		if req.ItemID == 0 {
			return nil, NewCombatError("item action requires an item id")
		}
		target, err := lookupTarget()
		if err != nil {
			return nil, err
		}
		return e.executeItem(ctx, s, actor, target, req.ItemID)

	case ActionAbility:
		if req.AbilityID == "" {
			return nil, NewCombatError("ability action requires an ability id")
		}
		target, err := lookupTarget()
		if err != nil {
			return nil, err
		}
		return e.executeAbility(ctx, s, actor, target, req.AbilityID)

	case ActionPass:
		return s.recordAction(&Action{
			ActorID:     actor.ID,
			Type:        ActionPass,
			Description: fmt.Sprintf("%s passes their turn.", actor.Name),
		}), nil

	default:
		return nil, NewCombatError("action type %q not implemented", req.Type)
	}
}

// executeAttack resolves a weapon (or unarmed) attack: range gate, then a
// d20 roll under advantage/disadvantage from status effects and long range,
// against the target's AC plus terrain cover. Critical hits double the
// damage dice but not the modifier; a hit always deals at least 1 damage.
func (e *Engine) executeAttack(ctx context.Context, s *Session, attacker, target *Combatant) (*Action, error) {
	attackerChar, err := e.characters.Get(ctx, attacker.CharacterID)
	if err != nil {
		return nil, err
	}
	targetChar, err := e.characters.Get(ctx, target.CharacterID)
	if err != nil {
		return nil, err
	}

	strMod := attackerChar.Abilities.StrengthMod()
	dexMod := attackerChar.Abilities.DexterityMod()

	var weapon *catalog.Weapon
	damageDice := unarmedDamageDice
	hitBonus := 0
	if inv, err := e.inventory.EquippedWeapon(ctx, attackerChar.ID); err != nil {
		return nil, err
	} else if inv != nil {
		if def, ok := e.catalog.Weapon(inv.ItemName); ok {
			weapon = def
			damageDice = def.DamageDice
			hitBonus = def.HitBonus

			if def.HasProperty("versatile") && def.VersatileDice != "" {
				offhand, err := e.inventory.EquippedInSlot(ctx, attackerChar.ID, "off_hand")
				if err != nil {
					return nil, err
				}
				if offhand == nil {
					damageDice = def.VersatileDice
				}
			}
		}
	}

	attackMod := strMod
	if weapon != nil && weapon.HasProperty("finesse") {
		attackMod = max(strMod, dexMod)
	}

	distance := distanceBetween(attackerChar, targetChar)
	rangeCheck := checkWeaponRange(weapon, distance)
	if !rangeCheck.InRange {
		return s.recordAction(&Action{
			ActorID:  attacker.ID,
			TargetID: target.ID,
			Type:     ActionAttack,
			Description: fmt.Sprintf("%s cannot attack %s: %s",
				attacker.Name, target.Name, rangeCheck.Info),
		}), nil
	}

	advantage, disadvantage, autoCrit := e.attackModifiers(attacker, target)
	if rangeCheck.AtDisadvantage {
		disadvantage = true
	}

	roll1 := dice.D20(e.src)
	roll2 := dice.D20(e.src)
	roll := roll1
	switch {
	case advantage && disadvantage:
		// cancel out
	case advantage:
		roll = max(roll1, roll2)
	case disadvantage:
		roll = min(roll1, roll2)
	}

	total := roll + attackMod + hitBonus
	effectiveAC := target.ArmorClass + e.coverBonus(ctx, s, targetChar)

	hit := total >= effectiveAC || roll == 20
	critical := roll == 20 || (hit && autoCrit)

	damage := 0
	var outcome *deathOutcome
	if hit {
		damage = dice.RollDamage(damageDice, e.src) + attackMod
		if critical {
			damage += dice.RollDamage(damageDice, e.src)
		}
		damage = max(1, damage)

		isMelee := !rangeCheck.IsRanged && distance <= meleeReach
		outcome, err = e.applyDamage(ctx, target, damage, isMelee && critical)
		if err != nil {
			return nil, err
		}
		attacker.Threat += damage / 2
	}

	verb := "misses"
	if critical && hit {
		verb = "critically hits"
	} else if hit {
		verb = "hits"
	}
	desc := fmt.Sprintf("%s %s %s", attacker.Name, verb, target.Name)
	if hit {
		desc += fmt.Sprintf(" for %d damage!", damage)
		desc += outcomeSuffix(target, outcome)
	} else {
		desc += "."
	}

	return s.recordAction(&Action{
		ActorID:     attacker.ID,
		TargetID:    target.ID,
		Type:        ActionAttack,
		Roll:        roll,
		Total:       total,
		Damage:      damage,
		Hit:         hit,
		Critical:    critical,
		Description: desc,
	}), nil
}

// attackModifiers folds the attacker's and target's status effects into
// advantage, disadvantage, and auto-crit flags.
func (e *Engine) attackModifiers(attacker, target *Combatant) (advantage, disadvantage, autoCrit bool) {
	for _, id := range sortedEffectIDs(target) {
		def, ok := e.catalog.StatusEffect(id)
		if !ok {
			continue
		}
		if def.AdvantageAgainst {
			advantage = true
		}
		if def.DisadvantageAgainst {
			disadvantage = true
		}
		if def.AutoCrit {
			autoCrit = true
		}
	}
	for _, id := range sortedEffectIDs(attacker) {
		def, ok := e.catalog.StatusEffect(id)
		if !ok {
			continue
		}
		if def.AttackAdvantage {
			advantage = true
		}
		if def.AttackDisadvantage {
			disadvantage = true
		}
	}
	return advantage, disadvantage, autoCrit
}

// outcomeSuffix renders the death/unconsciousness tail of an action
// description.
func outcomeSuffix(target *Combatant, outcome *deathOutcome) string {
	if outcome == nil {
		return ""
	}
	switch {
	case outcome.Dead:
		return fmt.Sprintf(" %s dies!", target.Name)
	case outcome.Unconscious:
		return fmt.Sprintf(" %s falls unconscious!", target.Name)
	case outcome.Message != "":
		return " " + outcome.Message
	}
	return ""
}

// executeDefend raises the actor's AC until the start of their next turn.
func (e *Engine) executeDefend(s *Session, actor *Combatant) *Action {
	e.applyEffect(actor, EffectDefending, 1)
	return s.recordAction(&Action{
		ActorID:     actor.ID,
		Type:        ActionDefend,
		Description: fmt.Sprintf("%s takes a defensive stance (+2 AC).", actor.Name),
	})
}

// executeDodge makes attacks against the actor roll at disadvantage until
// the start of their next turn.
func (e *Engine) executeDodge(s *Session, actor *Combatant) *Action {
	e.applyEffect(actor, EffectDodging, 1)
	return s.recordAction(&Action{
		ActorID:     actor.ID,
		Type:        ActionDodge,
		Description: fmt.Sprintf("%s focuses on dodging (attackers have disadvantage).", actor.Name),
	})
}

// executeFlee attempts to escape combat. On success the combatant leaves the
// session; the character is not harmed.
func (e *Engine) executeFlee(s *Session, actor *Combatant) *Action {
	success := dice.Chance(e.src, fleeChance)
	desc := fmt.Sprintf("%s fails to flee!", actor.Name)
	if success {
		actor.IsAlive = false
		actor.CanAct = false
		desc = fmt.Sprintf("%s successfully flees from combat!", actor.Name)
	}
	return s.recordAction(&Action{
		ActorID:     actor.ID,
		Type:        ActionFlee,
		Hit:         success,
		Description: desc,
	})
}

// executeSpell resolves a spell cast: class and range gates, slot
// consumption for leveled spells, then damage, healing, or status
// application. Mages cast with INT, everyone else with WIS.
func (e *Engine) executeSpell(ctx context.Context, s *Session, caster, target *Combatant, spellName string) (*Action, error) {
	casterChar, err := e.characters.Get(ctx, caster.CharacterID)
	if err != nil {
		return nil, err
	}

	spell, ok := e.catalog.Spell(spellName)
	if !ok {
		return nil, NewCombatError("unknown spell: %s", spellName)
	}
	if !spell.AllowsClass(string(casterChar.Class)) {
		return nil, NewCombatError("%s cannot cast %s", casterChar.Class, spell.Name)
	}

	if target != nil && target.ID != caster.ID && spell.Range > 0 {
		targetChar, err := e.characters.Get(ctx, target.CharacterID)
		if err != nil {
			return nil, err
		}
		distance := distanceBetween(casterChar, targetChar)
		if distance > spell.Range {
			return nil, NewCombatError("target is %d feet away, but %s has a range of %d feet",
				distance, spell.Name, spell.Range)
		}
	}

	if spell.Level > 0 {
		if casterChar.SpellSlots[spell.Level] <= 0 {
			return nil, NewCombatError("no spell slots remaining for level %d", spell.Level)
		}
		casterChar.SpellSlots[spell.Level]--
	}

	spellMod := casterChar.Abilities.WisdomMod()
	if casterChar.Class == character.ClassMage {
		spellMod = casterChar.Abilities.IntelligenceMod()
	}

	damage, healing := 0, 0
	hit := true
	var desc string

	switch {
	case spell.IsDamage():
		if target == nil {
			return nil, NewCombatError("damage spell requires a target")
		}
		roll := 0
		if spell.AutoHit {
			damage = dice.RollDamage(spell.DamageDice, e.src)
		} else {
			roll = dice.D20(e.src)
			total := roll + spellMod + spellProficiencyBonus
			hit = total >= target.ArmorClass || roll == 20
			if hit {
				damage = dice.RollDamage(spell.DamageDice, e.src) + spellMod
			}
		}

		var outcome *deathOutcome
		if hit && damage > 0 {
			outcome, err = e.applyDamage(ctx, target, damage, false)
			if err != nil {
				return nil, err
			}
			caster.Threat += damage / 2
		}

		desc = fmt.Sprintf("%s casts %s at %s", caster.Name, spell.Name, target.Name)
		if hit {
			desc += fmt.Sprintf(" for %d %s damage!", damage, spell.DamageType)
			desc += outcomeSuffix(target, outcome)
		} else {
			desc += " but misses."
		}

	case spell.IsHealing():
		if target == nil {
			target = caster
		}
		healing = dice.RollDamage(spell.HealingDice, e.src) + spellMod
		wakeMsg, err := e.applyHealing(ctx, target, healing)
		if err != nil {
			return nil, err
		}
		if wakeMsg != "" {
			desc = fmt.Sprintf("%s casts %s on %s! %s", caster.Name, spell.Name, target.Name, wakeMsg)
		} else {
			desc = fmt.Sprintf("%s casts %s on %s, healing %d HP!", caster.Name, spell.Name, target.Name, healing)
		}

	case spell.ACBonus != 0:
		if target == nil {
			target = caster
		}
		duration := spell.Duration
		if duration == 0 {
			duration = defaultEffectDuration
		}
		e.applyEffect(target, "blessed", duration)
		desc = fmt.Sprintf("%s casts %s on %s, granting +%d AC!", caster.Name, spell.Name, target.Name, spell.ACBonus)

	case spell.Status != "":
		if target == nil {
			target = caster
		}
		duration := spell.Duration
		if duration == 0 {
			duration = defaultEffectDuration
		}
		e.applyEffect(target, spell.Status, duration)
		desc = fmt.Sprintf("%s casts %s on %s, inflicting %s!", caster.Name, spell.Name, target.Name, spell.Status)

	default:
		desc = fmt.Sprintf("%s casts %s!", caster.Name, spell.Name)
	}

	if err := e.characters.Save(ctx, casterChar); err != nil {
		return nil, err
	}

	action := &Action{
		ActorID:     caster.ID,
		Type:        ActionSpell,
		Damage:      damage,
		Healing:     healing,
		Hit:         hit,
		SpellName:   spell.Name,
		Description: desc,
	}
	if target != nil {
		action.TargetID = target.ID
	}
	return s.recordAction(action), nil
}

// executeItem resolves a consumable use: heal, damage, buff, or cure. The
// item is consumed afterwards, decrementing quantity or removing the stack.
func (e *Engine) executeItem(ctx context.Context, s *Session, user, target *Combatant, itemID int64) (*Action, error) {
	inv, err := e.inventory.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, NewCombatError("item %d not found in inventory", itemID)
	}
	if inv.CharacterID != user.CharacterID {
		return nil, NewCombatError("item does not belong to this character")
	}
	if inv.ItemType != "consumable" {
		return nil, NewCombatError("%s is not a consumable item", inv.ItemName)
	}

	consumable, ok := e.catalog.Consumable(inv.ItemName)
	if !ok {
		return nil, NewCombatError("unknown consumable: %s", inv.ItemName)
	}

	damage, healing := 0, 0
	var desc string

	switch consumable.EffectType {
	case "heal":
		if target == nil {
			target = user
		}
		healDice := consumable.HealingDice
		if healDice == "" {
			healDice = "1d4"
		}
		healing = dice.RollDamage(healDice, e.src)
		wakeMsg, err := e.applyHealing(ctx, target, healing)
		if err != nil {
			return nil, err
		}
		if wakeMsg != "" {
			desc = fmt.Sprintf("%s uses %s on %s! %s", user.Name, inv.ItemName, target.Name, wakeMsg)
		} else {
			desc = fmt.Sprintf("%s uses %s on %s, healing %d HP!", user.Name, inv.ItemName, target.Name, healing)
		}

	case "damage":
		if target == nil {
			return nil, NewCombatError("damage consumables require a target")
		}
		dmgDice := consumable.DamageDice
		if dmgDice == "" {
			dmgDice = "1d4"
		}
		dmgType := consumable.DamageType
		if dmgType == "" {
			dmgType = "fire"
		}
		damage = dice.RollDamage(dmgDice, e.src)
		outcome, err := e.applyDamage(ctx, target, damage, false)
		if err != nil {
			return nil, err
		}
		user.Threat += damage / 2
		desc = fmt.Sprintf("%s throws %s at %s for %d %s damage!",
			user.Name, inv.ItemName, target.Name, damage, dmgType)
		desc += outcomeSuffix(target, outcome)

	case "buff":
		if target == nil {
			target = user
		}
		duration := consumable.Duration
		if duration == 0 {
			duration = defaultEffectDuration
		}
		if consumable.GrantsStatus != "" {
			e.applyEffect(target, consumable.GrantsStatus, duration)
			desc = fmt.Sprintf("%s uses %s on %s, becoming %s!",
				user.Name, inv.ItemName, target.Name, consumable.GrantsStatus)
		} else {
			desc = fmt.Sprintf("%s uses %s!", user.Name, inv.ItemName)
		}

	case "cure":
		if target == nil {
			target = user
		}
		var removed []string
		for _, condition := range consumable.Cures {
			if target.HasEffect(condition) {
				e.removeEffect(target, condition)
				removed = append(removed, condition)
			}
		}
		if len(removed) > 0 {
			desc = fmt.Sprintf("%s uses %s on %s, curing %s!",
				user.Name, inv.ItemName, target.Name, strings.Join(removed, ", "))
		} else {
			desc = fmt.Sprintf("%s uses %s on %s, but there was nothing to cure.",
				user.Name, inv.ItemName, target.Name)
		}

	default:
		desc = fmt.Sprintf("%s uses %s.", user.Name, inv.ItemName)
	}

	if err := e.inventory.Consume(ctx, inv); err != nil {
		return nil, err
	}

	action := &Action{
		ActorID:     user.ID,
		Type:        ActionItem,
		Damage:      damage,
		Healing:     healing,
		Hit:         true,
		ItemName:    inv.ItemName,
		Description: desc,
	}
	if target != nil {
		action.TargetID = target.ID
	}
	return s.recordAction(action), nil
}

// executeAbility resolves a class ability. Abilities gate on class, level,
// and remaining uses; the seven effect types cover self-healing, bonus
// damage, party healing, extra actions, target marking, spell slot
// recovery, and area status application.
func (e *Engine) executeAbility(ctx context.Context, s *Session, user, target *Combatant, abilityID string) (*Action, error) {
	char, err := e.characters.Get(ctx, user.CharacterID)
	if err != nil {
		return nil, err
	}

	ability, ok := e.catalog.Ability(abilityID)
	if !ok {
		return nil, NewCombatError("unknown ability: %s", abilityID)
	}
	if ability.Class != string(char.Class) {
		return nil, NewCombatError("%s cannot use %s", char.Class, ability.Name)
	}
	if char.Level < ability.MinLevel {
		return nil, NewCombatError("%s requires level %d", ability.Name, ability.MinLevel)
	}

	if ability.MaxUses > 0 {
		remaining, tracked := char.AbilityUses[abilityID]
		if !tracked {
			remaining = ability.MaxUses
		}
		if remaining <= 0 {
			return nil, NewCombatError("no uses remaining for %s", ability.Name)
		}
		if char.AbilityUses == nil {
			char.AbilityUses = make(map[string]int)
		}
		char.AbilityUses[abilityID] = remaining - 1
	}

	damage, healing := 0, 0
	var desc string

	switch ability.EffectType {
	case "heal_self":
		healDice := ability.HealingDice
		if healDice == "" {
			healDice = "1d10"
		}
		healing = dice.RollDamage(healDice, e.src)
		if ability.AddsLevel {
			healing += char.Level
		}
		user.CurrentHP = min(user.MaxHP, user.CurrentHP+healing)
		char.CurrentHP = user.CurrentHP
		desc = fmt.Sprintf("%s uses %s, healing %d HP!", user.Name, ability.Name, healing)

	case "bonus_damage":
		if target == nil {
			return nil, NewCombatError("%s requires a target", ability.Name)
		}
		dmgDice := ability.DamageDice
		if dmgDice == "" {
			dmgDice = "1d6"
		}
		if ability.ScalesWithLevel {
			dmgDice = fmt.Sprintf("%dd6", (char.Level+1)/2)
		}
		damage = dice.RollDamage(dmgDice, e.src)
		outcome, err := e.applyDamage(ctx, target, damage, false)
		if err != nil {
			return nil, err
		}
		user.Threat += damage / 2
		desc = fmt.Sprintf("%s uses %s on %s for %d extra damage!",
			user.Name, ability.Name, target.Name, damage)
		desc += outcomeSuffix(target, outcome)

	case "heal_allies":
		multiplier := ability.HealingMultiplier
		if multiplier == 0 {
			multiplier = 5
		}
		totalHealing := multiplier * char.Level

		var needy []*Combatant
		for _, ally := range s.Combatants {
			if ally.TeamID == user.TeamID && ally.IsAlive && ally.CurrentHP < ally.MaxHP {
				needy = append(needy, ally)
			}
		}
		if len(needy) == 0 {
			desc = fmt.Sprintf("%s uses %s, but no allies need healing.", user.Name, ability.Name)
			break
		}

		healPerAlly := totalHealing / len(needy)
		var healed []string
		for _, ally := range needy {
			before := ally.CurrentHP
			wakeMsg, err := e.applyHealing(ctx, ally, healPerAlly)
			if err != nil {
				return nil, err
			}
			if wakeMsg != "" {
				healed = append(healed, fmt.Sprintf("%s (woke up with %d HP)", ally.Name, ally.CurrentHP))
			} else {
				healed = append(healed, fmt.Sprintf("%s (%d)", ally.Name, ally.CurrentHP-before))
			}
		}
		desc = fmt.Sprintf("%s uses %s, healing: %s!", user.Name, ability.Name, strings.Join(healed, ", "))

	case "extra_action":
		desc = fmt.Sprintf("%s uses %s and gains an additional action!", user.Name, ability.Name)

	case "mark_target":
		if target == nil {
			return nil, NewCombatError("%s requires a target", ability.Name)
		}
		status := ability.StatusApplied
		if status == "" {
			status = "marked"
		}
		duration := ability.Duration
		if duration == 0 {
			duration = defaultEffectDuration
		}
		e.applyEffect(target, status, duration)
		desc = fmt.Sprintf("%s marks %s with %s!", user.Name, target.Name, ability.Name)

	case "recover_slots":
		budget := (char.Level + 1) / 2
		var recovered []string
		for _, slotLevel := range []int{1, 2} {
			maxCount, ok := char.MaxSpellSlots[slotLevel]
			if !ok {
				continue
			}
			canRecover := maxCount - char.SpellSlots[slotLevel]
			toRecover := min(canRecover, budget)
			if toRecover > 0 {
				char.SpellSlots[slotLevel] += toRecover
				budget -= toRecover
				recovered = append(recovered, fmt.Sprintf("level %d: %d", slotLevel, toRecover))
			}
			if budget <= 0 {
				break
			}
		}
		if len(recovered) > 0 {
			desc = fmt.Sprintf("%s uses %s, recovering spell slots: %s!",
				user.Name, ability.Name, strings.Join(recovered, ", "))
		} else {
			desc = fmt.Sprintf("%s uses %s, but has no slots to recover.", user.Name, ability.Name)
		}

	case "area_effect":
		status := ability.StatusApplied
		if status == "" {
			status = "frightened"
		}
		duration := ability.Duration
		if duration == 0 {
			duration = defaultEffectDuration
		}
		var affected []string
		for _, enemy := range s.Combatants {
			if enemy.TeamID != user.TeamID && enemy.IsAlive {
				e.applyEffect(enemy, status, duration)
				affected = append(affected, enemy.Name)
			}
		}
		if len(affected) > 0 {
			desc = fmt.Sprintf("%s uses %s, affecting: %s!",
				user.Name, ability.Name, strings.Join(affected, ", "))
		} else {
			desc = fmt.Sprintf("%s uses %s, but no valid targets!", user.Name, ability.Name)
		}

	default:
		desc = fmt.Sprintf("%s uses %s!", user.Name, ability.Name)
	}

	if err := e.characters.Save(ctx, char); err != nil {
		return nil, err
	}

	action := &Action{
		ActorID:     user.ID,
		Type:        ActionAbility,
		AbilityID:   ability.ID,
		Damage:      damage,
		Healing:     healing,
		Hit:         true,
		Description: desc,
	}
	if target != nil {
		action.TargetID = target.ID
	}
	return s.recordAction(action), nil
}
