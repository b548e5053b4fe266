package combat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/character"
)

// minimumVictoryXP is the floor on experience per surviving winner.
const minimumVictoryXP = 10

// LootItem is one dropped item stack. InstanceID uniquely identifies the
// drop so downstream inventory grants can be made idempotent.
type LootItem struct {
	InstanceID string
	ItemName   string
	Quantity   int
}

// LootResult is the merged loot from all defeated enemies.
type LootResult struct {
	Gold  int
	Items []LootItem
}

// addItem merges a drop into the result, stacking by item name.
func (l *LootResult) addItem(name string, quantity int) {
	for i := range l.Items {
		if l.Items[i].ItemName == name {
			l.Items[i].Quantity += quantity
			return
		}
	}
	l.Items = append(l.Items, LootItem{
		InstanceID: uuid.NewString(),
		ItemName:   name,
		Quantity:   quantity,
	})
}

// rollLootTable rolls gold, guaranteed drops, and weighted random drops from
// a loot table.
func (e *Engine) rollLootTable(lt *catalog.LootTable) LootResult {
	var result LootResult

	if lt.GoldMax > 0 {
		result.Gold = lt.GoldMin + e.src.Intn(lt.GoldMax-lt.GoldMin+1)
	}

	for _, drop := range lt.GuaranteedDrops {
		result.addItem(drop.ItemName, drop.Quantity)
	}

	numDrops := lt.DropCountMin
	if lt.DropCountMax > lt.DropCountMin {
		numDrops += e.src.Intn(lt.DropCountMax - lt.DropCountMin + 1)
	}
	if len(lt.Items) == 0 || numDrops <= 0 {
		return result
	}

	totalWeight := 0
	for _, entry := range lt.Items {
		totalWeight += entry.Weight
	}
	for i := 0; i < numDrops; i++ {
		roll := e.src.Intn(totalWeight)
		cumulative := 0
		for _, entry := range lt.Items {
			cumulative += entry.Weight
			if roll < cumulative {
				result.addItem(entry.ItemName, entry.Quantity)
				break
			}
		}
	}
	return result
}

// LevelUp records a character that gained a level during reward resolution.
type LevelUp struct {
	CharacterID int64
	OldLevel    int
	NewLevel    int
}

// ResolveReport is the outcome of reward resolution.
type ResolveReport struct {
	WinnerTeamID     *int
	ExperienceEarned map[int64]int
	LevelUps         []LevelUp
	Loot             LootResult
}

// Resolve computes and applies post-combat rewards: experience split among
// surviving winners (floored at 10 each, funded by the defeated side's HP
// pool), loot rolled from each defeated monster's table, and loot gold paid
// to the first winner. The session moves to StatusResolving.
//
// Precondition: The session must be StatusFinished.
func (e *Engine) Resolve(ctx context.Context, sessionID int64) (*ResolveReport, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusFinished {
		return nil, NewCombatError("combat is not finished")
	}

	report := &ResolveReport{
		WinnerTeamID:     s.WinnerTeamID,
		ExperienceEarned: make(map[int64]int),
	}

	onWinningTeam := func(c *Combatant) bool {
		return s.WinnerTeamID != nil && c.TeamID == *s.WinnerTeamID
	}

	totalEnemyHP := 0
	for _, c := range s.Combatants {
		if !onWinningTeam(c) {
			totalEnemyHP += c.MaxHP
		}
	}

	for _, enemy := range s.Combatants {
		if onWinningTeam(enemy) {
			continue
		}
		char, err := e.characters.Get(ctx, enemy.CharacterID)
		if err != nil {
			return nil, err
		}
		if char.MonsterID == "" {
			continue
		}
		table, ok := e.catalog.LootTableForMonster(char.MonsterID)
		if !ok {
			continue
		}
		loot := e.rollLootTable(table)
		report.Loot.Gold += loot.Gold
		for _, item := range loot.Items {
			report.Loot.addItem(item.ItemName, item.Quantity)
		}
	}

	var winners []*Combatant
	for _, c := range s.Combatants {
		if onWinningTeam(c) && c.IsAlive {
			winners = append(winners, c)
		}
	}

	if len(winners) > 0 {
		expPerWinner := max(minimumVictoryXP, totalEnemyHP/len(winners))
		for _, winner := range winners {
			char, err := e.characters.Get(ctx, winner.CharacterID)
			if err != nil {
				return nil, err
			}
			res := character.AwardExperience(char, expPerWinner)
			if err := e.characters.Save(ctx, char); err != nil {
				return nil, err
			}
			report.ExperienceEarned[winner.CharacterID] = expPerWinner
			if res.LeveledUp {
				report.LevelUps = append(report.LevelUps, LevelUp{
					CharacterID: winner.CharacterID,
					OldLevel:    res.OldLevel,
					NewLevel:    res.NewLevel,
				})
			}
		}

		if report.Loot.Gold > 0 {
			char, err := e.characters.Get(ctx, winners[0].CharacterID)
			if err != nil {
				return nil, err
			}
			char.Gold += report.Loot.Gold
			if err := e.characters.Save(ctx, char); err != nil {
				return nil, err
			}
		}
	}

	s.Status = StatusResolving
	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving combat session: %w", err)
	}

	e.logger.Info("combat resolved",
		zap.Int64("session_id", s.ID),
		zap.Int("winners", len(winners)),
		zap.Int("loot_gold", report.Loot.Gold))
	return report, nil
}

// Summary is the final combat report.
type Summary struct {
	SessionID             int64
	WinnerTeamID          *int
	TotalRounds           int
	TotalActions          int
	StartedAt             time.Time
	EndedAt               *time.Time
	Participants          []*Combatant
	ExperienceByCharacter map[int64]int
	Loot                  LootResult
}

// Finish finalizes a combat session and returns its summary. If rewards have
// not been resolved yet, Resolve runs first; calling Finish again is safe
// and returns the summary without re-awarding anything.
//
// Precondition: The session must be StatusFinished or StatusResolving.
func (e *Engine) Finish(ctx context.Context, sessionID int64) (*Summary, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusFinished && s.Status != StatusResolving {
		return nil, NewCombatError("combat is not ready to be finished")
	}

	experience := make(map[int64]int)
	var loot LootResult
	if s.Status == StatusFinished {
		resolved, err := e.Resolve(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		experience = resolved.ExperienceEarned
		loot = resolved.Loot
		// Resolve persisted the session; reload its state.
		s, err = e.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	s.Status = StatusFinished
	if s.EndedAt == nil {
		now := time.Now().UTC()
		s.EndedAt = &now
	}
	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving combat session: %w", err)
	}

	return &Summary{
		SessionID:             s.ID,
		WinnerTeamID:          s.WinnerTeamID,
		TotalRounds:           s.RoundNumber,
		TotalActions:          len(s.Actions),
		StartedAt:             s.StartedAt,
		EndedAt:               s.EndedAt,
		Participants:          s.Combatants,
		ExperienceByCharacter: experience,
		Loot:                  loot,
	}, nil
}

// History returns the session's full action log in the order the actions
// were recorded.
func (e *Engine) History(ctx context.Context, sessionID int64) ([]*Action, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	actions := make([]*Action, len(s.Actions))
	copy(actions, s.Actions)
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}
