package combat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridfall/internal/game/character"
	"github.com/cory-johannsen/gridfall/internal/game/combat"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
)

func TestStart_IndividualInitiative(t *testing.T) {
	player := testCharacter(1, "Brakka", character.ClassWarrior, character.TypePlayer)
	player.Abilities.Dexterity = 20
	npc := testCharacter(2, "Goblin", character.ClassWarrior, character.TypeNPC)
	npc.Abilities.Dexterity = 1

	w := newTestWorld(t, []*character.Character{player, npc}, nil)
	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 2, TeamID: 2},
		},
		InitiativeType: combat.InitiativeIndividual,
	})
	require.NoError(t, err)

	assert.Equal(t, combat.StatusInProgress, s.Status)
	assert.Equal(t, 1, s.RoundNumber)
	assert.NotZero(t, s.ID, "session must be persisted")

	pc := s.CombatantForCharacter(1)
	nc := s.CombatantForCharacter(2)
	require.NotNil(t, pc)
	require.NotNil(t, nc)

	// Fixed d20 of 10: player 10+5, NPC 10-5.
	assert.Equal(t, 15, pc.Initiative)
	assert.Equal(t, 5, nc.Initiative)
	assert.Equal(t, 0, pc.TurnOrder, "higher initiative acts first")
	assert.Equal(t, 1, nc.TurnOrder)

	assert.True(t, pc.IsPlayer)
	assert.False(t, nc.IsPlayer)
	assert.Equal(t, player.MaxHP, pc.MaxHP, "HP snapshotted from character")
	assert.Equal(t, player.ArmorClass, pc.ArmorClass)
	assert.Zero(t, pc.Threat)
}

func TestStart_RogueInitiativeBonus(t *testing.T) {
	rogue := testCharacter(1, "Sly", character.ClassRogue, character.TypePlayer)
	rogue.Abilities.Dexterity = 10
	other := testCharacter(2, "Brute", character.ClassWarrior, character.TypeNPC)
	other.Abilities.Dexterity = 10

	w := newTestWorld(t, []*character.Character{rogue, other}, nil)
	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 2, TeamID: 2},
		},
		InitiativeType: combat.InitiativeIndividual,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, s.CombatantForCharacter(1).Initiative, "rogues get +2 initiative")
	assert.Equal(t, 10, s.CombatantForCharacter(2).Initiative)
}

func TestStart_GroupInitiative_TeamsShareRoll(t *testing.T) {
	chars := []*character.Character{
		testCharacter(1, "A1", character.ClassWarrior, character.TypePlayer),
		testCharacter(2, "A2", character.ClassMage, character.TypePlayer),
		testCharacter(3, "B1", character.ClassRogue, character.TypeNPC),
		testCharacter(4, "B2", character.ClassRanger, character.TypeNPC),
	}
	w := newTestWorld(t, chars, nil, withSource(dice.NewCryptoSource()))
	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 2, TeamID: 1},
			{CharacterID: 3, TeamID: 2},
			{CharacterID: 4, TeamID: 2},
		},
		InitiativeType: combat.InitiativeGroup,
	})
	require.NoError(t, err)

	assert.Equal(t, s.CombatantForCharacter(1).Initiative, s.CombatantForCharacter(2).Initiative,
		"teammates share one group roll")
	assert.Equal(t, s.CombatantForCharacter(3).Initiative, s.CombatantForCharacter(4).Initiative)
}

func TestStart_SideInitiative_TeamsDoNotInterleave(t *testing.T) {
	chars := []*character.Character{
		testCharacter(1, "A1", character.ClassWarrior, character.TypePlayer),
		testCharacter(2, "A2", character.ClassMage, character.TypePlayer),
		testCharacter(3, "B1", character.ClassRogue, character.TypeNPC),
		testCharacter(4, "B2", character.ClassRanger, character.TypeNPC),
	}
	w := newTestWorld(t, chars, nil, withSource(dice.NewCryptoSource()))
	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 2, TeamID: 1},
			{CharacterID: 3, TeamID: 2},
			{CharacterID: 4, TeamID: 2},
		},
		InitiativeType: combat.InitiativeSide,
	})
	require.NoError(t, err)

	// Whole teams occupy separate initiative bands, so the turn order must
	// be one full team followed by the other.
	ordered := s.ActiveCombatants()
	require.Len(t, ordered, 4)
	firstTeam := ordered[0].TeamID
	assert.Equal(t, firstTeam, ordered[1].TeamID)
	assert.NotEqual(t, firstTeam, ordered[2].TeamID)
	assert.Equal(t, ordered[2].TeamID, ordered[3].TeamID)
}

func TestStart_HighDexWinsInitiativeAlmostAlways(t *testing.T) {
	wins := 0
	const trials = 100
	for i := 0; i < trials; i++ {
		player := testCharacter(1, "Fast", character.ClassWarrior, character.TypePlayer)
		player.Abilities.Dexterity = 20
		npc := testCharacter(2, "Slow", character.ClassWarrior, character.TypeNPC)
		npc.Abilities.Dexterity = 1

		w := newTestWorld(t, []*character.Character{player, npc}, nil, withSource(dice.NewCryptoSource()))
		s, err := w.engine.Start(context.Background(), combat.StartRequest{
			Participants: []combat.Participant{
				{CharacterID: 1, TeamID: 1},
				{CharacterID: 2, TeamID: 2},
			},
			InitiativeType: combat.InitiativeIndividual,
		})
		require.NoError(t, err)
		if s.CombatantForCharacter(1).TurnOrder == 0 {
			wins++
		}
	}
	assert.GreaterOrEqual(t, wins, 90, "a +10 DEX modifier gap must dominate initiative")
}

func TestStart_Validations(t *testing.T) {
	w := newTestWorld(t, []*character.Character{
		testCharacter(1, "Solo", character.ClassWarrior, character.TypePlayer),
	}, nil)

	_, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants:   []combat.Participant{{CharacterID: 1, TeamID: 1}},
		InitiativeType: combat.InitiativeIndividual,
	})
	var verr *combat.ValidationError
	require.ErrorAs(t, err, &verr, "a single participant cannot fight")

	_, err = w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 1, TeamID: 2},
		},
		InitiativeType: combat.InitiativeType("chaotic"),
	})
	require.ErrorAs(t, err, &verr)

	_, err = w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 99, TeamID: 2},
		},
		InitiativeType: combat.InitiativeIndividual,
	})
	var nferr *combat.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

// startNPCBattle starts a 1v1 fight between two NPC warriors.
func startNPCBattle(t *testing.T, w *testWorld) *combat.Session {
	t.Helper()
	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 2, TeamID: 2},
		},
		InitiativeType: combat.InitiativeIndividual,
	})
	require.NoError(t, err)
	return s
}

func TestProcessTurns_NPCBattleEnds(t *testing.T) {
	a := testCharacter(1, "Ogre", character.ClassWarrior, character.TypeNPC)
	b := testCharacter(2, "Troll", character.ClassWarrior, character.TypeNPC)
	w := newTestWorld(t, []*character.Character{a, b}, nil)
	s := startNPCBattle(t, w)

	report, err := w.engine.ProcessTurns(context.Background(), s.ID)
	require.NoError(t, err)

	assert.True(t, report.CombatEnded)
	assert.Equal(t, combat.StatusFinished, report.Session.Status)
	assert.NotNil(t, report.Session.WinnerTeamID, "a 1v1 NPC fight must produce a winner")
	assert.NotEmpty(t, report.Actions)
	assert.NotNil(t, report.Session.EndedAt)
}

func TestProcessTurns_MaxRoundsEndsInDraw(t *testing.T) {
	// The combatants stand in different zones, so every attack is out of
	// range and neither side can ever win.
	a := testCharacter(1, "North", character.ClassWarrior, character.TypeNPC)
	a.ZoneID = 1
	b := testCharacter(2, "South", character.ClassWarrior, character.TypeNPC)
	b.ZoneID = 2
	w := newTestWorld(t, []*character.Character{a, b}, nil, withMaxRounds(3))
	s := startNPCBattle(t, w)

	report, err := w.engine.ProcessTurns(context.Background(), s.ID)
	require.NoError(t, err)

	assert.True(t, report.CombatEnded)
	assert.Equal(t, combat.StatusFinished, report.Session.Status)
	assert.Nil(t, report.Session.WinnerTeamID, "an aborted stalemate has no winner")
	assert.Greater(t, report.Session.RoundNumber, 3)
}

func TestProcessTurns_PausesForPlayer(t *testing.T) {
	player := testCharacter(1, "Hero", character.ClassWarrior, character.TypePlayer)
	player.Abilities.Dexterity = 20
	npc := testCharacter(2, "Goblin", character.ClassWarrior, character.TypeNPC)
	npc.Abilities.Dexterity = 1
	w := newTestWorld(t, []*character.Character{player, npc}, nil)
	s := startNPCBattle(t, w)

	report, err := w.engine.ProcessTurns(context.Background(), s.ID)
	require.NoError(t, err)

	assert.False(t, report.CombatEnded)
	require.NotNil(t, report.AwaitingPlayer)
	assert.Equal(t, int64(1), report.AwaitingPlayer.CharacterID)
	assert.Equal(t, combat.StatusAwaitingPlayer, report.Session.Status)
	assert.Empty(t, report.Actions, "the player acts first, no NPC turns yet")
}

func TestProcessTurns_FinishedSessionRejected(t *testing.T) {
	a := testCharacter(1, "Ogre", character.ClassWarrior, character.TypeNPC)
	b := testCharacter(2, "Troll", character.ClassWarrior, character.TypeNPC)
	w := newTestWorld(t, []*character.Character{a, b}, nil)
	s := startNPCBattle(t, w)

	_, err := w.engine.ProcessTurns(context.Background(), s.ID)
	require.NoError(t, err)

	_, err = w.engine.ProcessTurns(context.Background(), s.ID)
	var cerr *combat.CombatError
	require.ErrorAs(t, err, &cerr)
}

// pauseForPlayer drives a player-vs-NPC session to the player's turn.
func pauseForPlayer(t *testing.T, w *testWorld, sessionID int64) {
	t.Helper()
	report, err := w.engine.ProcessTurns(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, report.AwaitingPlayer)
}

func TestPlayerAction_AttackResolves(t *testing.T) {
	player := testCharacter(1, "Hero", character.ClassWarrior, character.TypePlayer)
	player.Abilities.Dexterity = 20
	npc := testCharacter(2, "Goblin", character.ClassWarrior, character.TypeNPC)
	npc.Abilities.Dexterity = 1
	w := newTestWorld(t, []*character.Character{player, npc}, nil)
	s := startNPCBattle(t, w)
	pauseForPlayer(t, w, s.ID)

	target := s.CombatantForCharacter(2)
	report, err := w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1,
		Type:        combat.ActionAttack,
		TargetID:    target.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, report.Action)
	assert.Equal(t, combat.ActionAttack, report.Action.Type)
	assert.True(t, report.Action.Hit, "fixed roll of 10 plus the +1 STR modifier beats AC 10")
	assert.Less(t, target.CurrentHP, target.MaxHP)
	assert.Equal(t, target.CurrentHP, npc.CurrentHP, "damage syncs back to the character record")
}

func TestPlayerAction_Gates(t *testing.T) {
	player := testCharacter(1, "Hero", character.ClassWarrior, character.TypePlayer)
	player.Abilities.Dexterity = 20
	ally := testCharacter(3, "Friend", character.ClassCleric, character.TypePlayer)
	ally.Abilities.Dexterity = 14
	npc := testCharacter(2, "Goblin", character.ClassWarrior, character.TypeNPC)
	npc.Abilities.Dexterity = 1
	w := newTestWorld(t, []*character.Character{player, ally, npc}, nil)

	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 3, TeamID: 1},
			{CharacterID: 2, TeamID: 2},
		},
		InitiativeType: combat.InitiativeIndividual,
	})
	require.NoError(t, err)

	var cerr *combat.CombatError

	// Session is in progress, not awaiting input.
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1, Type: combat.ActionPass,
	})
	require.ErrorAs(t, err, &cerr)

	pauseForPlayer(t, w, s.ID)

	// The NPC is not a player combatant.
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 2, Type: combat.ActionPass,
	})
	require.ErrorAs(t, err, &cerr)

	// It is the faster player's turn, not the ally's.
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 3, Type: combat.ActionPass,
	})
	require.ErrorAs(t, err, &cerr)

	// Attacking a teammate is rejected.
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1, Type: combat.ActionAttack, TargetID: s.CombatantForCharacter(3).ID,
	})
	require.ErrorAs(t, err, &cerr)

	// Attack without a target.
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1, Type: combat.ActionAttack,
	})
	require.ErrorAs(t, err, &cerr)

	// Unknown target combatant.
	var nferr *combat.NotFoundError
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1, Type: combat.ActionAttack, TargetID: 9999,
	})
	require.ErrorAs(t, err, &nferr)

	// Unknown action type.
	_, err = w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1, Type: combat.ActionType("juggle"),
	})
	require.ErrorAs(t, err, &cerr)
}

func TestPlayerAction_PassAdvancesTurn(t *testing.T) {
	player := testCharacter(1, "Hero", character.ClassWarrior, character.TypePlayer)
	player.Abilities.Dexterity = 20
	npc := testCharacter(2, "Goblin", character.ClassWarrior, character.TypeNPC)
	npc.Abilities.Dexterity = 1
	w := newTestWorld(t, []*character.Character{player, npc}, nil)
	s := startNPCBattle(t, w)
	pauseForPlayer(t, w, s.ID)

	report, err := w.engine.PlayerAction(context.Background(), s.ID, combat.PlayerActionRequest{
		CharacterID: 1,
		Type:        combat.ActionPass,
	})
	require.NoError(t, err)
	assert.Equal(t, combat.ActionPass, report.Action.Type)
	assert.False(t, report.CombatEnded)
	assert.Equal(t, combat.StatusInProgress, report.Session.Status)
	assert.Equal(t, 1, report.Session.CurrentTurn, "turn advanced to the NPC")
}

func TestRerollInitiative_ReassignsTurnOrderEachRound(t *testing.T) {
	a := testCharacter(1, "Ogre", character.ClassWarrior, character.TypeNPC)
	a.ZoneID = 1
	b := testCharacter(2, "Troll", character.ClassWarrior, character.TypeNPC)
	b.ZoneID = 2
	w := newTestWorld(t, []*character.Character{a, b}, nil,
		withMaxRounds(5), withSource(dice.NewCryptoSource()))

	s, err := w.engine.Start(context.Background(), combat.StartRequest{
		Participants: []combat.Participant{
			{CharacterID: 1, TeamID: 1},
			{CharacterID: 2, TeamID: 2},
		},
		InitiativeType: combat.InitiativeReroll,
	})
	require.NoError(t, err)

	report, err := w.engine.ProcessTurns(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, report.CombatEnded, "stalemate trips the round limit")

	// Turn orders stay a valid permutation after every reroll.
	orders := map[int]bool{}
	for _, c := range report.Session.Combatants {
		orders[c.TurnOrder] = true
	}
	assert.Len(t, orders, 2)
}
