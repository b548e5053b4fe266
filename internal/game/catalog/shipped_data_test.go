package catalog_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridfall/internal/game/catalog"
)

// shippedDataDir resolves the repo's data/ directory relative to this source
// file, so the test works from any package directory.
func shippedDataDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "resolving catalog test source path")
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "data")
}

// The shipped content must load through the strict decoder; a stray field or
// bad entry in data/ would otherwise only surface at server startup.
func TestLoadDirectory_ShippedContent(t *testing.T) {
	c, err := catalog.LoadDirectory(shippedDataDir(t))
	require.NoError(t, err)

	assert.NotEmpty(t, c.Spells())
	assert.NotEmpty(t, c.Abilities())
}

func TestShippedContent_TurnUndeadAppliesFrightened(t *testing.T) {
	c, err := catalog.LoadDirectory(shippedDataDir(t))
	require.NoError(t, err)

	a, ok := c.Ability("turn_undead")
	require.True(t, ok)
	assert.Equal(t, "area_effect", a.EffectType)
	assert.Equal(t, "frightened", a.StatusApplied)

	_, ok = c.StatusEffect("frightened")
	assert.True(t, ok, "the applied status must be defined")
}

func TestShippedContent_IncapacitationEffects(t *testing.T) {
	c, err := catalog.LoadDirectory(shippedDataDir(t))
	require.NoError(t, err)

	paralyzed, ok := c.StatusEffect("paralyzed")
	require.True(t, ok)
	assert.True(t, paralyzed.SkipsTurn)
	assert.True(t, paralyzed.AutoCrit, "hits against a paralyzed bearer are critical")

	stunned, ok := c.StatusEffect("stunned")
	require.True(t, ok)
	assert.True(t, stunned.SkipsTurn)
	assert.False(t, stunned.AutoCrit, "only paralysis grants auto-crit")

	blinded, ok := c.StatusEffect("blinded")
	require.True(t, ok)
	assert.True(t, blinded.AdvantageAgainst)
	assert.True(t, blinded.AttackDisadvantage)

	invisible, ok := c.StatusEffect("invisible")
	require.True(t, ok)
	assert.True(t, invisible.DisadvantageAgainst)
	assert.True(t, invisible.AttackAdvantage)

	frightened, ok := c.StatusEffect("frightened")
	require.True(t, ok)
	assert.True(t, frightened.AttackDisadvantage)
}

func TestShippedContent_ReferencesResolve(t *testing.T) {
	c, err := catalog.LoadDirectory(shippedDataDir(t))
	require.NoError(t, err)

	// Every status a spell, consumable, or ability applies must be defined.
	for _, s := range c.Spells() {
		if s.Status != "" {
			_, ok := c.StatusEffect(s.Status)
			assert.True(t, ok, "spell %q applies undefined status %q", s.Name, s.Status)
		}
	}
	for _, a := range c.Abilities() {
		if a.StatusApplied != "" {
			_, ok := c.StatusEffect(a.StatusApplied)
			assert.True(t, ok, "ability %q applies undefined status %q", a.ID, a.StatusApplied)
		}
	}

	assert.Contains(t, c.HealingConsumables(), "Healing Potion")

	burning, ok := c.StatusEffect("burning")
	require.True(t, ok)
	assert.Equal(t, "on_burning_tick", burning.OnTickHook)
}
