package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

func playerWith(level, exp, sp int) domain.Player {
	p := domain.NewPlayer("u1", "neo")
	p.Level = level
	p.Experience = exp
	p.Skills.SkillPoints = sp
	return p
}

func TestEvaluateRollsOverExperience(t *testing.T) {
	c := NewProgressionController()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, ok := c.Evaluate(now, playerWith(3, 2500, 0), true)
	require.True(t, ok)
	assert.Equal(t, 2, plan.LevelsGained)
	assert.Equal(t, 5, plan.Level)
	assert.Equal(t, 500, plan.Experience)
	assert.Equal(t, 2, plan.Skills.SkillPoints)
	assert.Equal(t, LevelLeveling, c.State())
	assert.Contains(t, plan.Message(), "2 levels")

	upd := plan.Update()
	next := upd.ApplyTo(playerWith(3, 2500, 0))
	assert.Equal(t, 5, next.Level)
	assert.Equal(t, 500, next.Experience)
	assert.Equal(t, 2, next.Skills.SkillPoints)
}

func TestEvaluateSingularMessage(t *testing.T) {
	c := NewProgressionController()
	plan, ok := c.Evaluate(time.Now(), playerWith(1, 1000, 0), true)
	require.True(t, ok)
	assert.Equal(t, 0, plan.Experience)
	assert.Contains(t, plan.Message(), "1 skill point.")
}

func TestEvaluateBelowThresholdOnlyTracks(t *testing.T) {
	c := NewProgressionController()
	now := time.Now()
	_, ok := c.Evaluate(now, playerWith(1, 400, 0), true)
	assert.False(t, ok)
	assert.Equal(t, LevelIdle, c.State())
	assert.Equal(t, 400, c.lastObservedExp)
}

func TestEvaluateGuards(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("not visible", func(t *testing.T) {
		c := NewProgressionController()
		_, ok := c.Evaluate(now, playerWith(1, 1500, 0), false)
		assert.False(t, ok)
		_, ok = c.Evaluate(now, playerWith(1, 1500, 0), true)
		assert.True(t, ok, "returning to the foreground re-evaluates")
	})

	t.Run("while leveling", func(t *testing.T) {
		c := NewProgressionController()
		_, ok := c.Evaluate(now, playerWith(1, 1500, 0), true)
		require.True(t, ok)
		_, ok = c.Evaluate(now, playerWith(2, 1700, 1), true)
		assert.False(t, ok)
	})

	t.Run("two evaluations within the interval never double-apply", func(t *testing.T) {
		c := NewProgressionController()
		p := playerWith(1, 1500, 0)
		_, ok := c.Evaluate(now, p, true)
		require.True(t, ok)
		c.Complete(now, nil)
		c.Release()

		_, ok = c.Evaluate(now.Add(500*time.Millisecond), p, true)
		assert.False(t, ok, "unchanged experience")
		_, ok = c.Evaluate(now.Add(1500*time.Millisecond), playerWith(2, 1600, 1), true)
		assert.False(t, ok, "inside min interval")
		_, ok = c.Evaluate(now.Add(2500*time.Millisecond), playerWith(2, 1600, 1), true)
		assert.True(t, ok)
	})

	t.Run("failure rolls back the tracker", func(t *testing.T) {
		c := NewProgressionController()
		p := playerWith(1, 1200, 0)
		_, ok := c.Evaluate(now, p, true)
		require.True(t, ok)
		c.Complete(now, errors.New("write failed"))
		c.Release()

		_, ok = c.Evaluate(now.Add(3*time.Second), p, true)
		assert.True(t, ok, "same experience re-triggers after rollback")
	})
}
