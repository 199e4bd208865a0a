package services

import (
	"fmt"
	"time"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

const (
	ExperiencePerLevel  = 1000
	LevelUpMinInterval  = 2000 * time.Millisecond
	LevelUpCleanupDelay = 1000 * time.Millisecond
)

type LevelState int

const (
	LevelIdle LevelState = iota
	LevelLeveling
)

func (s LevelState) String() string {
	if s == LevelLeveling {
		return "leveling"
	}
	return "idle"
}

// LevelUpPlan is the outcome of converting banked XP into levels.
type LevelUpPlan struct {
	LevelsGained int
	Level        int
	Experience   int
	Skills       domain.Skills
}

// Update is the single player write that applies the plan.
func (p LevelUpPlan) Update() domain.PlayerUpdate {
	skills := p.Skills
	return domain.PlayerUpdate{
		Level:      domain.Ptr(p.Level),
		Experience: domain.Ptr(p.Experience),
		Skills:     &skills,
	}
}

func (p LevelUpPlan) Message() string {
	if p.LevelsGained == 1 {
		return fmt.Sprintf("LEVEL UP! You reached level %d and gained 1 skill point.", p.Level)
	}
	return fmt.Sprintf("LEVEL UP! You gained %d levels, reached level %d and gained %d skill points.",
		p.LevelsGained, p.Level, p.LevelsGained)
}

// ProgressionController guards level-ups against duplicate triggers.
// It is not safe for concurrent use; the owning session serializes access.
type ProgressionController struct {
	state           LevelState
	observed        bool
	lastObservedExp int
	prevObserved    int
	prevWasObserved bool
	lastLevelUpAt   time.Time
}

func NewProgressionController() *ProgressionController {
	return &ProgressionController{}
}

func (c *ProgressionController) State() LevelState {
	return c.state
}

// Evaluate decides whether player's experience should be converted now.
// Triggers that arrive while blocked are dropped, not queued.
func (c *ProgressionController) Evaluate(now time.Time, player domain.Player, visible bool) (LevelUpPlan, bool) {
	exp := player.Experience
	if c.observed && exp == c.lastObservedExp {
		return LevelUpPlan{}, false
	}
	if c.state == LevelLeveling {
		return LevelUpPlan{}, false
	}
	if !c.lastLevelUpAt.IsZero() && now.Sub(c.lastLevelUpAt) < LevelUpMinInterval {
		return LevelUpPlan{}, false
	}
	if !visible {
		return LevelUpPlan{}, false
	}

	if exp < ExperiencePerLevel {
		c.observed = true
		c.lastObservedExp = exp
		return LevelUpPlan{}, false
	}

	gained := exp / ExperiencePerLevel
	plan := LevelUpPlan{
		LevelsGained: gained,
		Level:        player.Level + gained,
		Experience:   exp % ExperiencePerLevel,
		Skills:       player.Skills,
	}
	plan.Skills.SkillPoints += gained

	c.prevObserved, c.prevWasObserved = c.lastObservedExp, c.observed
	c.lastObservedExp, c.observed = exp, true
	c.state = LevelLeveling
	return plan, true
}

// Complete records the outcome of the level-up write. On failure the
// last observed experience is rolled back so the next change re-triggers.
func (c *ProgressionController) Complete(now time.Time, err error) {
	c.lastLevelUpAt = now
	if err != nil {
		c.lastObservedExp, c.observed = c.prevObserved, c.prevWasObserved
	}
}

// Release clears the leveling flag. Sessions schedule it LevelUpCleanupDelay
// after Complete, whatever the write outcome.
func (c *ProgressionController) Release() {
	c.state = LevelIdle
}
