package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorst(t *testing.T) {
	assert.Equal(t, LevelHealthy, Worst(LevelHealthy, LevelHealthy))
	assert.Equal(t, LevelWarning, Worst(LevelHealthy, LevelWarning))
	assert.Equal(t, LevelWarning, Worst(LevelWarning, LevelHealthy))
	assert.Equal(t, LevelCritical, Worst(LevelWarning, LevelCritical))
	assert.Equal(t, LevelCritical, Worst(LevelCritical, LevelHealthy))
	assert.Equal(t, LevelCritical, Worst(LevelHealthy, Level("bogus")), "unknown levels rank critical")
}

func TestWithCheckRollsUp(t *testing.T) {
	s := New(time.Now())
	assert.True(t, s.IsHealthy())

	s = s.WithCheck(Check{Name: "substrate", Level: LevelHealthy})
	assert.True(t, s.IsHealthy())

	s = s.WithCheck(Check{Name: "migrations", Level: LevelWarning, Message: "pending"})
	assert.Equal(t, LevelWarning, s.Level)
	assert.False(t, s.IsHealthy())
	assert.False(t, s.IsCritical())

	s = s.WithCheck(Check{Name: "connection", Level: LevelCritical, Message: "down"})
	assert.True(t, s.IsCritical())
	assert.Len(t, s.Checks, 3)
}

func TestWithCheckDoesNotShareBacking(t *testing.T) {
	base := New(time.Now()).WithCheck(Check{Name: "a", Level: LevelHealthy})
	one := base.WithCheck(Check{Name: "b", Level: LevelWarning})
	two := base.WithCheck(Check{Name: "c", Level: LevelCritical})

	assert.Equal(t, "b", one.Checks[1].Name)
	assert.Equal(t, "c", two.Checks[1].Name)
}
