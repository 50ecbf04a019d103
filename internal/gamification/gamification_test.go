package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logicforge/internal/config"
	"logicforge/internal/domain"
)

func defaultRules() Rules {
	return RulesFrom(config.Default().Gamification)
}

func TestProgramXP(t *testing.T) {
	r := defaultRules()
	assert.Equal(t, 0, r.ProgramXP(domain.Program{CurrentStep: 1, Status: domain.StatusDraft}))
	assert.Equal(t, 100, r.ProgramXP(domain.Program{CurrentStep: 2, Status: domain.StatusInProgress}))
	assert.Equal(t, 600, r.ProgramXP(domain.Program{CurrentStep: 5, Status: domain.StatusInProgress}))
	assert.Equal(t, 950, r.ProgramXP(domain.Program{CurrentStep: 5, Status: domain.StatusCompleted}))
}

func TestLevel(t *testing.T) {
	r := defaultRules()
	cases := []struct {
		xp     int
		level  int
		title  string
		toNext int
	}{
		{0, 1, "Rookie", 200},
		{199, 1, "Rookie", 1},
		{200, 2, "Explorer", 300},
		{700, 3, "Strategist", 300},
		{10000, 8, "Grandmaster", 0},
		{25000, 8, "Grandmaster", 0},
	}
	for _, tc := range cases {
		level, title, toNext := r.Level(tc.xp)
		assert.Equal(t, tc.level, level, "xp=%d", tc.xp)
		assert.Equal(t, tc.title, title, "xp=%d", tc.xp)
		assert.Equal(t, tc.toNext, toNext, "xp=%d", tc.xp)
	}
}

func TestStats(t *testing.T) {
	r := defaultRules()
	stats := r.Stats("u1", []domain.Program{
		{CurrentStep: 5, Status: domain.StatusCompleted},
		{CurrentStep: 3, Status: domain.StatusInProgress},
	}, 6)
	assert.Equal(t, 1200, stats.TotalXP)
	assert.Equal(t, 4, stats.Level)
	assert.Equal(t, 800, stats.XPToNextLevel)
	assert.Equal(t, 2, stats.ProgramsCreated)
	assert.Equal(t, 1, stats.ProgramsCompleted)
	assert.Equal(t, 6, stats.BadgesEarned)
}

func TestLeaderboardOrdersAndRanks(t *testing.T) {
	r := defaultRules()
	board := r.Leaderboard(map[string][]domain.Program{
		"carol": {{CurrentStep: 2, Status: domain.StatusInProgress}},
		"alice": {{CurrentStep: 5, Status: domain.StatusCompleted}},
		"bob":   {{CurrentStep: 2, Status: domain.StatusInProgress}},
	}, 2)
	if assert.Len(t, board, 2) {
		assert.Equal(t, "alice", board[0].UserID)
		assert.Equal(t, 1, board[0].Rank)
		assert.Equal(t, "bob", board[1].UserID)
		assert.Equal(t, 2, board[1].Rank)
	}
}

func TestWeeklyProgress(t *testing.T) {
	r := defaultRules()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	programs := []domain.Program{
		// before the window
		{CreatedAt: "2023-12-01T00:00:00Z", CurrentStep: 5, Status: domain.StatusCompleted},
		// first week of the window
		{CreatedAt: "2024-01-06T00:00:00Z", CurrentStep: 2, Status: domain.StatusInProgress},
		// current week
		{CreatedAt: "2024-02-28T09:00:00Z", CurrentStep: 3, Status: domain.StatusInProgress},
		{CreatedAt: "2024-03-01T12:00:00Z", CurrentStep: 1, Status: domain.StatusDraft},
		{CreatedAt: "not a time", CurrentStep: 4},
	}

	points := r.WeeklyProgress(programs, now, 8)
	require.Len(t, points, 8)
	assert.Equal(t, domain.ProgressPoint{Label: "Week 1", WeekStart: "2024-01-05", Programs: 2, XP: 1050}, points[0])
	assert.Equal(t, "Week 6", points[5].Label)
	assert.Equal(t, 2, points[5].Programs)
	assert.Equal(t, "Last Week", points[6].Label)
	assert.Equal(t, domain.ProgressPoint{Label: "This Week", WeekStart: "2024-02-23", Programs: 4, XP: 1300}, points[7])

	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].Programs, points[i-1].Programs)
		assert.GreaterOrEqual(t, points[i].XP, points[i-1].XP)
	}
	assert.Empty(t, r.WeeklyProgress(programs, now, 0))
}
