// Package gamification turns program progress into XP, levels and rankings.
package gamification

import (
	"fmt"
	"sort"
	"time"

	"logicforge/internal/config"
	"logicforge/internal/domain"
)

type Rules struct {
	StepXP          map[int]int
	CompletionBonus int
	Levels          []config.Level
}

func RulesFrom(cfg config.GamificationConfig) Rules {
	return Rules{StepXP: cfg.StepXP, CompletionBonus: cfg.CompletionBonus, Levels: cfg.Levels}
}

// ProgramXP credits every step the program has moved past. A completed
// program also earns the last step and the completion bonus.
func (r Rules) ProgramXP(p domain.Program) int {
	xp := 0
	for step := domain.FirstStep; step < p.CurrentStep; step++ {
		xp += r.StepXP[step]
	}
	if p.Status == domain.StatusCompleted {
		xp += r.StepXP[domain.LastStep] + r.CompletionBonus
	}
	return xp
}

// Level returns the level reached at xp and the XP still needed for the next one.
func (r Rules) Level(xp int) (level int, title string, toNext int) {
	level, title = 1, ""
	idx := -1
	for i, l := range r.Levels {
		if xp >= l.Threshold {
			idx = i
		}
	}
	if idx >= 0 {
		level, title = r.Levels[idx].Level, r.Levels[idx].Title
	}
	if idx+1 < len(r.Levels) {
		toNext = r.Levels[idx+1].Threshold - xp
		if toNext < 0 {
			toNext = 0
		}
	}
	return level, title, toNext
}

func (r Rules) Stats(userID string, programs []domain.Program, badges int) domain.UserStats {
	stats := domain.UserStats{UserID: userID, BadgesEarned: badges, ProgramsCreated: len(programs)}
	for _, p := range programs {
		stats.TotalXP += r.ProgramXP(p)
		if p.Status == domain.StatusCompleted {
			stats.ProgramsCompleted++
		}
	}
	stats.Level, stats.LevelTitle, stats.XPToNextLevel = r.Level(stats.TotalXP)
	return stats
}

// Leaderboard ranks users by total XP, ties broken by user id.
func (r Rules) Leaderboard(programsByUser map[string][]domain.Program, limit int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(programsByUser))
	for userID, programs := range programsByUser {
		s := r.Stats(userID, programs, 0)
		entries = append(entries, domain.LeaderboardEntry{
			UserID:     userID,
			TotalXP:    s.TotalXP,
			Level:      s.Level,
			LevelTitle: s.LevelTitle,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalXP != entries[j].TotalXP {
			return entries[i].TotalXP > entries[j].TotalXP
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

const week = 7 * 24 * time.Hour

// WeeklyProgress rolls programs up into cumulative program counts and XP at
// the end of each of the last weeks weeks, the final one ending at now. A
// program's current XP is credited to the week it was created in; programs
// created before the window seed the first point.
func (r Rules) WeeklyProgress(programs []domain.Program, now time.Time, weeks int) []domain.ProgressPoint {
	if weeks <= 0 {
		return []domain.ProgressPoint{}
	}
	now = now.UTC()
	start := now.Add(-time.Duration(weeks) * week)
	newPrograms := make([]int, weeks)
	newXP := make([]int, weeks)
	var basePrograms, baseXP int
	for _, p := range programs {
		created, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			continue
		}
		xp := r.ProgramXP(p)
		if created.Before(start) {
			basePrograms++
			baseXP += xp
			continue
		}
		idx := int(created.Sub(start) / week)
		if idx >= weeks {
			idx = weeks - 1
		}
		newPrograms[idx]++
		newXP[idx] += xp
	}

	points := make([]domain.ProgressPoint, weeks)
	cumPrograms, cumXP := basePrograms, baseXP
	for i := 0; i < weeks; i++ {
		cumPrograms += newPrograms[i]
		cumXP += newXP[i]
		points[i] = domain.ProgressPoint{
			Label:     weekLabel(i, weeks),
			WeekStart: start.Add(time.Duration(i) * week).Format("2006-01-02"),
			Programs:  cumPrograms,
			XP:        cumXP,
		}
	}
	return points
}

func weekLabel(i, weeks int) string {
	switch i {
	case weeks - 1:
		return "This Week"
	case weeks - 2:
		return "Last Week"
	}
	return fmt.Sprintf("Week %d", i+1)
}
