package engine

import (
	"context"
	"fmt"

	"logicforge/internal/domain"
	"logicforge/internal/gamification"
	"logicforge/internal/repo"
)

func (e Engine) rules() gamification.Rules {
	return gamification.RulesFrom(e.Config.Gamification)
}

// UserStats derives XP, level and badge totals from the user's programs.
func (e Engine) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	programs, err := e.Repo.ListPrograms(ctx, repo.ProgramFilters{UserID: userID})
	if err != nil {
		return domain.UserStats{}, err
	}
	badges, err := e.Repo.CountUserBadges(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	return e.rules().Stats(userID, programs, badges), nil
}

func (e Engine) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	return e.Repo.ListBadges(ctx, userID)
}

// Leaderboard ranks every known user, including those without programs.
func (e Engine) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	users, err := e.Repo.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	programs, err := e.Repo.ListPrograms(ctx, repo.ProgramFilters{})
	if err != nil {
		return nil, err
	}
	byUser := make(map[string][]domain.Program, len(users))
	for _, id := range users {
		byUser[id] = nil
	}
	for _, p := range programs {
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}
	return e.rules().Leaderboard(byUser, limit), nil
}

// StakeholderPriorities summarises stakeholder priorities across the user's programs.
func (e Engine) StakeholderPriorities(ctx context.Context, userID string) (map[string]int, error) {
	return e.Repo.StakeholderPriorityCounts(ctx, userID)
}

const (
	DefaultProgressWeeks = 8
	MaxProgressWeeks     = 52
)

// ProgressTimeline returns the user's weekly cumulative programs and XP,
// ending at the engine clock.
func (e Engine) ProgressTimeline(ctx context.Context, userID string, weeks int) ([]domain.ProgressPoint, error) {
	if weeks <= 0 {
		weeks = DefaultProgressWeeks
	}
	if weeks > MaxProgressWeeks {
		return nil, invalid("weeks", fmt.Sprintf("must be at most %d", MaxProgressWeeks))
	}
	programs, err := e.Repo.ListPrograms(ctx, repo.ProgramFilters{UserID: userID})
	if err != nil {
		return nil, err
	}
	return e.rules().WeeklyProgress(programs, e.now(), weeks), nil
}
