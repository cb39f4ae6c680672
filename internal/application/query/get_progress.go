// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/application/command"
	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Возвращает прогресс пользователя: уровень, XP, стрик, тир сетапа
// и позицию в лидерборде. Первый запрос незнакомого пользователя
// создаёт для него запись с нулевым прогрессом.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery содержит параметры запроса прогресса.
type GetProgressQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// DisplayName - имя для автосоздания записи (опционально).
	DisplayName string
}

// Validate проверяет корректность параметров запроса.
func (q *GetProgressQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// ProgressDTO - DTO прогресса пользователя.
type ProgressDTO struct {
	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// LevelTitle - название уровня.
	LevelTitle string `json:"level_title"`

	// XP - накопленный XP внутри уровня.
	XP int `json:"xp"`

	// XPToNextLevel - порог до следующего уровня.
	XPToNextLevel int `json:"xp_to_next_level"`

	// ProgressPercent - заполнение текущего уровня (0-100).
	ProgressPercent int `json:"progress_percent"`

	// TotalPoints - суммарный XP за всё время.
	TotalPoints int `json:"total_points"`

	// SetupScore - последний рассчитанный Setup Score.
	SetupScore int `json:"setup_score"`

	// Tier - тир сетапа.
	Tier string `json:"tier"`

	// TierDisplayName - локализованное название тира.
	TierDisplayName string `json:"tier_display_name"`

	// CurrentStreak - текущая серия дней входа.
	CurrentStreak int `json:"current_streak"`

	// BestStreak - лучшая серия дней входа.
	BestStreak int `json:"best_streak"`

	// Rank - позиция в лидерборде (0 = вне рейтинга).
	Rank int `json:"rank"`

	// AchievementsUnlocked - количество разблокированных достижений.
	AchievementsUnlocked int `json:"achievements_unlocked"`

	// CreatedAt - время регистрации.
	CreatedAt time.Time `json:"created_at"`
}

// GetProgressHandler обрабатывает GetProgressQuery.
type GetProgressHandler struct {
	progressRepo progression.Repository
	register     *command.RegisterUserHandler
	leaderboard  leaderboard.Cache
}

// NewGetProgressHandler создаёт новый GetProgressHandler.
func NewGetProgressHandler(
	progressRepo progression.Repository,
	register *command.RegisterUserHandler,
	leaderboardCache leaderboard.Cache,
) *GetProgressHandler {
	return &GetProgressHandler{
		progressRepo: progressRepo,
		register:     register,
		leaderboard:  leaderboardCache,
	}
}

// Handle выполняет запрос прогресса.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	progress, err := h.progressRepo.GetByUserID(ctx, shared.UserID(q.UserID))
	if errors.Is(err, shared.ErrNotFound) {
		// Первое обращение: регистрируем пользователя с нулевым прогрессом.
		registered, regErr := h.register.Handle(ctx, command.RegisterUserCommand{
			UserID:      q.UserID,
			DisplayName: q.DisplayName,
		})
		if regErr != nil {
			return nil, fmt.Errorf("get_progress: %w", regErr)
		}
		progress = registered.Progress
	} else if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	rank := 0
	if h.leaderboard != nil {
		r, rankErr := h.leaderboard.GetRank(ctx, progress.UserID)
		if rankErr == nil {
			rank = r.Int()
		}
	}

	tier := shared.TierForScore(progress.SetupScore)
	return &ProgressDTO{
		UserID:               progress.UserID.String(),
		DisplayName:          progress.DisplayName,
		Level:                progress.Level.Int(),
		LevelTitle:           progress.Level.Title(),
		XP:                   progress.XP.Int(),
		XPToNextLevel:        progress.XPToNextLevel.Int(),
		ProgressPercent:      progress.ProgressPercent(),
		TotalPoints:          progress.TotalPoints.Int(),
		SetupScore:           progress.SetupScore,
		Tier:                 tier.String(),
		TierDisplayName:      tier.DisplayName(),
		CurrentStreak:        progress.CurrentStreak,
		BestStreak:           progress.BestStreak,
		Rank:                 rank,
		AchievementsUnlocked: len(progress.Achievements),
		CreatedAt:            progress.CreatedAt,
	}, nil
}
