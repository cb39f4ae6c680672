package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Возвращает страницу лидерборда из горячего кэша. Опционально
// добавляет позицию запрашивающего пользователя и его соседей.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Page - номер страницы (с 1).
	Page int

	// PageSize - размер страницы (по умолчанию 20, максимум 100).
	PageSize int

	// AroundUserID - если задан, вернуть окно вокруг этого пользователя
	// вместо страницы.
	AroundUserID string

	// ForUserID - если задан, включить позицию этого пользователя.
	ForUserID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Page < 0 || q.PageSize < 0 {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrNegativeValue,
			"page and page size cannot be negative")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return nil
}

// LeaderboardEntryDTO - DTO записи лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (с 1).
	Rank int `json:"rank"`

	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// TotalPoints - суммарный XP за всё время.
	TotalPoints int `json:"total_points"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// Tier - тир сетапа.
	Tier string `json:"tier"`

	// RankChange - изменение позиции с прошлой пересборки.
	RankChange int `json:"rank_change"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - общее количество пользователей в рейтинге.
	TotalCount int `json:"total_count"`

	// Page - номер возвращённой страницы (0 для окна Around).
	Page int `json:"page"`

	// RequesterRank - позиция запрашивающего (0 = вне рейтинга).
	RequesterRank int `json:"requester_rank,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	cache leaderboard.Cache
}

// NewGetLeaderboardHandler создаёт новый GetLeaderboardHandler.
func NewGetLeaderboardHandler(cache leaderboard.Cache) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{cache: cache}
}

// Handle выполняет запрос лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	var (
		entries []*leaderboard.Entry
		err     error
	)
	page := q.Page
	if q.AroundUserID != "" {
		entries, err = h.cache.Around(ctx, shared.UserID(q.AroundUserID), q.PageSize/2)
		page = 0
	} else {
		entries, err = h.cache.Page(ctx, q.Page, q.PageSize)
	}
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	total, err := h.cache.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{
		Entries:     make([]LeaderboardEntryDTO, 0, len(entries)),
		TotalCount:  total,
		Page:        page,
		GeneratedAt: time.Now().UTC(),
	}

	for _, e := range entries {
		result.Entries = append(result.Entries, LeaderboardEntryDTO{
			Rank:        e.Rank.Int(),
			UserID:      e.UserID.String(),
			DisplayName: e.DisplayName,
			TotalPoints: e.TotalPoints.Int(),
			Level:       e.Level.Int(),
			Tier:        e.Tier.String(),
			RankChange:  int(e.RankChange),
		})
	}

	if q.ForUserID != "" {
		rank, rankErr := h.cache.GetRank(ctx, shared.UserID(q.ForUserID))
		if rankErr == nil {
			result.RequesterRank = rank.Int()
		} else if !errors.Is(rankErr, shared.ErrNotFound) {
			return nil, fmt.Errorf("get_leaderboard: %w", rankErr)
		}
	}

	return result, nil
}
