package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MISSIONS QUERY
// Возвращает каталог миссий со статусом каждой в текущем периоде.
// Статус вычисляется лениво: смена дня или недели автоматически
// возвращает миссии в available без фоновых задач.
// ══════════════════════════════════════════════════════════════════════════════

// ListMissionsQuery содержит параметры запроса миссий.
type ListMissionsQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// Period - фильтр по периоду (пустое значение = все).
	Period string

	// At - момент, на который вычисляются периоды (по умолчанию сейчас).
	At time.Time
}

// Validate проверяет корректность параметров запроса.
func (q *ListMissionsQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if q.Period != "" {
		if _, err := shared.ParsePeriod(q.Period); err != nil {
			return err
		}
	}
	return nil
}

// MissionDTO - DTO миссии со статусом пользователя.
type MissionDTO struct {
	// ID - идентификатор миссии.
	ID string `json:"id"`

	// Name - название миссии.
	Name string `json:"name"`

	// Description - описание миссии.
	Description string `json:"description"`

	// Period - период повторения: daily или weekly.
	Period string `json:"period"`

	// Reward - XP за выполнение.
	Reward int `json:"reward"`

	// RequiresProof - требуется ли доказательство.
	RequiresProof bool `json:"requires_proof"`

	// Status - статус в текущем периоде: available, proof_submitted, completed.
	Status string `json:"status"`

	// PeriodEndsAt - конец текущего периода (когда миссия сбросится).
	PeriodEndsAt time.Time `json:"period_ends_at"`

	// CompletedAt - время выполнения (если completed).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListMissionsResult содержит результат запроса миссий.
type ListMissionsResult struct {
	// Missions - миссии каталога со статусами.
	Missions []MissionDTO `json:"missions"`

	// CompletedToday - выполнено daily миссий в текущем дне.
	CompletedToday int `json:"completed_today"`

	// CompletedThisWeek - выполнено weekly миссий в текущей неделе.
	CompletedThisWeek int `json:"completed_this_week"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ListMissionsHandler обрабатывает ListMissionsQuery.
type ListMissionsHandler struct {
	catalog        *mission.Catalog
	completionRepo mission.CompletionRepository
	proofRepo      mission.ProofRepository
}

// NewListMissionsHandler создаёт новый ListMissionsHandler.
func NewListMissionsHandler(
	catalog *mission.Catalog,
	completionRepo mission.CompletionRepository,
	proofRepo mission.ProofRepository,
) *ListMissionsHandler {
	return &ListMissionsHandler{
		catalog:        catalog,
		completionRepo: completionRepo,
		proofRepo:      proofRepo,
	}
}

// Handle выполняет запрос миссий.
func (h *ListMissionsHandler) Handle(ctx context.Context, q ListMissionsQuery) (*ListMissionsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_missions: %w", err)
	}

	at := q.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	userID := shared.UserID(q.UserID)

	dailyStart := mission.PeriodStartFor(shared.PeriodDaily, at)
	weekStart := mission.PeriodStartFor(shared.PeriodWeekly, at)

	dailyCompletions, err := h.completionsFor(ctx, userID, dailyStart)
	if err != nil {
		return nil, fmt.Errorf("list_missions: %w", err)
	}
	weeklyCompletions, err := h.completionsFor(ctx, userID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("list_missions: %w", err)
	}
	weeklyProofs, err := h.proofRepo.GetForPeriod(ctx, userID, weekStart)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("list_missions: %w", err)
	}

	result := &ListMissionsResult{
		Missions:    make([]MissionDTO, 0, len(h.catalog.All())),
		GeneratedAt: at,
	}

	for _, m := range h.catalog.All() {
		if q.Period != "" && string(m.Period) != q.Period {
			continue
		}

		completions := dailyCompletions
		if m.Period == shared.PeriodWeekly {
			completions = weeklyCompletions
		}

		dto := MissionDTO{
			ID:            m.ID.String(),
			Name:          m.Name,
			Description:   m.Description,
			Period:        string(m.Period),
			Reward:        m.Reward.Int(),
			RequiresProof: m.RequiresProof,
			Status:        string(mission.StatusFor(m, completions, weeklyProofs)),
			PeriodEndsAt:  mission.PeriodEndFor(m.Period, at),
		}
		for _, c := range completions {
			if c.MissionID == m.ID {
				completedAt := c.CompletedAt
				dto.CompletedAt = &completedAt
				break
			}
		}
		result.Missions = append(result.Missions, dto)
	}

	result.CompletedToday = h.countByPeriod(dailyCompletions, shared.PeriodDaily)
	result.CompletedThisWeek = h.countByPeriod(weeklyCompletions, shared.PeriodWeekly)
	return result, nil
}

// countByPeriod считает выполнения миссий заданного типа периода.
// В понедельник daily и weekly окна начинаются одновременно, поэтому
// фильтра по period_start недостаточно.
func (h *ListMissionsHandler) countByPeriod(completions []*mission.Completion, p shared.Period) int {
	count := 0
	for _, c := range completions {
		if c.Period == p {
			count++
		}
	}
	return count
}

func (h *ListMissionsHandler) completionsFor(ctx context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.Completion, error) {
	completions, err := h.completionRepo.GetForPeriod(ctx, userID, periodStart)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return completions, nil
}
