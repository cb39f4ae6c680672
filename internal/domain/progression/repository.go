package progression

import (
	"context"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения прогресса пользователей.
type Repository interface {
	// Create создаёт запись прогресса нового пользователя.
	// Возвращает shared.ErrAlreadyExists, если запись уже есть.
	Create(ctx context.Context, progress *UserProgress) error

	// GetByUserID возвращает прогресс по ID пользователя.
	// Возвращает shared.ErrProgressNotFound, если записи нет.
	GetByUserID(ctx context.Context, userID shared.UserID) (*UserProgress, error)

	// Update сохраняет новое состояние прогресса.
	// Обновление проверяет Version (оптимистичная блокировка):
	// при несовпадении возвращает shared.ErrOptimisticLock.
	Update(ctx context.Context, progress *UserProgress) error

	// GetAll возвращает прогресс всех пользователей (для пересборки лидерборда).
	GetAll(ctx context.Context, opts ListOptions) ([]*UserProgress, error)

	// Count возвращает количество пользователей.
	Count(ctx context.Context) (int, error)

	// SaveXPChange сохраняет запись в журнал начислений XP.
	SaveXPChange(ctx context.Context, entry XPHistoryEntry) error

	// GetXPHistory возвращает журнал начислений за период.
	GetXPHistory(ctx context.Context, userID shared.UserID, from, to time.Time) ([]XPHistoryEntry, error)
}

// ListOptions содержит параметры пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortBy - поле для сортировки.
	SortBy string

	// SortDesc - сортировка по убыванию.
	SortDesc bool
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    100,
		SortBy:   "total_points",
		SortDesc: true,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// XPHistoryEntry - одна запись в журнале начислений XP.
type XPHistoryEntry struct {
	// ID - уникальный идентификатор записи.
	ID string

	// UserID - кому начислено.
	UserID shared.UserID

	// Delta - размер начисления.
	Delta shared.XP

	// TotalAfter - TotalPoints после начисления.
	TotalAfter shared.XP

	// Reason - источник начисления (mission, achievement_bonus).
	Reason string

	// SourceID - ID миссии или достижения (если применимо).
	SourceID string

	// CreatedAt - время начисления.
	CreatedAt time.Time
}
