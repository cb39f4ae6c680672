package mission

import (
	"context"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации живут в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository хранит выполненные миссии.
type CompletionRepository interface {
	// Create сохраняет факт выполнения.
	// Возвращает shared.ErrAlreadyCompleted, если пара (user, mission)
	// уже засчитана в этом периоде: уникальность гарантирует хранилище.
	Create(ctx context.Context, completion *Completion) error

	// Delete удаляет выполнение по идентификатору записи. Нужен для
	// отката, когда выполнение записано, а XP начислить не удалось.
	// Возвращает shared.ErrNotFound, если записи нет.
	Delete(ctx context.Context, id string) error

	// GetForPeriod возвращает выполнения пользователя с началом периода
	// periodStart. Отсутствие выполнений - не ошибка, возвращается
	// пустой срез.
	GetForPeriod(ctx context.Context, userID shared.UserID, periodStart time.Time) ([]*Completion, error)

	// CountByUser возвращает общее число выполнений за всё время.
	CountByUser(ctx context.Context, userID shared.UserID) (int, error)

	// CountByUserAndPeriodType возвращает число выполнений миссий
	// указанного типа периода за всё время (для достижений).
	CountByUserAndPeriodType(ctx context.Context, userID shared.UserID, p shared.Period) (int, error)
}

// ProofRepository хранит отправленные доказательства.
type ProofRepository interface {
	// Create сохраняет новую отправку доказательства.
	Create(ctx context.Context, submission *ProofSubmission) error

	// Update обновляет вердикт по отправке.
	Update(ctx context.Context, submission *ProofSubmission) error

	// GetPending возвращает pending-отправку пользователя по миссии
	// в периоде periodStart или shared.ErrNotFound.
	GetPending(ctx context.Context, userID shared.UserID, missionID shared.MissionID, periodStart time.Time) (*ProofSubmission, error)

	// GetForPeriod возвращает все отправки пользователя в периоде.
	GetForPeriod(ctx context.Context, userID shared.UserID, periodStart time.Time) ([]*ProofSubmission, error)
}
