// Package leaderboard содержит доменную модель лидерборда UPGRD.
package leaderboard

import (
	"context"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE INTERFACE
// Реализация живёт в infrastructure (Redis sorted set).
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет контракт горячего хранилища лидерборда.
// Пересборка идёт из PostgreSQL; чтения обслуживаются кэшем.
type Cache interface {
	// Rebuild атомарно заменяет содержимое лидерборда новым рейтингом.
	Rebuild(ctx context.Context, ranking *Ranking) error

	// UpdateScore обновляет очки одного пользователя без полной пересборки.
	// Используется на пути начисления XP, чтобы лидерборд не отставал
	// до следующего планового rebuild.
	UpdateScore(ctx context.Context, entry *Entry) error

	// Top возвращает первые n записей.
	// Возвращает shared.ErrLeaderboardEmpty, если лидерборд пуст.
	Top(ctx context.Context, n int) ([]*Entry, error)

	// Page возвращает страницу записей (нумерация с 1).
	Page(ctx context.Context, page, pageSize int) ([]*Entry, error)

	// GetRank возвращает позицию пользователя.
	// Возвращает shared.ErrUserNotRanked, если пользователя нет в рейтинге.
	GetRank(ctx context.Context, userID shared.UserID) (shared.Rank, error)

	// Around возвращает окно записей вокруг пользователя.
	Around(ctx context.Context, userID shared.UserID, rangeSize int) ([]*Entry, error)

	// Count возвращает число пользователей в рейтинге.
	Count(ctx context.Context) (int, error)
}
