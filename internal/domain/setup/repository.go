package setup

import (
	"context"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// Repository определяет операции хранения профилей сетапов.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// Save создаёт или целиком перезаписывает профиль пользователя.
	Save(ctx context.Context, profile *Profile) error

	// GetByUserID возвращает профиль по ID пользователя.
	// Возвращает shared.ErrSetupNotFound, если профиля нет.
	GetByUserID(ctx context.Context, userID shared.UserID) (*Profile, error)
}
