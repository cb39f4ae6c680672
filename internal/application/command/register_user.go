// Package command contains write operations (CQRS - Commands).
//
// Every handler serializes work per user through a keyed mutex: two
// concurrent commands for the same user never interleave, commands for
// different users run in parallel.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Creates the progression record for a new user. Registration is
// idempotent: repeating the command returns the existing record.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the data to register a user.
type RegisterUserCommand struct {
	// UserID is the stable identifier of the user.
	UserID string

	// DisplayName is the name shown on the leaderboard.
	DisplayName string
}

// Validate validates the command.
func (c RegisterUserCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// RegisterUserResult contains the result of registering a user.
type RegisterUserResult struct {
	// Progress is the progression record (new or existing).
	Progress *progression.UserProgress

	// Created indicates whether a new record was created.
	Created bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	progressRepo progression.Repository
	eventBus     shared.EventPublisher
	locks        *keyedmutex.KeyedMutex
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(
	progressRepo progression.Repository,
	eventBus shared.EventPublisher,
	locks *keyedmutex.KeyedMutex,
) *RegisterUserHandler {
	return &RegisterUserHandler{
		progressRepo: progressRepo,
		eventBus:     eventBus,
		locks:        locks,
	}
}

// Handle executes the register user command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	var result *RegisterUserResult
	err := h.locks.WithLockContext(ctx, cmd.UserID, func(ctx context.Context) error {
		progress, created, err := loadOrCreateProgress(ctx, h.progressRepo, h.eventBus,
			shared.UserID(cmd.UserID), cmd.DisplayName)
		if err != nil {
			return err
		}
		result = &RegisterUserResult{Progress: progress, Created: created}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}
	return result, nil
}

// loadOrCreateProgress returns the user's progression record, creating
// it on first contact. Shared by every command handler: any operation
// on an unseen user starts from a fresh level-0 record.
func loadOrCreateProgress(
	ctx context.Context,
	repo progression.Repository,
	eventBus shared.EventPublisher,
	userID shared.UserID,
	displayName string,
) (*progression.UserProgress, bool, error) {
	progress, err := repo.GetByUserID(ctx, userID)
	if err == nil {
		return progress, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("load progress: %w", err)
	}

	progress = progression.NewUserProgress(userID, displayName)
	if err := repo.Create(ctx, progress); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost the race against another instance; reload.
			progress, err = repo.GetByUserID(ctx, userID)
			if err != nil {
				return nil, false, fmt.Errorf("reload progress: %w", err)
			}
			return progress, false, nil
		}
		return nil, false, fmt.Errorf("create progress: %w", err)
	}

	if eventBus != nil {
		_ = eventBus.Publish(shared.NewUserRegisteredEvent(userID.String(), displayName))
	}
	return progress, true, nil
}

// touch updates the aggregate timestamp before persistence.
func touch(p *progression.UserProgress) {
	p.UpdatedAt = time.Now().UTC()
}
