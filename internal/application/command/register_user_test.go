package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

func TestRegisterUser_CreatesFreshRecord(t *testing.T) {
	e := newEnv()

	result, err := e.register.Handle(context.Background(), RegisterUserCommand{
		UserID:      "user-1",
		DisplayName: "Rafael",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, shared.UserID("user-1"), result.Progress.UserID)
	assert.Equal(t, "Rafael", result.Progress.DisplayName)
	assert.Equal(t, shared.Level(0), result.Progress.Level)
	assert.Equal(t, shared.XP(0), result.Progress.XP)
	assert.Equal(t, shared.XP(1000), result.Progress.XPToNextLevel)
	assert.Equal(t, 1, e.bus.typesSeen()[shared.EventUserRegistered])
}

func TestRegisterUser_Idempotent(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	first, err := e.register.Handle(ctx, RegisterUserCommand{UserID: "user-1", DisplayName: "Rafael"})
	require.NoError(t, err)
	second, err := e.register.Handle(ctx, RegisterUserCommand{UserID: "user-1", DisplayName: "Outro Nome"})
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	// The existing record wins, including its display name.
	assert.Equal(t, "Rafael", second.Progress.DisplayName)
	assert.Equal(t, 1, e.bus.typesSeen()[shared.EventUserRegistered])
}

func TestRegisterUser_InvalidUserID(t *testing.T) {
	e := newEnv()

	_, err := e.register.Handle(context.Background(), RegisterUserCommand{UserID: ""})
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}
