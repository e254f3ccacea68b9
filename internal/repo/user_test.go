package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/models"
)

func TestUsers_SaveCreatesWithRoles(t *testing.T) {
	gdb := newTestDB(t)
	users := NewUsers(gdb)
	ctx := context.Background()

	u := seedUser(t, gdb, "  Alice@Example.COM ")
	require.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)

	got, err := users.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []string{"USER"}, got.RoleNames())
	assert.False(t, got.Enabled)

	exists, err := users.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUsers_DuplicateEmailIsConflict(t *testing.T) {
	gdb := newTestDB(t)
	seedUser(t, gdb, "bob@example.com")

	_, err := NewUsers(gdb).Save(context.Background(), &models.User{Email: "BOB@example.com"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestUsers_NotFound(t *testing.T) {
	users := NewUsers(newTestDB(t))
	ctx := context.Background()

	_, err := users.FindByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = users.FindByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := users.ExistsByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUsers_SaveUpdatesColumnsAndKeepsRoles(t *testing.T) {
	gdb := newTestDB(t)
	users := NewUsers(gdb)
	ctx := context.Background()

	u := seedUser(t, gdb, "carol@example.com")
	u.Enabled = true
	u.Name = "Carol"
	u.Roles = nil
	_, err := users.Save(ctx, u)
	require.NoError(t, err)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "Carol", got.Name)
	assert.Equal(t, []string{"USER"}, got.RoleNames())
}

func TestUsers_Delete(t *testing.T) {
	gdb := newTestDB(t)
	users := NewUsers(gdb)
	ctx := context.Background()

	u := seedUser(t, gdb, "dave@example.com")
	require.NoError(t, users.Delete(ctx, u.ID))

	_, err := users.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	var roles int64
	require.NoError(t, gdb.Model(&models.UserRole{}).Where("user_id = ?", u.ID).Count(&roles).Error)
	assert.Zero(t, roles)

	require.ErrorIs(t, users.Delete(ctx, u.ID), domain.ErrNotFound)
}
