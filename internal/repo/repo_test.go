package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/db"
	"github.com/Skotchmaster/auth_service/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, gdb *gorm.DB, email string) *models.User {
	t.Helper()
	u, err := NewUsers(gdb).Save(context.Background(), &models.User{
		Email:        email,
		Name:         "Test",
		PasswordHash: strPtr("$2a$10$hash"),
		Roles:        []models.UserRole{{Name: "USER"}},
	})
	require.NoError(t, err)
	return u
}
