// Package testutil provides an in-memory database and seeded accounts for
// package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"grocery-sync/auth"
	"grocery-sync/db"
	"grocery-sync/entities"
	"grocery-sync/repositories"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

const (
	Secret   = "test-secret"
	Password = "s3cret-pass"
)

// NewDB opens a private in-memory sqlite database with the schema migrated.
// It is closed when the test ends.
func NewDB(t testing.TB) *db.GormDatabase {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, time.Now().UnixNano())

	database, err := db.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = database.Close() })
	return database
}

// NewTokens returns a token service signing with Secret.
func NewTokens() *auth.TokenService {
	return auth.NewTokenService(Secret, time.Hour)
}

// SeedUser stores a user whose password is Password.
func SeedUser(t testing.TB, users repositories.UserRepository, email string) *entities.User {
	t.Helper()

	hash, err := auth.HashPassword(Password)
	require.NoError(t, err)

	user := &entities.User{Email: email, PasswordHash: hash}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

// Token issues a valid token for user.
func Token(t testing.TB, tokens *auth.TokenService, user *entities.User) string {
	t.Helper()

	tok, err := tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
	require.NoError(t, err)
	return tok
}
