package access

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shorlotik/Bot-Stomatologija/internal/database"
)

func newService(t *testing.T, ids []int64, password string) *Service {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(ids, password, db, logger)
}

func TestConfiguredAdmin(t *testing.T) {
	ctx := context.Background()
	s := newService(t, []int64{1}, "")

	ok, err := s.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, s.AdminMiddleware(ctx, 1))
	err = s.AdminMiddleware(ctx, 2)
	assert.True(t, IsAccessDenied(err))
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil, "secret")

	err := s.Login(ctx, 5, 500, "Доктор", "wrong")
	require.Error(t, err)
	assert.True(t, IsAccessDenied(err))

	ok, err := s.IsAdmin(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Login(ctx, 5, 500, "Доктор", "secret"))
	ok, err = s.IsAdmin(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	chats, err := s.ManagerChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{500}, chats)

	require.NoError(t, s.Logout(ctx, 5))
	ok, err = s.IsAdmin(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginDisabledWithoutPassword(t *testing.T) {
	s := newService(t, []int64{1}, "")
	assert.False(t, s.PasswordEnabled())
	assert.True(t, IsAccessDenied(s.Login(context.Background(), 5, 5, "x", "")))
}
