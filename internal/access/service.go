// Package access decides who may use the admin panel.
package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/database"
)

// ManagerRepository persists users who logged in with the admin password.
type ManagerRepository interface {
	IsManager(ctx context.Context, userID int64) (bool, error)
	AddManager(ctx context.Context, userID, chatID int64, name string) error
	RemoveManager(ctx context.Context, userID int64) error
	ListManagers(ctx context.Context) ([]database.Manager, error)
	ManagerChatIDs(ctx context.Context) ([]int64, error)
}

// Service checks admin rights from configured IDs and password logins.
type Service struct {
	adminIDs map[int64]struct{}
	password string
	managers ManagerRepository
	logger   zerolog.Logger
}

func NewService(adminIDs []int64, password string, managers ManagerRepository, logger zerolog.Logger) *Service {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Service{
		adminIDs: ids,
		password: password,
		managers: managers,
		logger:   logger.With().Str("component", "access").Logger(),
	}
}

// IsAdmin reports whether the user is a configured admin or logged in.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if _, ok := s.adminIDs[userID]; ok {
		return true, nil
	}
	return s.managers.IsManager(ctx, userID)
}

// PasswordEnabled reports whether password login is possible.
func (s *Service) PasswordEnabled() bool {
	return s.password != ""
}

// Login grants admin rights if password matches.
func (s *Service) Login(ctx context.Context, userID, chatID int64, name, password string) error {
	if !s.PasswordEnabled() {
		return &AccessDeniedError{Reason: "Вход по паролю отключён."}
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		s.logger.Warn().Int64("user_id", userID).Msg("failed admin login")
		return &AccessDeniedError{Reason: "❌ Неверный пароль."}
	}

	if err := s.managers.AddManager(ctx, userID, chatID, name); err != nil {
		return fmt.Errorf("add manager: %w", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("name", name).
		Msg("manager logged in")

	return nil
}

// Logout revokes a password login. Configured admins stay admins.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	if err := s.managers.RemoveManager(ctx, userID); err != nil {
		return err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Msg("manager logged out")

	return nil
}

// ListManagers returns all password-logged managers.
func (s *Service) ListManagers(ctx context.Context) ([]database.Manager, error) {
	return s.managers.ListManagers(ctx)
}

// ManagerChatIDs returns chats of password-logged managers.
func (s *Service) ManagerChatIDs(ctx context.Context) ([]int64, error) {
	return s.managers.ManagerChatIDs(ctx)
}

// AdminMiddleware checks admin rights before handling a command.
func (s *Service) AdminMiddleware(ctx context.Context, userID int64) error {
	ok, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !ok {
		return &AccessDeniedError{Reason: "⛔ Эта команда доступна только администратору."}
	}
	return nil
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
