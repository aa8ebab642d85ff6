package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// TokenIssuer is the part of the token codec the session manager needs.
type TokenIssuer interface {
	IssueAccess(subjectID string) (string, error)
	IssueRefresh(subjectID string) (string, error)
	Verify(token string, kind auth.Kind) (*auth.Verified, error)
}

// SessionService owns the refresh token stored on each user record. It
// issues token pairs, rotates them exactly once per presented refresh token
// and clears them on logout.
type SessionService struct {
	users  users.Repository
	codec  TokenIssuer
	logger logging.Logger
}

func NewSessionService(repo users.Repository, codec TokenIssuer, logger logging.Logger) *SessionService {
	return &SessionService{
		users:  repo,
		codec:  codec,
		logger: logger.With("module", "sessions"),
	}
}

// VerifyCredentials compares password with the user's stored hash. It fails
// closed on a nil user or an unreadable hash.
func (s *SessionService) VerifyCredentials(user *models.User, password string) bool {
	if user == nil || password == "" {
		return false
	}
	return cryptox.VerifyPassword(password, user.PasswordHash)
}

// Issue mints a new pair for userID and stores its refresh token as the only
// valid one. No tokens are returned unless the store write succeeded.
func (s *SessionService) Issue(ctx context.Context, userID string) (*models.TokenPair, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "issue: load user failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}

	pair, err := s.mint(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "issue: persist refresh token failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// Rotate exchanges a refresh token for a new pair. Every caller-side failure
// is ErrorUnauthenticated; the presented token is consumed only when the
// compare-and-swap in the store succeeds.
func (s *SessionService) Rotate(ctx context.Context, presented string) (*models.TokenPair, error) {
	if presented == "" {
		return nil, fmt.Errorf("%w: refresh token missing", common.ErrorUnauthenticated)
	}

	claims, err := s.codec.Verify(presented, auth.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthenticated, err)
	}

	user, err := s.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", common.ErrorUnauthenticated)
		}
		s.logger.Error(ctx, "rotate: load user failed", "user_id", claims.SubjectID, "error", err)
		return nil, common.ErrorInternal
	}

	if user.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshToken)) != 1 {
		s.logger.Warn(ctx, "rotate: stale refresh token presented", "user_id", user.ID)
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthenticated, common.ErrorStaleToken)
	}

	pair, err := s.mint(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// A concurrent rotation of the same token may have won since the check
	// above; the swap only applies while the stored value is still presented.
	if err := s.users.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		switch {
		case errors.Is(err, common.ErrorStaleToken):
			s.logger.Warn(ctx, "rotate: lost race for refresh token", "user_id", user.ID)
			return nil, fmt.Errorf("%w: %w", common.ErrorUnauthenticated, err)
		case errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("%w: unknown subject", common.ErrorUnauthenticated)
		default:
			s.logger.Error(ctx, "rotate: swap refresh token failed", "user_id", user.ID, "error", err)
			return nil, common.ErrorInternal
		}
	}
	return pair, nil
}

// Terminate clears the stored refresh token. Repeated calls succeed, and so
// does terminating a user that no longer exists.
func (s *SessionService) Terminate(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "terminate: user not found", "user_id", userID)
			return nil
		}
		s.logger.Error(ctx, "terminate: clear refresh token failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}
	return nil
}

func (s *SessionService) mint(ctx context.Context, userID string) (*models.TokenPair, error) {
	access, err := s.codec.IssueAccess(userID)
	if err != nil {
		s.logger.Error(ctx, "sign access token failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	refresh, err := s.codec.IssueRefresh(userID)
	if err != nil {
		s.logger.Error(ctx, "sign refresh token failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
