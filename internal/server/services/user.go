// Package services contains server-side business logic: the session manager
// that issues, rotates and revokes token pairs, and the user-facing
// operations built on it.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/media"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

type RegisterInput struct {
	FullName       string
	Email          string
	UserName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

type LoginInput struct {
	UserName string
	Email    string
	Password string
}

// LoginResult is returned to the transport layer, which sets cookies from
// Tokens and echoes both in the response body.
type LoginResult struct {
	User   models.PublicUser
	Tokens models.TokenPair
}

// UserService implements registration, login, refresh, logout and
// current-user lookup on top of SessionService.
type UserService struct {
	users      users.Repository
	sessions   *SessionService
	uploader   media.Uploader
	metrics    *metrics.Metrics
	logger     logging.Logger
	hashParams cryptox.Argon2Params
}

func NewUserService(repo users.Repository, sessions *SessionService, uploader media.Uploader,
	m *metrics.Metrics, logger logging.Logger) *UserService {
	return &UserService{
		users:      repo,
		sessions:   sessions,
		uploader:   uploader,
		metrics:    m,
		logger:     logger.With("module", "users"),
		hashParams: cryptox.DefaultArgon2Params(),
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *models.PublicUser, err error) {
	defer func() { s.metrics.Register(err) }()

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.UserName = strings.ToLower(strings.TrimSpace(in.UserName))
	if in.FullName == "" || in.Email == "" || in.UserName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.NewValidationError("all fields are required")
	}

	existing, err := s.users.GetByLogin(ctx, in.UserName, in.Email)
	switch {
	case err == nil && existing != nil:
		return nil, common.ErrorConflict
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "register: lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if in.AvatarPath == "" {
		return nil, common.NewValidationError("avatar file is required")
	}
	avatarURL, err := s.uploader.UploadFile(ctx, in.AvatarPath)
	if err != nil {
		s.logger.Warn(ctx, "register: avatar upload failed", "error", err)
		return nil, common.NewValidationError("avatar file is required")
	}

	var coverURL string
	if in.CoverImagePath != "" {
		if coverURL, err = s.uploader.UploadFile(ctx, in.CoverImagePath); err != nil {
			s.logger.Warn(ctx, "register: cover image upload failed", "error", err)
			coverURL = ""
		}
	}

	hash, err := cryptox.HashPassword(in.Password, s.hashParams)
	if err != nil {
		s.logger.Error(ctx, "register: hash password failed", "error", err)
		return nil, common.ErrorInternal
	}

	u, err := s.users.Create(ctx, &models.User{
		UserName:     in.UserName,
		Email:        in.Email,
		FullName:     in.FullName,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		s.logger.Error(ctx, "register: create user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	pub := u.Public()
	return &pub, nil
}

// Login accepts a username or an email (either suffices) plus a password.
func (s *UserService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	defer func() { s.metrics.Login(err) }()

	userName := strings.ToLower(strings.TrimSpace(in.UserName))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if userName == "" && email == "" {
		return nil, common.NewValidationError("username or email is required")
	}
	if in.Password == "" {
		return nil, common.NewValidationError("password is required")
	}

	user, err := s.users.GetByLogin(ctx, userName, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "login: lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.sessions.VerifyCredentials(user, in.Password) {
		return nil, common.ErrorUnauthenticated
	}

	pair, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{User: user.Public(), Tokens: *pair}, nil
}

func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (_ *models.TokenPair, err error) {
	defer func() { s.metrics.Refresh(err) }()
	return s.sessions.Rotate(ctx, refreshToken)
}

func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.Logout(err) }()
	return s.sessions.Terminate(ctx, userID)
}

// CurrentUser resolves an authenticated subject. A subject that no longer
// exists is treated as unauthenticated.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthenticated
		}
		s.logger.Error(ctx, "current user: lookup failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	pub := u.Public()
	return &pub, nil
}
