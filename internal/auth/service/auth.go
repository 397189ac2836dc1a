package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmflow/pharmflow-backend/internal/auth/jwt"
	authrepo "github.com/pharmflow/pharmflow-backend/internal/auth/repository"
	catalogrepo "github.com/pharmflow/pharmflow-backend/internal/catalog/repository"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/messaging"
)

// AuthService handles login, token refresh and work shifts
type AuthService struct {
	users     *catalogrepo.UserRepository
	sessions  *authrepo.SessionRepository
	shifts    *authrepo.ShiftRepository
	jwt       *jwt.Manager
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users *catalogrepo.UserRepository,
	sessions *authrepo.SessionRepository,
	shifts *authrepo.ShiftRepository,
	jwtManager *jwt.Manager,
	publisher *messaging.Publisher,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		shifts:    shifts,
		jwt:       jwtManager,
		publisher: publisher,
		logger:    log,
	}
}

// LoginInput is the login request
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is an issued access/refresh token pair
type TokenPair struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	User         *catalogrepo.User   `json:"user"`
	Shift        *authrepo.WorkShift `json:"shift,omitempty"`
}

// Login verifies credentials, opens a session and a work shift
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.Forbidden("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role, user.PharmacyID)
	if err != nil {
		return nil, errors.Internal("failed to generate access token")
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate refresh token")
	}

	session := &authrepo.Session{
		UserID:           user.ID,
		RefreshTokenHash: authrepo.HashToken(refreshToken),
		ExpiresAt:        time.Now().UTC().Add(s.jwt.RefreshExpiry()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	shift, err := s.shifts.Open(ctx, user.ID, user.PharmacyID)
	if err != nil {
		// Logging in again while a shift is open keeps the shift running.
		if !errors.Is(err, errors.ErrInvalidState) {
			return nil, err
		}
		shift, err = s.shifts.GetOpenForUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	} else if s.publisher != nil {
		if err := s.publisher.Publish(ctx, messaging.EventShiftOpened, messaging.ShiftEvent{
			ShiftID:    shift.ID,
			UserID:     user.ID,
			PharmacyID: strOrEmpty(user.PharmacyID),
		}); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish shift opened event")
		}
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user logged in")

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		Shift:        shift,
	}, nil
}

// RefreshInput is the token refresh request
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates a refresh token and issues a new token pair
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (*TokenPair, error) {
	userID, err := s.jwt.VerifyRefreshToken(input.RefreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetActiveByTokenHash(ctx, authrepo.HashToken(input.RefreshToken))
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, errors.TokenInvalid()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.Forbidden("account is deactivated")
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role, user.PharmacyID)
	if err != nil {
		return nil, errors.Internal("failed to generate access token")
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate refresh token")
	}

	newSession := &authrepo.Session{
		UserID:           user.ID,
		RefreshTokenHash: authrepo.HashToken(refreshToken),
		ExpiresAt:        time.Now().UTC().Add(s.jwt.RefreshExpiry()),
	}
	if err := s.sessions.Create(ctx, newSession); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Logout revokes the user's sessions and closes their open shift
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	shift, err := s.shifts.Close(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, messaging.EventShiftClosed, messaging.ShiftEvent{
			ShiftID:    shift.ID,
			UserID:     userID,
			PharmacyID: strOrEmpty(shift.PharmacyID),
		}); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish shift closed event")
		}
	}

	s.logger.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

// Me returns the authenticated user's profile
func (s *AuthService) Me(ctx context.Context, userID string) (*catalogrepo.User, error) {
	return s.users.GetByID(ctx, userID)
}

// CurrentShift returns the user's open shift, if any
func (s *AuthService) CurrentShift(ctx context.Context, userID string) (*authrepo.WorkShift, error) {
	return s.shifts.GetOpenForUser(ctx, userID)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
