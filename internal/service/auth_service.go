package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	appmail "github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

// AuthConfig carries the tunables of the sign-in flow.
type AuthConfig struct {
	CodeTTL          time.Duration
	CodeMaxAttempts  int
	CodeResendWindow time.Duration
	SessionTTL       time.Duration
	SessionRenewal   time.Duration
}

// AuthService implements passwordless email sign-in. A short-lived numeric
// code is mailed to the user; verifying it creates the user on first sign-in
// and opens an opaque server-side session.
type AuthService struct {
	users    store.UserStore
	sessions store.SessionStore
	codes    store.CodeStore
	mailer   appmail.Sender
	cfg      AuthConfig
	logger   *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users store.UserStore,
	sessions store.SessionStore,
	codes store.CodeStore,
	mailer appmail.Sender,
	cfg AuthConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		codes:    codes,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
	}
}

// RequestCode generates a sign-in code, stores its hash and mails it. Only
// the bcrypt hash is ever at rest.
func (s *AuthService) RequestCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return apperrors.New(apperrors.CodeInvalidRequest, "invalid email address")
	}

	allowed, err := s.codes.AllowCodeRequest(ctx, email, s.cfg.CodeResendWindow)
	if err != nil {
		return fmt.Errorf("failed to check code request window: %w", err)
	}
	if !allowed {
		return apperrors.New(apperrors.CodeRateLimited, "a code was sent recently, try again shortly")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	if err := s.codes.SaveCode(ctx, email, string(hash), s.cfg.CodeTTL); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	if err := s.mailer.Send(appmail.SignInCode(email, code, s.cfg.CodeTTL)); err != nil {
		s.logger.Error("failed to send sign-in code", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("failed to send sign-in code: %w", err)
	}

	s.logger.Info("sign-in code issued", zap.String("email", email))
	return nil
}

// VerifyCode checks a sign-in code, creating the user on first sign-in and
// opening a session. The code is single-use and invalidated after too many
// failed attempts.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (string, *model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, apperrors.New(apperrors.CodeInvalidRequest, "invalid email address")
	}

	hash, err := s.codes.GetCode(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, apperrors.New(apperrors.CodeCodeInvalid, "code expired or not requested")
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load code: %w", err)
	}

	attempts, err := s.codes.IncrementCodeAttempts(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to count attempt: %w", err)
	}
	if attempts > s.cfg.CodeMaxAttempts {
		if err := s.codes.DeleteCode(ctx, email); err != nil {
			s.logger.Warn("failed to invalidate code", zap.String("email", email), zap.Error(err))
		}
		return "", nil, apperrors.New(apperrors.CodeCodeInvalid, "too many attempts, request a new code")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return "", nil, apperrors.New(apperrors.CodeCodeInvalid, "incorrect code")
	}

	// Single use.
	if err := s.codes.DeleteCode(ctx, email); err != nil {
		s.logger.Warn("failed to consume code", zap.String("email", email), zap.Error(err))
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		user = &model.User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return "", nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("email", email))
	} else if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	sessionToken, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &model.Session{
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.cfg.SessionTTL),
	}

	if err := s.sessions.CreateSession(ctx, sessionToken, session, s.cfg.SessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("session opened", zap.String("user_id", user.ID))
	return sessionToken, user, nil
}

// Authenticate resolves a session token, sliding the expiry when less than
// the renewal window remains.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "invalid or expired session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if time.Until(session.ExpiresAt) < s.cfg.SessionRenewal {
		session.ExpiresAt = time.Now().Add(s.cfg.SessionTTL)
		if err := s.sessions.RenewSession(ctx, token, session, s.cfg.SessionTTL); err != nil {
			s.logger.Warn("failed to renew session", zap.Error(err))
		}
	}

	return session, nil
}

// Logout revokes a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

// generateCode returns an 8-digit numeric code with leading zeros preserved.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

// generateToken returns an opaque 256-bit session token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
