package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	appmail "github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/store"
	"github.com/jizusun/OpenBookCorner/internal/token"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// LibraryService manages libraries and their memberships.
type LibraryService struct {
	libraries store.LibraryStore
	users     store.UserStore
	cache     store.Cache
	cacheTTL  time.Duration
	invites   *token.InviteIssuer
	mailer    appmail.Sender
	baseURL   string
	logger    *zap.Logger
}

// NewLibraryService creates a new library service.
func NewLibraryService(
	libraries store.LibraryStore,
	users store.UserStore,
	cache store.Cache,
	cacheTTL time.Duration,
	invites *token.InviteIssuer,
	mailer appmail.Sender,
	baseURL string,
	logger *zap.Logger,
) *LibraryService {
	return &LibraryService{
		libraries: libraries,
		users:     users,
		cache:     cache,
		cacheTTL:  cacheTTL,
		invites:   invites,
		mailer:    mailer,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// CreateLibrary creates a library; the creator becomes its first admin.
func (s *LibraryService) CreateLibrary(ctx context.Context, creatorID, name, slug string) (*model.Library, error) {
	if name == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "name is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "slug must be lowercase letters, digits and hyphens")
	}

	if _, err := s.libraries.GetLibraryBySlug(ctx, slug); err == nil {
		return nil, apperrors.New(apperrors.CodeAlreadyExists, "a library with this slug already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}

	library := &model.Library{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Version:   1,
	}

	if err := s.libraries.CreateLibrary(ctx, library); err != nil {
		return nil, fmt.Errorf("failed to create library: %w", err)
	}

	membership := &model.Membership{
		LibraryID: library.ID,
		UserID:    creatorID,
		Role:      model.RoleLibraryAdmin,
		CreatedAt: time.Now(),
	}
	if err := s.libraries.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("failed to create founding membership: %w", err)
	}

	s.logger.Info("library created",
		zap.String("library_id", library.ID),
		zap.String("slug", slug),
		zap.String("creator_id", creatorID))

	return library, nil
}

// GetLibrary retrieves a library, using the cache if available.
func (s *LibraryService) GetLibrary(ctx context.Context, libraryID string) (*model.Library, error) {
	cacheKey := s.libraryCacheKey(libraryID)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		if library, ok := cached.(*model.Library); ok {
			return library, nil
		}
	}

	library, err := s.libraries.GetLibrary(ctx, libraryID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "library not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	if err := s.cache.Set(ctx, cacheKey, library, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache library", zap.String("library_id", libraryID), zap.Error(err))
	}

	return library, nil
}

// ListLibraries lists every library on the platform. Only exposed to super
// admins.
func (s *LibraryService) ListLibraries(ctx context.Context) ([]*model.Library, error) {
	libraries, err := s.libraries.ListLibraries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	return libraries, nil
}

// UpdateLibrary renames a library with optimistic locking.
func (s *LibraryService) UpdateLibrary(ctx context.Context, libraryID, name, slug string) (*model.Library, error) {
	if name == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "name is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "slug must be lowercase letters, digits and hyphens")
	}

	library, err := s.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	updated := *library
	updated.Name = name
	updated.Slug = slug
	updated.UpdatedAt = time.Now()
	updated.Version = library.Version + 1

	if err := s.libraries.UpdateLibrary(ctx, &updated); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, apperrors.New(apperrors.CodeConflict, "library was modified concurrently, retry")
		}
		return nil, fmt.Errorf("failed to update library: %w", err)
	}

	if err := s.cache.Delete(ctx, s.libraryCacheKey(libraryID)); err != nil {
		s.logger.Warn("failed to invalidate library cache", zap.Error(err))
	}

	s.logger.Info("library updated", zap.String("library_id", libraryID))
	return &updated, nil
}

// Member pairs a membership with its user for listings.
type Member struct {
	UserID   string
	Email    string
	Name     string
	Role     model.Role
	JoinedAt time.Time
}

// ListMembers lists the members of a library.
func (s *LibraryService) ListMembers(ctx context.Context, libraryID string) ([]*Member, error) {
	memberships, err := s.libraries.ListMemberships(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	members := make([]*Member, 0, len(memberships))
	for _, m := range memberships {
		user, err := s.users.GetUser(ctx, m.UserID)
		if err != nil {
			s.logger.Warn("membership without user", zap.String("user_id", m.UserID), zap.Error(err))
			continue
		}
		members = append(members, &Member{
			UserID:   user.ID,
			Email:    user.Email,
			Name:     user.Name,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		})
	}

	return members, nil
}

// GetMembership loads a user's membership in a library.
func (s *LibraryService) GetMembership(ctx context.Context, libraryID, userID string) (*model.Membership, error) {
	m, err := s.libraries.GetMembership(ctx, libraryID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeForbidden, "not a member of this library")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return m, nil
}

// InviteMember issues a signed invite token and mails it.
func (s *LibraryService) InviteMember(ctx context.Context, libraryID, email string, role model.Role) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return apperrors.New(apperrors.CodeInvalidRequest, "invalid email address")
	}
	if !role.Valid() {
		return apperrors.New(apperrors.CodeInvalidRequest, "role must be library_admin or reader")
	}

	library, err := s.GetLibrary(ctx, libraryID)
	if err != nil {
		return err
	}

	// Already a member? Refuse so the invite flow stays single-purpose.
	if user, err := s.users.GetUserByEmail(ctx, email); err == nil {
		if _, err := s.libraries.GetMembership(ctx, libraryID, user.ID); err == nil {
			return apperrors.New(apperrors.CodeAlreadyExists, "user is already a member")
		}
	}

	inviteToken, err := s.invites.Issue(libraryID, email, role)
	if err != nil {
		return fmt.Errorf("failed to issue invite token: %w", err)
	}

	acceptURL := fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, inviteToken)
	expiresAt := time.Now().Add(s.invites.TTL())

	if err := s.mailer.Send(appmail.Invite(email, library.Name, string(role), acceptURL, expiresAt)); err != nil {
		return fmt.Errorf("failed to send invite: %w", err)
	}

	s.logger.Info("invitation sent",
		zap.String("library_id", libraryID),
		zap.String("email", email),
		zap.String("role", string(role)))

	return nil
}

// AcceptInvite redeems an invite token for the authenticated user. The token
// email must match the session email; invites are not transferable.
func (s *LibraryService) AcceptInvite(ctx context.Context, userID, userEmail, tokenString string) (*model.Membership, error) {
	claims, err := s.invites.Parse(tokenString)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInviteInvalid, "invalid or expired invitation")
	}

	if claims.Email != userEmail {
		return nil, apperrors.New(apperrors.CodeInviteInvalid, "invitation was issued for a different email")
	}

	if _, err := s.libraries.GetMembership(ctx, claims.LibraryID, userID); err == nil {
		return nil, apperrors.New(apperrors.CodeAlreadyExists, "already a member of this library")
	}

	membership := &model.Membership{
		LibraryID: claims.LibraryID,
		UserID:    userID,
		Role:      claims.Role,
		CreatedAt: time.Now(),
	}

	if err := s.libraries.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	s.logger.Info("invitation accepted",
		zap.String("library_id", claims.LibraryID),
		zap.String("user_id", userID))

	return membership, nil
}

// UpdateMemberRole changes a member's role, refusing to demote the last
// admin.
func (s *LibraryService) UpdateMemberRole(ctx context.Context, libraryID, userID string, role model.Role) error {
	if !role.Valid() {
		return apperrors.New(apperrors.CodeInvalidRequest, "role must be library_admin or reader")
	}

	current, err := s.GetMembership(ctx, libraryID, userID)
	if err != nil {
		return err
	}

	if current.Role == model.RoleLibraryAdmin && role != model.RoleLibraryAdmin {
		if err := s.ensureNotLastAdmin(ctx, libraryID, userID); err != nil {
			return err
		}
	}

	if err := s.libraries.UpdateMembershipRole(ctx, libraryID, userID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "member not found")
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.Info("member role updated",
		zap.String("library_id", libraryID),
		zap.String("user_id", userID),
		zap.String("role", string(role)))

	return nil
}

// RemoveMember removes a member, refusing to remove the last admin.
func (s *LibraryService) RemoveMember(ctx context.Context, libraryID, userID string) error {
	current, err := s.GetMembership(ctx, libraryID, userID)
	if err != nil {
		return err
	}

	if current.Role == model.RoleLibraryAdmin {
		if err := s.ensureNotLastAdmin(ctx, libraryID, userID); err != nil {
			return err
		}
	}

	if err := s.libraries.DeleteMembership(ctx, libraryID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "member not found")
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.logger.Info("member removed",
		zap.String("library_id", libraryID),
		zap.String("user_id", userID))

	return nil
}

func (s *LibraryService) ensureNotLastAdmin(ctx context.Context, libraryID, userID string) error {
	memberships, err := s.libraries.ListMemberships(ctx, libraryID)
	if err != nil {
		return fmt.Errorf("failed to list memberships: %w", err)
	}

	for _, m := range memberships {
		if m.Role == model.RoleLibraryAdmin && m.UserID != userID {
			return nil
		}
	}

	return apperrors.New(apperrors.CodeConflict, "a library must keep at least one admin")
}

func (s *LibraryService) libraryCacheKey(libraryID string) string {
	return fmt.Sprintf("library:%s", libraryID)
}
