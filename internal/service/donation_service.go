package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	appmail "github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

// DonationService manages donation offers.
type DonationService struct {
	donations     store.DonationStore
	users         store.UserStore
	notifications *NotificationService
	mailer        appmail.Sender
	logger        *zap.Logger
}

// NewDonationService creates a new donation service.
func NewDonationService(
	donations store.DonationStore,
	users store.UserStore,
	notifications *NotificationService,
	mailer appmail.Sender,
	logger *zap.Logger,
) *DonationService {
	return &DonationService{
		donations:     donations,
		users:         users,
		notifications: notifications,
		mailer:        mailer,
		logger:        logger,
	}
}

// Offer records a member's donation offer.
func (s *DonationService) Offer(ctx context.Context, libraryID, userID, title, author, isbn string) (*model.BookDonation, error) {
	if title == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "title is required")
	}

	d := &model.BookDonation{
		ID:        uuid.New().String(),
		LibraryID: libraryID,
		UserID:    userID,
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		Status:    model.DonationStatusOffered,
		CreatedAt: time.Now(),
	}

	if err := s.donations.CreateDonation(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	s.logger.Info("donation offered",
		zap.String("library_id", libraryID),
		zap.String("donation_id", d.ID),
		zap.String("title", title))

	return d, nil
}

// List returns donations in a library, optionally filtered by status.
func (s *DonationService) List(ctx context.Context, libraryID string, status model.DonationStatus) ([]*model.BookDonation, error) {
	donations, err := s.donations.ListDonations(ctx, libraryID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

// Decide accepts or declines an offered donation. Acceptance puts the copy
// into the catalog atomically with the status change.
func (s *DonationService) Decide(ctx context.Context, libraryID, donationID string, accept bool) (*model.BookDonation, error) {
	now := time.Now()

	var err error
	if accept {
		err = s.donations.AcceptDonation(ctx, libraryID, donationID, uuid.New().String(), now)
	} else {
		err = s.donations.DeclineDonation(ctx, libraryID, donationID, now)
	}
	if errors.Is(err, store.ErrNotFound) {
		// Either the donation does not exist or it was already decided.
		if _, getErr := s.donations.GetDonation(ctx, libraryID, donationID); getErr == nil {
			return nil, apperrors.New(apperrors.CodeConflict, "donation is already decided")
		}
		return nil, apperrors.New(apperrors.CodeNotFound, "donation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decide donation: %w", err)
	}

	d, err := s.donations.GetDonation(ctx, libraryID, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload donation: %w", err)
	}

	s.logger.Info("donation decided",
		zap.String("library_id", libraryID),
		zap.String("donation_id", donationID),
		zap.String("status", string(d.Status)))

	s.notifyDonor(ctx, d)

	return d, nil
}

func (s *DonationService) notifyDonor(ctx context.Context, d *model.BookDonation) {
	s.notifications.Notify(ctx, d.LibraryID, d.UserID,
		fmt.Sprintf("Your donation of %q was %s", d.Title, d.Status))

	user, err := s.users.GetUser(ctx, d.UserID)
	if err != nil {
		s.logger.Warn("failed to load donor", zap.Error(err))
		return
	}

	if err := s.mailer.Send(appmail.Decision(user.Email, "donation", d.Title, string(d.Status))); err != nil {
		s.logger.Warn("failed to send decision mail", zap.Error(err))
	}
}
