package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fraatlas/internal/email"
	"fraatlas/internal/featureflags"
	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/notifications"
	"fraatlas/internal/repository"
)

// StatusNotifier is told about every claim status change.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, claim *models.Claim) error
}

// EventPublisher pushes realtime events to a user's connections.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uint, ev notifications.Event) error
}

// NotificationService persists in-app notifications and fans them out over
// pub/sub and, when enabled, email.
type NotificationService struct {
	notifications repository.NotificationRepository
	profiles      repository.ProfileRepository
	publisher     EventPublisher
	mailer        email.Sender
	flags         *featureflags.Manager
	logger        *slog.Logger
}

// NewNotificationService wires the delivery channels. publisher and mailer
// may be nil.
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	profiles repository.ProfileRepository,
	publisher EventPublisher,
	mailer email.Sender,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{
		notifications: notificationRepo,
		profiles:      profiles,
		publisher:     publisher,
		mailer:        mailer,
		flags:         flags,
		logger:        middleware.Component("notification_service"),
	}
}

// NotifyStatusChange records a notification for the claim owner. Realtime
// and email delivery are best-effort.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, claim *models.Claim) error {
	status := string(claim.Status)
	n := &models.Notification{
		UserID:  claim.UserID,
		Title:   "Claim " + statusLabel(status),
		Message: statusNotificationText(claim),
		ClaimID: &claim.ID,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return err
	}

	if s.publisher != nil {
		ev := notifications.Event{
			Type: notifications.EventClaimStatusChanged,
			Payload: map[string]any{
				"notification": n,
				"claim_id":     claim.ID,
				"status":       status,
			},
		}
		if err := s.publisher.PublishEvent(ctx, claim.UserID, ev); err != nil {
			s.logger.WarnContext(ctx, "publish status event failed",
				slog.String("claim_id", claim.ID.String()), slog.Any("error", err))
		}
	}

	if s.mailer != nil && s.flags.Enabled(featureflags.FlagStatusEmails, claim.UserID) {
		s.sendStatusEmail(ctx, claim)
	}
	return nil
}

func (s *NotificationService) sendStatusEmail(ctx context.Context, claim *models.Claim) {
	owner := claim.Applicant
	if owner == nil {
		profile, err := s.profiles.GetByUserID(ctx, claim.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "load claim owner for email failed",
				slog.String("claim_id", claim.ID.String()), slog.Any("error", err))
			return
		}
		owner = profile
	}

	msg := email.StatusEmail{
		To:       owner.Email,
		ClaimID:  claim.ID.String(),
		Status:   string(claim.Status),
		UserName: owner.FullName,
	}
	if claim.Remarks != nil {
		msg.Remarks = *claim.Remarks
	}
	if _, err := s.mailer.SendStatusUpdate(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "status email failed",
			slog.String("claim_id", claim.ID.String()), slog.Any("error", err))
	}
}

// SendEmail delivers an explicit status email on behalf of an official.
func (s *NotificationService) SendEmail(ctx context.Context, msg email.StatusEmail) (*email.SendResult, error) {
	if strings.TrimSpace(msg.To) == "" || strings.TrimSpace(msg.ClaimID) == "" || strings.TrimSpace(msg.Status) == "" {
		return nil, models.NewValidationError("to, claimId and status are required")
	}
	if s.mailer == nil {
		return nil, &models.AppError{Code: models.CodeInternal, Message: "Email service not configured"}
	}

	result, err := s.mailer.SendStatusUpdate(ctx, msg)
	if err != nil {
		if errors.Is(err, email.ErrNotConfigured) {
			return nil, &models.AppError{Code: models.CodeInternal, Message: "Email service not configured", Err: err}
		}
		return nil, models.NewUpstreamError(500, "Failed to send email", err)
	}
	return result, nil
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items  []models.Notification `json:"items"`
	Unread int64                 `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) (*NotificationPage, error) {
	items, err := s.notifications.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

func statusLabel(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

func statusNotificationText(claim *models.Claim) string {
	text := fmt.Sprintf("Your %s claim for %s, %s is now %s. %s",
		claim.ClaimType, claim.Village, claim.District,
		statusLabel(string(claim.Status)), email.StatusMessage(string(claim.Status)))
	if claim.Remarks != nil && strings.TrimSpace(*claim.Remarks) != "" {
		text += " Remarks: " + strings.TrimSpace(*claim.Remarks)
	}
	return text
}
