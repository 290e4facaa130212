package service

import (
	"context"
	"fmt"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/event"
)

// NotificationService tells the next party in the review chain about a report change
type NotificationService interface {
	// HandleEvent is registered with the dispatcher for report events
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	messageSender port.MessageSender
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(messageSender port.MessageSender, logger Logger) NotificationService {
	return &notificationServiceImpl{
		messageSender: messageSender,
		logger:        logger,
	}
}

// HandleEvent routes an event to its audience; events without one are ignored
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	to, message, ok := s.compose(evt)
	if !ok {
		return nil
	}

	if err := s.messageSender.SendMessage(ctx, to, message); err != nil {
		s.logger.Error("Failed to send notification",
			"error", err,
			"event_type", evt.Type,
			"report_id", evt.ReportID,
		)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent",
		"event_type", evt.Type,
		"report_id", evt.ReportID,
		"recipient_role", to.Role,
		"recipient_actor_id", to.ActorID,
	)
	return nil
}

func (s *notificationServiceImpl) compose(evt *event.Event) (port.Recipient, string, bool) {
	period := evt.GetPayloadString(event.PayloadPeriod)
	creator := port.Recipient{ActorID: evt.GetPayloadInt(event.PayloadCreatedBy), Role: entity.RoleBranchUser}

	switch evt.Type {
	case event.TypeReportSubmitted:
		return port.Recipient{
			Role:          entity.RoleSubdistrictAdmin,
			SubdistrictID: evt.GetPayloadInt(event.PayloadSubdistrictID),
		}, fmt.Sprintf("Report #%d for %s awaits subdistrict review", evt.ReportID, period), true

	case event.TypeReportAdvanced:
		return port.Recipient{
			Role:   entity.RoleCityAdmin,
			CityID: evt.GetPayloadInt(event.PayloadCityID),
		}, fmt.Sprintf("Report #%d for %s awaits city review", evt.ReportID, period), true

	case event.TypeReportApproved:
		return creator, fmt.Sprintf("Report #%d for %s was approved", evt.ReportID, period), true

	case event.TypeReportRejected:
		return creator, fmt.Sprintf("Report #%d for %s was rejected: %s",
			evt.ReportID, period, evt.GetPayloadString(event.PayloadReason)), true

	case event.TypeReportCommented:
		if evt.ActorID == creator.ActorID {
			return port.Recipient{}, "", false
		}
		return creator, fmt.Sprintf("New comment on report #%d for %s", evt.ReportID, period), true

	default:
		return port.Recipient{}, "", false
	}
}
