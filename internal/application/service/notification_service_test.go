package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/event"
)

func reportEvent(t event.Type, actorID int64, extra map[string]interface{}) *event.Event {
	payload := map[string]interface{}{
		event.PayloadCreatedBy:     int64(1),
		event.PayloadSubdistrictID: int64(3),
		event.PayloadCityID:        int64(1),
		event.PayloadPeriod:        "2024-05",
	}
	for k, v := range extra {
		payload[k] = v
	}
	return event.NewEvent(t, 7, actorID, payload)
}

func TestNotificationService_Routing(t *testing.T) {
	tests := []struct {
		name     string
		evt      *event.Event
		want     port.Recipient
		contains string
	}{
		{
			name:     "submitted goes to subdistrict reviewers",
			evt:      reportEvent(event.TypeReportSubmitted, 1, nil),
			want:     port.Recipient{Role: entity.RoleSubdistrictAdmin, SubdistrictID: 3},
			contains: "awaits subdistrict review",
		},
		{
			name:     "advanced goes to city reviewers",
			evt:      reportEvent(event.TypeReportAdvanced, 20, nil),
			want:     port.Recipient{Role: entity.RoleCityAdmin, CityID: 1},
			contains: "awaits city review",
		},
		{
			name:     "approved goes to creator",
			evt:      reportEvent(event.TypeReportApproved, 30, nil),
			want:     port.Recipient{ActorID: 1, Role: entity.RoleBranchUser},
			contains: "was approved",
		},
		{
			name:     "rejected carries the reason",
			evt:      reportEvent(event.TypeReportRejected, 30, map[string]interface{}{event.PayloadReason: "stock count missing"}),
			want:     port.Recipient{ActorID: 1, Role: entity.RoleBranchUser},
			contains: "stock count missing",
		},
		{
			name:     "reviewer comment goes to creator",
			evt:      reportEvent(event.TypeReportCommented, 20, nil),
			want:     port.Recipient{ActorID: 1, Role: entity.RoleBranchUser},
			contains: "New comment on report #7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockMessageSender{}
			svc := NewNotificationService(sender, &mockLogger{})

			require.NoError(t, svc.HandleEvent(context.Background(), tt.evt))
			require.Len(t, sender.sent, 1)
			assert.Equal(t, tt.want, sender.sent[0])
			assert.Contains(t, sender.messages[0], tt.contains)
		})
	}
}

func TestNotificationService_Silent(t *testing.T) {
	for _, evt := range []*event.Event{
		reportEvent(event.TypeReportCommented, 1, nil),
		reportEvent(event.TypeReportCreated, 1, nil),
		reportEvent(event.TypeReportEdited, 1, nil),
		reportEvent(event.TypeReportDeleted, 1, nil),
	} {
		sender := &mockMessageSender{}
		svc := NewNotificationService(sender, &mockLogger{})

		require.NoError(t, svc.HandleEvent(context.Background(), evt))
		assert.Empty(t, sender.sent, evt.Type)
	}
}

func TestNotificationService_SendFailure(t *testing.T) {
	sender := &mockMessageSender{
		sendFunc: func(ctx context.Context, to port.Recipient, content string) error {
			return errors.New("smtp unavailable")
		},
	}
	svc := NewNotificationService(sender, &mockLogger{})

	err := svc.HandleEvent(context.Background(), reportEvent(event.TypeReportApproved, 30, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp unavailable")
}
