package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/entity"
)

func TestChannel(t *testing.T) {
	tests := []struct {
		name string
		to   port.Recipient
		want string
	}{
		{"actor", port.Recipient{ActorID: 7, Role: entity.RoleBranchUser}, "n:actor:7"},
		{"subdistrict", port.Recipient{Role: entity.RoleSubdistrictAdmin, SubdistrictID: 3}, "n:subdistrict:3"},
		{"city", port.Recipient{Role: entity.RoleCityAdmin, CityID: 1}, "n:city:1"},
		{"role only", port.Recipient{Role: entity.RoleSuperAdmin}, "n:super_admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Channel("n", tt.to))
		})
	}
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := NewLogSender(zap.New(core))

	err := sender.SendMessage(context.Background(),
		port.Recipient{Role: entity.RoleCityAdmin, CityID: 2}, "Report #4 awaits city review")
	require.NoError(t, err)

	entries := logs.FilterMessage("Notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "notifications:city:2", fields["channel"])
	assert.Equal(t, "Report #4 awaits city review", fields["content"])
}

func TestLogSender_RejectsEmpty(t *testing.T) {
	sender := NewLogSender(zap.NewNop())
	assert.Error(t, sender.SendMessage(context.Background(), port.Recipient{ActorID: 1}, ""))
	assert.Error(t, sender.SendMessage(context.Background(), port.Recipient{}, "hello"))
}

func TestRedisSender(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	prefix := "test-notifications:" + time.Now().Format(time.RFC3339Nano)
	to := port.Recipient{ActorID: 1, Role: entity.RoleBranchUser}

	sub := rdb.Subscribe(ctx, Channel(prefix, to))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sender := NewRedisSender(rdb, prefix, zap.NewNop())
	require.NoError(t, sender.SendMessage(ctx, to, "Report #1 was approved"))

	select {
	case msg := <-sub.Channel():
		var got Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "Report #1 was approved", got.Content)
		assert.Equal(t, int64(1), got.Recipient.ActorID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}
