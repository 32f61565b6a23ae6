package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bookledger/backend/internal/config"
	"github.com/bookledger/backend/internal/models"
)

func testOutboxConfig() *config.LibraryConfig {
	return &config.LibraryConfig{
		NotificationQueue: "notifications:outbox",
		QueuePollTimeout:  time.Second,
	}
}

func borrowNotification() models.Notification {
	return models.Notification{
		ID:        "5f1c1c3e-8d7a-4a51-9d55-1f0f3c9b2a10",
		Recipient: "reader@example.com",
		Template:  models.TemplateBorrow,
		Subject:   "Borrow",
		Fields:    map[string]string{"user": "reader", "book": "Dune", "price": "20.00", "balance": "80.00"},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifier_Render(t *testing.T) {
	notifier, err := NewNotifier(&MockMailer{})
	require.NoError(t, err)

	body, err := notifier.Render(borrowNotification())
	require.NoError(t, err)
	assert.Contains(t, body, "Hello reader,")
	assert.Contains(t, body, "<strong>Dune</strong> for 20.00")
	assert.Contains(t, body, "<strong>80.00</strong>")

	_, err = notifier.Render(models.Notification{Template: "unknown"})
	assert.Error(t, err)
}

func TestNotifier_RenderEscapesFields(t *testing.T) {
	notifier, err := NewNotifier(&MockMailer{})
	require.NoError(t, err)

	n := borrowNotification()
	n.Fields["book"] = "<script>alert(1)</script>"
	body, err := notifier.Render(n)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRedisOutbox_Publish(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	outbox := NewRedisOutbox(redisClient, testOutboxConfig(), nil)

	n := borrowNotification()
	payload, err := notificationJSON.Marshal(n)
	require.NoError(t, err)

	redisMock.ExpectRPush("notifications:outbox", payload).SetVal(1)
	assert.NoError(t, outbox.Publish(context.Background(), n))

	redisMock.ExpectRPush("notifications:outbox", payload).SetErr(errors.New("connection refused"))
	assert.Error(t, outbox.Publish(context.Background(), n))

	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRedisOutbox_ProcessOne(t *testing.T) {
	ctx := context.Background()
	n := borrowNotification()
	payload, err := notificationJSON.MarshalToString(n)
	require.NoError(t, err)

	t.Run("delivers queued notification", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		mailer := &MockMailer{}
		mailer.On("Send", mock.Anything, "reader@example.com", "Borrow", mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Dune")
		})).Return(nil).Once()
		notifier, err := NewNotifier(mailer)
		require.NoError(t, err)
		outbox := NewRedisOutbox(redisClient, testOutboxConfig(), notifier)

		redisMock.ExpectBLPop(time.Second, "notifications:outbox").SetVal([]string{"notifications:outbox", payload})

		got, err := outbox.ProcessOne(ctx)
		assert.NoError(t, err)
		assert.True(t, got)
		mailer.AssertExpectations(t)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("empty queue", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		outbox := NewRedisOutbox(redisClient, testOutboxConfig(), nil)

		redisMock.ExpectBLPop(time.Second, "notifications:outbox").RedisNil()

		got, err := outbox.ProcessOne(ctx)
		assert.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("delivery failure is reported", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		mailer := &MockMailer{}
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("550 mailbox unavailable"))
		notifier, err := NewNotifier(mailer)
		require.NoError(t, err)
		outbox := NewRedisOutbox(redisClient, testOutboxConfig(), notifier)

		redisMock.ExpectBLPop(time.Second, "notifications:outbox").SetVal([]string{"notifications:outbox", payload})

		got, err := outbox.ProcessOne(ctx)
		assert.True(t, got)
		assert.ErrorContains(t, err, "550 mailbox unavailable")
	})

	t.Run("malformed payload", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		outbox := NewRedisOutbox(redisClient, testOutboxConfig(), nil)

		redisMock.ExpectBLPop(time.Second, "notifications:outbox").SetVal([]string{"notifications:outbox", "{not json"})

		_, err := outbox.ProcessOne(ctx)
		assert.ErrorContains(t, err, "decode notification")
	})
}

func TestInlinePublisher_Publish(t *testing.T) {
	delivered := make(chan string, 1)
	mailer := &MockMailer{}
	mailer.On("Send", mock.Anything, "reader@example.com", "Borrow", mock.Anything).
		Run(func(args mock.Arguments) { delivered <- args.String(2) }).
		Return(nil)
	notifier, err := NewNotifier(mailer)
	require.NoError(t, err)

	publisher := NewInlinePublisher(notifier)
	n := borrowNotification()
	n.ID = ""
	require.NoError(t, publisher.Publish(context.Background(), n))

	select {
	case subject := <-delivered:
		assert.Equal(t, "Borrow", subject)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestStamp(t *testing.T) {
	var n models.Notification
	stamp(&n)
	assert.Len(t, n.ID, 36)
	assert.False(t, n.CreatedAt.IsZero())

	kept := borrowNotification()
	stamp(&kept)
	assert.Equal(t, borrowNotification().ID, kept.ID)
}
