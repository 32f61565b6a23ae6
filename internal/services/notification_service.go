package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/bookledger/backend/internal/config"
	"github.com/bookledger/backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var notificationJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Mailer delivers one rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Notifier renders notification templates and hands them to a Mailer.
type Notifier struct {
	mailer    Mailer
	templates *template.Template
}

func NewNotifier(mailer Mailer) (*Notifier, error) {
	tmpl, err := template.New("mail").Option("missingkey=zero").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Notifier{mailer: mailer, templates: tmpl}, nil
}

func (n *Notifier) Render(notification models.Notification) (string, error) {
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, notification.Template+".html", notification.Fields); err != nil {
		return "", fmt.Errorf("render %s: %w", notification.Template, err)
	}
	return buf.String(), nil
}

func (n *Notifier) Deliver(ctx context.Context, notification models.Notification) error {
	body, err := n.Render(notification)
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, notification.Recipient, notification.Subject, body); err != nil {
		return fmt.Errorf("send %s to %s: %w", notification.Template, notification.Recipient, err)
	}
	slog.Info("notification delivered", "id", notification.ID, "template", notification.Template)
	return nil
}

// RedisOutbox queues notifications on a Redis list and delivers them from
// worker goroutines. Delivery is attempted once; failures are logged.
type RedisOutbox struct {
	redis       *redis.Client
	queue       string
	pollTimeout time.Duration
	notifier    *Notifier
}

func NewRedisOutbox(redisClient *redis.Client, cfg *config.LibraryConfig, notifier *Notifier) *RedisOutbox {
	return &RedisOutbox{
		redis:       redisClient,
		queue:       cfg.NotificationQueue,
		pollTimeout: cfg.QueuePollTimeout,
		notifier:    notifier,
	}
}

func (o *RedisOutbox) Publish(ctx context.Context, n models.Notification) error {
	stamp(&n)
	data, err := notificationJSON.Marshal(n)
	if err != nil {
		return err
	}
	return o.redis.RPush(ctx, o.queue, data).Err()
}

// Run starts workers and blocks until ctx is done and they have exited.
func (o *RedisOutbox) Run(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for ctx.Err() == nil {
				if _, err := o.ProcessOne(ctx); err != nil && ctx.Err() == nil {
					slog.Error("notification worker", "worker", worker, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
}

// ProcessOne waits up to the poll timeout for one queued notification and
// delivers it. It reports false when the queue stayed empty.
func (o *RedisOutbox) ProcessOne(ctx context.Context) (bool, error) {
	res, err := o.redis.BLPop(ctx, o.pollTimeout, o.queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pop %s: %w", o.queue, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected BLPOP reply of %d items", len(res))
	}

	var n models.Notification
	if err := notificationJSON.UnmarshalFromString(res[1], &n); err != nil {
		return true, fmt.Errorf("decode notification: %w", err)
	}
	if err := o.notifier.Deliver(ctx, n); err != nil {
		return true, err
	}
	return true, nil
}

const inlineDeliveryTimeout = 30 * time.Second

// InlinePublisher delivers from a goroutine when no Redis is configured.
type InlinePublisher struct {
	notifier *Notifier
	timeout  time.Duration
}

func NewInlinePublisher(notifier *Notifier) *InlinePublisher {
	return &InlinePublisher{notifier: notifier, timeout: inlineDeliveryTimeout}
}

func (p *InlinePublisher) Publish(ctx context.Context, n models.Notification) error {
	stamp(&n)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.notifier.Deliver(ctx, n); err != nil {
			slog.Error("inline notification delivery failed", "id", n.ID, "error", err)
		}
	}()
	return nil
}

func stamp(n *models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
}
