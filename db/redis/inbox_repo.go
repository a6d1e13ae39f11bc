package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nasermirzaei89/reelthread/notify"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultInboxTTL = 30 * 24 * time.Hour
	inboxMaxLength  = notify.MaxListLimit
)

type InboxRepository struct {
	client *goredis.Client
	ttl    time.Duration
}

var _ notify.InboxRepository = (*InboxRepository)(nil)

func NewInboxRepository(client *goredis.Client, ttl time.Duration) *InboxRepository {
	if ttl <= 0 {
		ttl = DefaultInboxTTL
	}

	return &InboxRepository{client: client, ttl: ttl}
}

func inboxKey(userID string) string {
	return "notif:" + userID
}

func (repo *InboxRepository) Push(ctx context.Context, notification *notify.Notification) error {
	b, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := inboxKey(notification.UserID)

	pipe := repo.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, inboxMaxLength-1)
	pipe.Expire(ctx, key, repo.ttl)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec push pipeline: %w", err)
	}

	return nil
}

func (repo *InboxRepository) List(ctx context.Context, userID string, limit int) ([]*notify.Notification, error) {
	values, err := repo.client.LRange(ctx, inboxKey(userID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	notifications := make([]*notify.Notification, 0, len(values))

	for _, value := range values {
		var notification notify.Notification

		err := json.Unmarshal([]byte(value), &notification)
		if err != nil {
			slog.ErrorContext(ctx, "failed to unmarshal notification", "userId", userID, "error", err)

			continue
		}

		notifications = append(notifications, &notification)
	}

	return notifications, nil
}

// MarkRead rewrites the matching entry in place. The list is watched, so a concurrent push retries the update.
func (repo *InboxRepository) MarkRead(ctx context.Context, userID, id string) error {
	key := inboxKey(userID)

	update := func(tx *goredis.Tx) error {
		values, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to read inbox: %w", err)
		}

		for i, value := range values {
			var notification notify.Notification

			if json.Unmarshal([]byte(value), &notification) != nil || notification.ID != id {
				continue
			}

			if notification.Read {
				return nil
			}

			notification.Read = true

			b, err := json.Marshal(&notification)
			if err != nil {
				return fmt.Errorf("failed to marshal notification: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.LSet(ctx, key, int64(i), b)

				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to update notification: %w", err)
			}

			return nil
		}

		return &notify.NotificationNotFoundError{UserID: userID, ID: id}
	}

	for range 3 {
		err := repo.client.Watch(ctx, update, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("failed to mark notification as read: %w", goredis.TxFailedErr)
}
