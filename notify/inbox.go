package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const KindCommentReply = "comment_reply"

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}

// InboxRepository keeps the newest notifications of a user first.
type InboxRepository interface {
	Push(ctx context.Context, notification *Notification) (err error)
	List(ctx context.Context, userID string, limit int) (notifications []*Notification, err error)
	MarkRead(ctx context.Context, userID, id string) (err error)
}

type NotificationNotFoundError struct {
	UserID string
	ID     string
}

func (err NotificationNotFoundError) Error() string {
	return fmt.Sprintf("notification %q of user %q not found", err.ID, err.UserID)
}

type Inbox struct {
	repo InboxRepository
}

func NewInbox(repo InboxRepository) *Inbox {
	return &Inbox{repo: repo}
}

func (inbox *Inbox) Record(ctx context.Context, userID, kind string, msg Message) (*Notification, error) {
	notification := &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      msg.Data,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	err := inbox.repo.Push(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to push notification: %w", err)
	}

	return notification, nil
}

// List returns up to limit notifications, newest first. Non positive limits fall back to DefaultListLimit.
func (inbox *Inbox) List(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	limit = min(limit, MaxListLimit)

	notifications, err := inbox.repo.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

func (inbox *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	err := inbox.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	return nil
}
