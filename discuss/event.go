package discuss

import (
	"context"
	"time"
)

type EventType string

const (
	EventCommentCreated EventType = "comment.created"
	EventCommentDeleted EventType = "comment.deleted"
)

type CommentEvent struct {
	Type       EventType  `json:"type"`
	CommentID  string     `json:"commentId"`
	TargetType TargetType `json:"targetType"`
	TargetID   string     `json:"targetId"`
	AuthorID   string     `json:"authorId"`
	ReplyTo    *string    `json:"replyTo,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

func newCommentEvent(eventType EventType, comment *Comment) CommentEvent {
	return CommentEvent{
		Type:       eventType,
		CommentID:  comment.ID,
		TargetType: comment.TargetType,
		TargetID:   comment.TargetID,
		AuthorID:   comment.AuthorID,
		ReplyTo:    comment.ReplyTo,
		OccurredAt: time.Now().UTC(),
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event CommentEvent) (err error)
}
