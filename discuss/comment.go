package discuss

import (
	"context"
	"fmt"
	"time"
)

type TargetType string

const (
	TargetTypeVideo TargetType = "video"
	TargetTypePost  TargetType = "post"
)

func (targetType TargetType) IsValid() bool {
	switch targetType {
	case TargetTypeVideo, TargetTypePost:
		return true
	default:
		return false
	}
}

// Target is the video or post a comment thread hangs off.
type Target struct {
	Type TargetType `validate:"oneof=video post"`
	ID   string     `validate:"required"`
}

func (target Target) String() string {
	return string(target.Type) + ":" + target.ID
}

type Comment struct {
	ID         string
	TargetType TargetType
	TargetID   string
	AuthorID   string
	ReplyTo    *string
	Content    string
	CreatedAt  time.Time
}

func (comment *Comment) Target() Target {
	return Target{Type: comment.TargetType, ID: comment.TargetID}
}

func (comment *Comment) IsRoot() bool {
	return comment.ReplyTo == nil || *comment.ReplyTo == ""
}

type CommentRepository interface {
	Insert(ctx context.Context, comment *Comment) (err error)
	Find(ctx context.Context, id string) (comment *Comment, err error)
	List(ctx context.Context, params *ListCommentsParams) (comments []*Comment, err error)
	Count(ctx context.Context, params *ListCommentsParams) (count int, err error)
	Delete(ctx context.Context, id string) (err error)
}

// ListCommentsParams filters comments. Zero values are ignored. ReplyTo selects the direct children of a comment and
// RootsOnly selects comments without a parent.
type ListCommentsParams struct {
	TargetType TargetType
	TargetID   string
	ReplyTo    *string
	RootsOnly  bool
}

type CommentNotFoundError struct {
	ID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment %q not found", err.ID)
}

type InvalidParentError struct {
	ParentID string
	Reason   string
	Err      error
}

func (err InvalidParentError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("invalid parent comment %q: %s: %v", err.ParentID, err.Reason, err.Err)
	}

	return fmt.Sprintf("invalid parent comment %q: %s", err.ParentID, err.Reason)
}

func (err InvalidParentError) Unwrap() error {
	return err.Err
}

type ValidationError struct {
	Field string
	Rule  string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("field %q failed on the %q rule", err.Field, err.Rule)
}
