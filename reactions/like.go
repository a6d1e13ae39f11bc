package reactions

import (
	"context"
	"fmt"
	"time"
)

type TargetType string

const (
	TargetTypeComment TargetType = "comment"
	TargetTypeVideo   TargetType = "video"
	TargetTypePost    TargetType = "post"
)

func (targetType TargetType) IsValid() bool {
	switch targetType {
	case TargetTypeComment, TargetTypeVideo, TargetTypePost:
		return true
	default:
		return false
	}
}

type Like struct {
	TargetType TargetType
	TargetID   string
	UserID     string
	CreatedAt  time.Time
}

type LikeRepository interface {
	Find(ctx context.Context, targetType TargetType, targetID string, userID string) (like *Like, err error)
	Insert(ctx context.Context, like *Like) (err error)
	Delete(ctx context.Context, targetType TargetType, targetID string, userID string) (err error)
	Count(ctx context.Context, targetType TargetType, targetID string) (count int, err error)
}

type LikeNotFoundError struct {
	TargetType TargetType
	TargetID   string
	UserID     string
}

func (err LikeNotFoundError) Error() string {
	return fmt.Sprintf("like of user %q on %s:%q not found", err.UserID, err.TargetType, err.TargetID)
}

type InvalidTargetTypeError struct {
	TargetType TargetType
}

func (err InvalidTargetTypeError) Error() string {
	return fmt.Sprintf("invalid target type: %q", err.TargetType)
}
