package discuss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const ServiceName = "github.com/nasermirzaei89/reelthread/discuss"

type Service interface {
	CreateComment(ctx context.Context, req CreateCommentRequest) (comment *Comment, err error)
	GetComment(ctx context.Context, id string) (comment *Comment, err error)
	ListComments(ctx context.Context, target Target) (comments []*Comment, err error)
	ListReplies(ctx context.Context, parentID string) (comments []*Comment, err error)
	CountReplies(ctx context.Context, parentID string) (count int, err error)
	CountComments(ctx context.Context, target Target) (count int, err error)
	DeleteComment(ctx context.Context, id string) (err error)
}

type BaseService struct {
	commentRepo CommentRepository
	publisher   EventPublisher
	validate    *validator.Validate
}

var _ Service = (*BaseService)(nil)

// NewService returns the storage backed Service. publisher may be nil.
func NewService(commentRepo CommentRepository, publisher EventPublisher) *BaseService {
	return &BaseService{
		commentRepo: commentRepo,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

type CreateCommentRequest struct {
	Target   Target
	AuthorID string `validate:"required"`
	Content  string `validate:"required,max=2000"`
	ReplyTo  string
}

func (svc *BaseService) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	req.Content = strings.TrimSpace(req.Content)

	err := svc.validateStruct(req)
	if err != nil {
		return nil, err
	}

	var replyTo *string

	if req.ReplyTo != "" {
		parent, err := svc.commentRepo.Find(ctx, req.ReplyTo)
		if err != nil {
			var notFoundErr *CommentNotFoundError
			if errors.As(err, &notFoundErr) {
				return nil, &InvalidParentError{ParentID: req.ReplyTo, Reason: "parent does not exist", Err: err}
			}

			return nil, fmt.Errorf("failed to find parent comment: %w", err)
		}

		if parent.Target() != req.Target {
			return nil, &InvalidParentError{ParentID: req.ReplyTo, Reason: "parent belongs to " + parent.Target().String()}
		}

		replyTo = &parent.ID
	}

	comment := &Comment{
		ID:         uuid.NewString(),
		TargetType: req.Target.Type,
		TargetID:   req.Target.ID,
		AuthorID:   req.AuthorID,
		ReplyTo:    replyTo,
		Content:    req.Content,
		CreatedAt:  time.Now().UTC(),
	}

	err = svc.commentRepo.Insert(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	svc.publish(ctx, newCommentEvent(EventCommentCreated, comment))

	return comment, nil
}

func (svc *BaseService) GetComment(ctx context.Context, id string) (*Comment, error) {
	comment, err := svc.commentRepo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	return comment, nil
}

func (svc *BaseService) ListComments(ctx context.Context, target Target) ([]*Comment, error) {
	err := svc.validateStruct(target)
	if err != nil {
		return nil, err
	}

	comments, err := svc.commentRepo.List(ctx, &ListCommentsParams{
		TargetType: target.Type,
		TargetID:   target.ID,
		RootsOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

func (svc *BaseService) ListReplies(ctx context.Context, parentID string) ([]*Comment, error) {
	comments, err := svc.commentRepo.List(ctx, &ListCommentsParams{ReplyTo: &parentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}

	return comments, nil
}

func (svc *BaseService) CountReplies(ctx context.Context, parentID string) (int, error) {
	count, err := svc.commentRepo.Count(ctx, &ListCommentsParams{ReplyTo: &parentID})
	if err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}

	return count, nil
}

func (svc *BaseService) CountComments(ctx context.Context, target Target) (int, error) {
	err := svc.validateStruct(target)
	if err != nil {
		return 0, err
	}

	count, err := svc.commentRepo.Count(ctx, &ListCommentsParams{
		TargetType: target.Type,
		TargetID:   target.ID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return count, nil
}

// DeleteComment removes exactly one comment. Its replies are left in place.
func (svc *BaseService) DeleteComment(ctx context.Context, id string) error {
	comment, err := svc.commentRepo.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}

	err = svc.commentRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	svc.publish(ctx, newCommentEvent(EventCommentDeleted, comment))

	return nil
}

func (svc *BaseService) publish(ctx context.Context, event CommentEvent) {
	if svc.publisher == nil {
		return
	}

	err := svc.publisher.Publish(ctx, event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish comment event",
			"type", event.Type, "commentId", event.CommentID, "error", err)
	}
}

func (svc *BaseService) validateStruct(s any) error {
	err := svc.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return &ValidationError{Field: validationErrs[0].Namespace(), Rule: validationErrs[0].Tag()}
	}

	return fmt.Errorf("failed to validate: %w", err)
}
