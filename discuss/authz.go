package discuss

import (
	"context"
	"fmt"

	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/authorization"
)

const (
	ActionCreateComment    = "createComment"
	ActionGetComment       = "getComment"
	ActionListComments     = "listComments"
	ActionListReplies      = "listReplies"
	ActionCountReplies     = "countReplies"
	ActionCountComments    = "countComments"
	ActionDeleteComment    = "deleteComment"
	ActionDeleteAnyComment = "deleteAnyComment"
)

type AuthorizationMiddleware struct {
	authzClient *authorization.Client
	next        Service
}

var _ Service = (*AuthorizationMiddleware)(nil)

func NewAuthorizationMiddleware(authzClient *authorization.Client, next Service) *AuthorizationMiddleware {
	return &AuthorizationMiddleware{
		authzClient: authzClient,
		next:        next,
	}
}

func (mw *AuthorizationMiddleware) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, req.Target.String(), ActionCreateComment)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	// users comment on their own behalf only
	subject := authcontext.GetSubject(ctx)
	if req.AuthorID != subject {
		return nil, &authorization.AccessDeniedError{
			Subject: subject,
			Domain:  ServiceName,
			Object:  req.Target.String(),
			Action:  ActionCreateComment,
		}
	}

	comment, err := mw.next.CreateComment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comment, nil
}

func (mw *AuthorizationMiddleware) GetComment(ctx context.Context, id string) (*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, id, ActionGetComment)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comment, err := mw.next.GetComment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comment, nil
}

func (mw *AuthorizationMiddleware) ListComments(ctx context.Context, target Target) ([]*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, target.String(), ActionListComments)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comments, err := mw.next.ListComments(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comments, nil
}

func (mw *AuthorizationMiddleware) ListReplies(ctx context.Context, parentID string) ([]*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, parentID, ActionListReplies)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comments, err := mw.next.ListReplies(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comments, nil
}

func (mw *AuthorizationMiddleware) CountReplies(ctx context.Context, parentID string) (int, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, parentID, ActionCountReplies)
	if err != nil {
		return 0, fmt.Errorf("failed to check authorization: %w", err)
	}

	count, err := mw.next.CountReplies(ctx, parentID)
	if err != nil {
		return 0, fmt.Errorf("failed to call next method: %w", err)
	}

	return count, nil
}

func (mw *AuthorizationMiddleware) CountComments(ctx context.Context, target Target) (int, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, target.String(), ActionCountComments)
	if err != nil {
		return 0, fmt.Errorf("failed to check authorization: %w", err)
	}

	count, err := mw.next.CountComments(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("failed to call next method: %w", err)
	}

	return count, nil
}

// DeleteComment lets authors remove their own comments. Anyone else needs ActionDeleteAnyComment.
func (mw *AuthorizationMiddleware) DeleteComment(ctx context.Context, id string) error {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, id, ActionDeleteComment)
	if err != nil {
		return fmt.Errorf("failed to check authorization: %w", err)
	}

	comment, err := mw.next.GetComment(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get comment: %w", err)
	}

	err = mw.authzClient.CheckOwnerOrAccess(ctx, comment.AuthorID, ServiceName, id, ActionDeleteAnyComment)
	if err != nil {
		return fmt.Errorf("failed to check authorization: %w", err)
	}

	err = mw.next.DeleteComment(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to call next method: %w", err)
	}

	return nil
}
