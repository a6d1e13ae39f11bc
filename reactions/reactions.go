package reactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/authorization"
)

const ServiceName = "github.com/nasermirzaei89/reelthread/reactions"

const (
	ActionToggleLike = "toggleLike"
	ActionGetLikes   = "getLikes"
)

type Service struct {
	likeRepo    LikeRepository
	authzClient *authorization.Client
}

func NewService(likeRepo LikeRepository, authzClient *authorization.Client) *Service {
	return &Service{
		likeRepo:    likeRepo,
		authzClient: authzClient,
	}
}

type LikeSummary struct {
	TargetType TargetType
	TargetID   string
	Count      int
	Liked      bool
}

// ToggleLike likes the target for userID, or takes the like back if it was already there. It reports whether the
// target is liked afterwards.
func (svc *Service) ToggleLike(ctx context.Context, targetType TargetType, targetID, userID string) (bool, error) {
	if !targetType.IsValid() {
		return false, &InvalidTargetTypeError{TargetType: targetType}
	}

	object := string(targetType) + ":" + targetID

	err := svc.authzClient.CheckAccess(ctx, ServiceName, object, ActionToggleLike)
	if err != nil {
		return false, fmt.Errorf("failed to check authorization: %w", err)
	}

	subject := authcontext.GetSubject(ctx)
	if subject != userID {
		return false, &authorization.AccessDeniedError{
			Subject: subject,
			Domain:  ServiceName,
			Object:  object,
			Action:  ActionToggleLike,
		}
	}

	existing, err := svc.likeRepo.Find(ctx, targetType, targetID, userID)
	if err != nil {
		var notFoundErr *LikeNotFoundError
		if !errors.As(err, &notFoundErr) {
			return false, fmt.Errorf("failed to get existing like: %w", err)
		}
	}

	if existing != nil {
		err = svc.likeRepo.Delete(ctx, targetType, targetID, userID)
		if err != nil {
			return false, fmt.Errorf("failed to remove like: %w", err)
		}

		return false, nil
	}

	err = svc.likeRepo.Insert(ctx, &Like{
		TargetType: targetType,
		TargetID:   targetID,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert like: %w", err)
	}

	return true, nil
}

func (svc *Service) GetLikes(
	ctx context.Context,
	targetType TargetType,
	targetID string,
	viewerID *string,
) (*LikeSummary, error) {
	if !targetType.IsValid() {
		return nil, &InvalidTargetTypeError{TargetType: targetType}
	}

	err := svc.authzClient.CheckAccess(ctx, ServiceName, string(targetType)+":"+targetID, ActionGetLikes)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	count, err := svc.likeRepo.Count(ctx, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	liked := false

	if viewerID != nil && *viewerID != "" {
		like, err := svc.likeRepo.Find(ctx, targetType, targetID, *viewerID)
		if err != nil {
			var notFoundErr *LikeNotFoundError
			if !errors.As(err, &notFoundErr) {
				return nil, fmt.Errorf("failed to get viewer like: %w", err)
			}
		}

		liked = like != nil
	}

	return &LikeSummary{
		TargetType: targetType,
		TargetID:   targetID,
		Count:      count,
		Liked:      liked,
	}, nil
}
