package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/authorization"
)

const ServiceName = "github.com/nasermirzaei89/reelthread/profiles"

const (
	ActionRegister        = "register"
	ActionUpdatePushToken = "updatePushToken"
)

type Service struct {
	profileRepo ProfileRepository
	authzClient *authorization.Client
	validate    *validator.Validate
}

func NewService(profileRepo ProfileRepository, authzClient *authorization.Client) *Service {
	return &Service{
		profileRepo: profileRepo,
		authzClient: authzClient,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

type RegisterRequest struct {
	ID        string `validate:"required"`
	Username  string `validate:"required,max=64"`
	AvatarURL string `validate:"omitempty,url"`
	Email     string `validate:"omitempty,email"`
}

// Register creates or refreshes the caller's profile and makes them a member of the authenticated group.
func (svc *Service) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	err := checkSelf(ctx, req.ID, ActionRegister)
	if err != nil {
		return nil, err
	}

	req.Username = strings.TrimSpace(req.Username)

	err = svc.validate.Struct(req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return nil, &ValidationError{Field: validationErrs[0].Field(), Rule: validationErrs[0].Tag()}
		}

		return nil, fmt.Errorf("failed to validate request: %w", err)
	}

	now := time.Now().UTC()

	profile := &Profile{
		ID:        req.ID,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		Email:     req.Email,
		PushToken: "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := svc.profileRepo.Find(ctx, req.ID)
	if err != nil {
		var notFoundErr *ProfileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to find profile: %w", err)
		}
	}

	if existing != nil {
		profile.CreatedAt = existing.CreatedAt
		profile.PushToken = existing.PushToken
	}

	err = svc.profileRepo.Upsert(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	err = svc.authzClient.AddToGroup(ctx, profile.ID, authcontext.Authenticated)
	if err != nil {
		return nil, fmt.Errorf("failed to add profile to authenticated group: %w", err)
	}

	return profile, nil
}

func (svc *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	profile, err := svc.profileRepo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

func (svc *Service) GetUsername(ctx context.Context, id string) (string, error) {
	profile, err := svc.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}

	return profile.Username, nil
}

// UpdatePushToken stores the device token used for push notifications. An unchanged token is not written again.
func (svc *Service) UpdatePushToken(ctx context.Context, id, pushToken string) error {
	err := checkSelf(ctx, id, ActionUpdatePushToken)
	if err != nil {
		return err
	}

	profile, err := svc.GetProfile(ctx, id)
	if err != nil {
		return err
	}

	pushToken = strings.TrimSpace(pushToken)
	if profile.PushToken == pushToken {
		return nil
	}

	err = svc.profileRepo.UpdatePushToken(ctx, id, pushToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}

	return nil
}

func checkSelf(ctx context.Context, id, action string) error {
	subject := authcontext.GetSubject(ctx)
	if subject == authcontext.Anonymous || subject != id {
		return &authorization.AccessDeniedError{
			Subject: subject,
			Domain:  ServiceName,
			Object:  id,
			Action:  action,
		}
	}

	return nil
}
