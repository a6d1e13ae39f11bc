package profiles

import (
	"context"
	"fmt"
	"time"
)

type Profile struct {
	ID        string
	Username  string
	AvatarURL string
	Email     string
	PushToken string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (profile *Profile) HasPushToken() bool {
	return profile.PushToken != ""
}

type ProfileRepository interface {
	Find(ctx context.Context, id string) (profile *Profile, err error)
	Upsert(ctx context.Context, profile *Profile) (err error)
	UpdatePushToken(ctx context.Context, id, pushToken string, updatedAt time.Time) (err error)
}

type ProfileNotFoundError struct {
	ID string
}

func (err ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", err.ID)
}

type ValidationError struct {
	Field string
	Rule  string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("field %q failed on the %q rule", err.Field, err.Rule)
}
