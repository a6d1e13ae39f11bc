package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/reelthread/profiles"
)

const tableProfiles = "profiles"

type ProfileRepository struct {
	db *sql.DB
}

var _ profiles.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const (
	profileFieldID        = "id"
	profileFieldUsername  = "username"
	profileFieldAvatarURL = "avatar_url"
	profileFieldEmail     = "email"
	profileFieldPushToken = "push_token"
	profileFieldCreatedAt = "created_at"
	profileFieldUpdatedAt = "updated_at"
)

func profileColumns() []string {
	return []string{
		profileFieldID,
		profileFieldUsername,
		profileFieldAvatarURL,
		profileFieldEmail,
		profileFieldPushToken,
		profileFieldCreatedAt,
		profileFieldUpdatedAt,
	}
}

func scanProfile(row sq.RowScanner) (*profiles.Profile, error) {
	var profile profiles.Profile

	err := row.Scan(
		&profile.ID,
		&profile.Username,
		&profile.AvatarURL,
		&profile.Email,
		&profile.PushToken,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &profile, nil
}

func (repo *ProfileRepository) Find(ctx context.Context, id string) (*profiles.Profile, error) {
	q := sq.Select(profileColumns()...).
		From(tableProfiles).
		Where(sq.Eq{profileFieldID: id})

	q = q.RunWith(repo.db)

	profile, err := scanProfile(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &profiles.ProfileNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	return profile, nil
}

func (repo *ProfileRepository) Upsert(ctx context.Context, profile *profiles.Profile) error {
	q := sq.Insert(tableProfiles).
		Columns(profileColumns()...).
		Values(
			profile.ID,
			profile.Username,
			profile.AvatarURL,
			profile.Email,
			profile.PushToken,
			profile.CreatedAt,
			profile.UpdatedAt,
		).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
    username = excluded.username,
    avatar_url = excluded.avatar_url,
    email = excluded.email,
    push_token = excluded.push_token,
    updated_at = excluded.updated_at`)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

func (repo *ProfileRepository) UpdatePushToken(ctx context.Context, id, pushToken string, updatedAt time.Time) error {
	q := sq.Update(tableProfiles).
		Set(profileFieldPushToken, pushToken).
		Set(profileFieldUpdatedAt, updatedAt).
		Where(sq.Eq{profileFieldID: id}).
		RunWith(repo.db)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return &profiles.ProfileNotFoundError{ID: id}
	}

	return nil
}
