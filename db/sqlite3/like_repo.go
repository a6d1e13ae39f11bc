package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/reelthread/reactions"
)

const tableLikes = "likes"

type LikeRepository struct {
	db *sql.DB
}

var _ reactions.LikeRepository = (*LikeRepository)(nil)

func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

const (
	likeFieldTargetType = "target_type"
	likeFieldTargetID   = "target_id"
	likeFieldUserID     = "user_id"
	likeFieldCreatedAt  = "created_at"
)

func likeColumns() []string {
	return []string{
		likeFieldTargetType,
		likeFieldTargetID,
		likeFieldUserID,
		likeFieldCreatedAt,
	}
}

func scanLike(row sq.RowScanner) (*reactions.Like, error) {
	var like reactions.Like

	err := row.Scan(
		&like.TargetType,
		&like.TargetID,
		&like.UserID,
		&like.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan like row: %w", err)
	}

	return &like, nil
}

func (repo *LikeRepository) Find(
	ctx context.Context,
	targetType reactions.TargetType,
	targetID string,
	userID string,
) (*reactions.Like, error) {
	q := sq.Select(likeColumns()...).
		From(tableLikes).
		Where(sq.Eq{
			likeFieldTargetType: targetType,
			likeFieldTargetID:   targetID,
			likeFieldUserID:     userID,
		})

	q = q.RunWith(repo.db)

	like, err := scanLike(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &reactions.LikeNotFoundError{
				TargetType: targetType,
				TargetID:   targetID,
				UserID:     userID,
			}
		}

		return nil, fmt.Errorf("failed to find like: %w", err)
	}

	return like, nil
}

func (repo *LikeRepository) Insert(ctx context.Context, like *reactions.Like) error {
	q := sq.Insert(tableLikes).
		Columns(likeColumns()...).
		Values(like.TargetType, like.TargetID, like.UserID, like.CreatedAt).
		Suffix("ON CONFLICT(target_type, target_id, user_id) DO NOTHING").
		RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert like: %w", err)
	}

	return nil
}

func (repo *LikeRepository) Delete(
	ctx context.Context,
	targetType reactions.TargetType,
	targetID string,
	userID string,
) error {
	q := sq.Delete(tableLikes).
		Where(sq.Eq{
			likeFieldTargetType: targetType,
			likeFieldTargetID:   targetID,
			likeFieldUserID:     userID,
		}).
		RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}

	return nil
}

func (repo *LikeRepository) Count(ctx context.Context, targetType reactions.TargetType, targetID string) (int, error) {
	q := sq.Select("COUNT(*)").
		From(tableLikes).
		Where(sq.Eq{
			likeFieldTargetType: targetType,
			likeFieldTargetID:   targetID,
		}).
		RunWith(repo.db)

	var count int

	err := q.QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to scan like count: %w", err)
	}

	return count, nil
}
