package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/reelthread/discuss"
)

const tableComments = "comments"

type CommentRepository struct {
	db *sql.DB
}

var _ discuss.CommentRepository = (*CommentRepository)(nil)

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const (
	commentFieldID         = "id"
	commentFieldTargetType = "target_type"
	commentFieldTargetID   = "target_id"
	commentFieldAuthorID   = "author_id"
	commentFieldReplyTo    = "reply_to"
	commentFieldContent    = "content"
	commentFieldCreatedAt  = "created_at"
)

func commentColumns() []string {
	return []string{
		commentFieldID,
		commentFieldTargetType,
		commentFieldTargetID,
		commentFieldAuthorID,
		commentFieldReplyTo,
		commentFieldContent,
		commentFieldCreatedAt,
	}
}

func scanComment(row sq.RowScanner) (*discuss.Comment, error) {
	var comment discuss.Comment

	err := row.Scan(
		&comment.ID,
		&comment.TargetType,
		&comment.TargetID,
		&comment.AuthorID,
		&comment.ReplyTo,
		&comment.Content,
		&comment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &comment, nil
}

func commentFilter(params *discuss.ListCommentsParams) sq.And {
	filter := sq.And{}

	if params == nil {
		return filter
	}

	if params.TargetType != "" {
		filter = append(filter, sq.Eq{commentFieldTargetType: params.TargetType})
	}

	if params.TargetID != "" {
		filter = append(filter, sq.Eq{commentFieldTargetID: params.TargetID})
	}

	if params.ReplyTo != nil {
		filter = append(filter, sq.Eq{commentFieldReplyTo: *params.ReplyTo})
	}

	if params.RootsOnly {
		filter = append(filter, sq.Eq{commentFieldReplyTo: nil})
	}

	return filter
}

func (repo *CommentRepository) Insert(ctx context.Context, comment *discuss.Comment) error {
	q := sq.Insert(tableComments).
		Columns(commentColumns()...).
		Values(
			comment.ID,
			comment.TargetType,
			comment.TargetID,
			comment.AuthorID,
			comment.ReplyTo,
			comment.Content,
			comment.CreatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *CommentRepository) Find(ctx context.Context, id string) (*discuss.Comment, error) {
	q := sq.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{commentFieldID: id})

	q = q.RunWith(repo.db)

	comment, err := scanComment(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &discuss.CommentNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}

	return comment, nil
}

func (repo *CommentRepository) List(
	ctx context.Context,
	params *discuss.ListCommentsParams,
) ([]*discuss.Comment, error) {
	query := sq.Select(commentColumns()...).
		From(tableComments).
		Where(commentFilter(params)).
		OrderBy(commentFieldCreatedAt+" ASC", commentFieldID+" ASC")

	query = query.RunWith(repo.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	comments := make([]*discuss.Comment, 0)

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment failed: %w", err)
		}

		comments = append(comments, comment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return comments, nil
}

func (repo *CommentRepository) Count(ctx context.Context, params *discuss.ListCommentsParams) (int, error) {
	q := sq.Select("COUNT(*)").
		From(tableComments).
		Where(commentFilter(params)).
		RunWith(repo.db)

	var count int

	err := q.QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to scan count: %w", err)
	}

	return count, nil
}

func (repo *CommentRepository) Delete(ctx context.Context, id string) error {
	q := sq.Delete(tableComments).
		Where(sq.Eq{commentFieldID: id}).
		RunWith(repo.db)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return &discuss.CommentNotFoundError{ID: id}
	}

	return nil
}
