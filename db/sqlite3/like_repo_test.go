package sqlite3_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/reelthread/db/sqlite3"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := sqlite3.NewLikeRepository(newTestDB(t))

	commentID := uuid.NewString()
	alice := uuid.NewString()
	bob := uuid.NewString()

	for _, userID := range []string{alice, bob, alice} {
		err := repo.Insert(ctx, &reactions.Like{
			TargetType: reactions.TargetTypeComment,
			TargetID:   commentID,
			UserID:     userID,
			CreatedAt:  time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	count, err := repo.Count(ctx, reactions.TargetTypeComment, commentID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	like, err := repo.Find(ctx, reactions.TargetTypeComment, commentID, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, like.UserID)

	err = repo.Delete(ctx, reactions.TargetTypeComment, commentID, alice)
	require.NoError(t, err)

	_, err = repo.Find(ctx, reactions.TargetTypeComment, commentID, alice)

	notFoundErr := &reactions.LikeNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr)

	count, err = repo.Count(ctx, reactions.TargetTypeComment, commentID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.Count(ctx, reactions.TargetTypeVideo, commentID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
