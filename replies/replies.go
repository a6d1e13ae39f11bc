package replies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/nasermirzaei89/reelthread/profiles"
)

// DefaultMentionDepth is the deepest level whose replies are stored without an @mention of the parent author.
const DefaultMentionDepth = 1

const (
	unknownReplierName = "Someone"
	maxAncestorHops    = 64
)

var ErrEmptyReply = errors.New("reply content is empty")

type CommentService interface {
	GetComment(ctx context.Context, id string) (comment *discuss.Comment, err error)
	CreateComment(ctx context.Context, req discuss.CreateCommentRequest) (comment *discuss.Comment, err error)
}

type ProfileFetcher interface {
	GetProfile(ctx context.Context, id string) (profile *profiles.Profile, err error)
}

type Notifier interface {
	Notify(ctx context.Context, task notify.Task)
}

type Submitter struct {
	comments     CommentService
	profiles     ProfileFetcher
	notifier     Notifier
	mentionDepth int
}

// NewSubmitter returns a Submitter. notifier may be nil, then no notification is sent.
func NewSubmitter(comments CommentService, profiles ProfileFetcher, notifier Notifier, mentionDepth int) *Submitter {
	return &Submitter{
		comments:     comments,
		profiles:     profiles,
		notifier:     notifier,
		mentionDepth: mentionDepth,
	}
}

// Request replies to ParentID. Depth is the depth of the parent in its thread, roots have depth 1. RootID is the
// thread root and is looked up when empty.
type Request struct {
	ParentID  string
	ReplierID string
	Content   string
	Depth     int
	RootID    string
}

// Submit stores the reply and notifies the parent author in the background. A notification failure never fails
// the submission.
func (s *Submitter) Submit(ctx context.Context, req Request) (*discuss.Comment, error) {
	text := strings.TrimSpace(req.Content)
	if text == "" {
		return nil, ErrEmptyReply
	}

	parent, err := s.comments.GetComment(ctx, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parent comment: %w", err)
	}

	parentAuthor, authorErr := s.profiles.GetProfile(ctx, parent.AuthorID)

	content := text

	if req.Depth > s.mentionDepth {
		if authorErr != nil {
			return nil, fmt.Errorf("failed to resolve parent author for mention: %w", authorErr)
		}

		content = Mention(parentAuthor.Username, text)
	}

	reply, err := s.comments.CreateComment(ctx, discuss.CreateCommentRequest{
		Target:   parent.Target(),
		AuthorID: req.ReplierID,
		Content:  content,
		ReplyTo:  parent.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}

	if authorErr != nil {
		slog.ErrorContext(ctx, "failed to get parent author, skipping notification",
			"commentId", parent.ID, "authorId", parent.AuthorID, "error", authorErr)

		return reply, nil
	}

	if s.notifier == nil || !parentAuthor.HasPushToken() || parentAuthor.ID == req.ReplierID {
		return reply, nil
	}

	rootID := req.RootID
	if rootID == "" {
		rootID = s.resolveRootID(ctx, parent)
	}

	s.notifier.Notify(ctx, notify.Task{
		RecipientID: parentAuthor.ID,
		Kind:        notify.KindCommentReply,
		Message: notify.Message{
			To:    parentAuthor.PushToken,
			Title: s.replierName(ctx, req.ReplierID) + " replied to your comment",
			Body:  text,
			Data:  notificationData(parent, req.ReplierID, rootID),
		},
	})

	return reply, nil
}

// Mention prefixes content with an @mention of username.
func Mention(username, content string) string {
	return "@" + username + "  " + content
}

func (s *Submitter) replierName(ctx context.Context, replierID string) string {
	replier, err := s.profiles.GetProfile(ctx, replierID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get replier profile", "userId", replierID, "error", err)

		return unknownReplierName
	}

	return replier.Username
}

// resolveRootID walks up from comment. A missing ancestor ends the walk at the highest comment still present.
func (s *Submitter) resolveRootID(ctx context.Context, comment *discuss.Comment) string {
	current := comment

	for range maxAncestorHops {
		if current.IsRoot() {
			break
		}

		ancestor, err := s.comments.GetComment(ctx, *current.ReplyTo)
		if err != nil {
			slog.ErrorContext(ctx, "failed to get ancestor comment", "commentId", *current.ReplyTo, "error", err)

			break
		}

		current = ancestor
	}

	return current.ID
}

func notificationData(parent *discuss.Comment, replierID, rootID string) map[string]string {
	data := map[string]string{
		"targetType": string(parent.TargetType),
		"targetId":   parent.TargetID,
		"userId":     replierID,
		"commentId":  rootID,
	}

	switch parent.TargetType {
	case discuss.TargetTypeVideo:
		data["videoId"] = parent.TargetID
	case discuss.TargetTypePost:
		data["postId"] = parent.TargetID
	}

	return data
}
