package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
	"github.com/nasermirzaei89/reelthread/thread"
)

// maxAncestorHops bounds the walk that finds the depth of a comment.
const maxAncestorHops = 64

type commentResponse struct {
	ID         string    `json:"id"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	AuthorID   string    `json:"authorId"`
	ReplyTo    *string   `json:"replyTo,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newCommentResponse(comment *discuss.Comment) commentResponse {
	return commentResponse{
		ID:         comment.ID,
		TargetType: string(comment.TargetType),
		TargetID:   comment.TargetID,
		AuthorID:   comment.AuthorID,
		ReplyTo:    comment.ReplyTo,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
	}
}

func newCommentResponses(comments []*discuss.Comment) []commentResponse {
	res := make([]commentResponse, 0, len(comments))

	for _, comment := range comments {
		res = append(res, newCommentResponse(comment))
	}

	return res
}

type commentListResponse struct {
	Count    int               `json:"count"`
	Comments []commentResponse `json:"comments"`
}

type threadResponse struct {
	TargetType string        `json:"targetType"`
	TargetID   string        `json:"targetId"`
	Count      int           `json:"count"`
	Comments   []thread.View `json:"comments"`
}

type createCommentBody struct {
	Content string `json:"content"`
}

type createReplyBody struct {
	Content string `json:"content"`
	// Depth of the parent comment, roots have depth 1. Looked up when zero.
	Depth int `json:"depth"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

func targetFromRequest(r *http.Request) (discuss.Target, error) {
	target := discuss.Target{
		Type: discuss.TargetType(r.PathValue("targetType")),
		ID:   r.PathValue("targetId"),
	}

	if !target.Type.IsValid() {
		return target, &BadRequestError{Reason: fmt.Sprintf("invalid target type %q", target.Type)}
	}

	return target, nil
}

func (h *Handler) HandleListComments() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := targetFromRequest(r)
		if err != nil {
			writeError(w, r, err)

			return
		}

		comments, err := h.discussSvc.ListComments(r.Context(), target)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to list comments: %w", err))

			return
		}

		count, err := h.discussSvc.CountComments(r.Context(), target)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to count comments: %w", err))

			return
		}

		writeJSON(w, r, http.StatusOK, commentListResponse{
			Count:    count,
			Comments: newCommentResponses(comments),
		})
	})
}

func (h *Handler) HandleCreateComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := targetFromRequest(r)
		if err != nil {
			writeError(w, r, err)

			return
		}

		var body createCommentBody

		err = decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		comment, err := h.discussSvc.CreateComment(r.Context(), discuss.CreateCommentRequest{
			Target:   target,
			AuthorID: authcontext.GetSubject(r.Context()),
			Content:  body.Content,
			ReplyTo:  "",
		})
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to create comment: %w", err))

			return
		}

		writeJSON(w, r, http.StatusCreated, newCommentResponse(comment))
	})
}

// HandleThread renders the thread of a target with replies expanded up to the depth query parameter.
func (h *Handler) HandleThread() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := targetFromRequest(r)
		if err != nil {
			writeError(w, r, err)

			return
		}

		depth := 1

		if v := r.URL.Query().Get("depth"); v != "" {
			depth, err = strconv.Atoi(v)
			if err != nil || depth < 1 {
				writeError(w, r, &BadRequestError{Reason: fmt.Sprintf("invalid depth %q", v)})

				return
			}
		}

		depth = min(depth, h.threadConfig.MaxDepth)

		viewer := ""
		if !authcontext.IsAnonymous(r.Context()) {
			viewer = authcontext.GetSubject(r.Context())
		}

		tree := thread.NewTree(target, thread.Capabilities{
			Comments: h.discussSvc,
			Authors:  h.profilesSvc,
			Replies:  h.submitter,
			Likes:    h.reactionsSvc,
		}, thread.Options{
			IndentCap:        h.threadConfig.IndentCap,
			Viewer:           viewer,
			Renderer:         h.markdown,
			MountConcurrency: 0,
		})

		err = tree.Load(r.Context())
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to load thread: %w", err))

			return
		}

		tree.ExpandAll(r.Context(), depth)

		count, err := h.discussSvc.CountComments(r.Context(), target)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to count comments: %w", err))

			return
		}

		writeJSON(w, r, http.StatusOK, threadResponse{
			TargetType: string(target.Type),
			TargetID:   target.ID,
			Count:      count,
			Comments:   tree.Render(),
		})
	})
}

func (h *Handler) HandleGetComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		comment, err := h.discussSvc.GetComment(r.Context(), r.PathValue("commentId"))
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to get comment: %w", err))

			return
		}

		writeJSON(w, r, http.StatusOK, newCommentResponse(comment))
	})
}

func (h *Handler) HandleDeleteComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.discussSvc.DeleteComment(r.Context(), r.PathValue("commentId"))
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to delete comment: %w", err))

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleListReplies() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commentID := r.PathValue("commentId")

		_, err := h.discussSvc.GetComment(r.Context(), commentID)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to get comment: %w", err))

			return
		}

		comments, err := h.discussSvc.ListReplies(r.Context(), commentID)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to list replies: %w", err))

			return
		}

		writeJSON(w, r, http.StatusOK, commentListResponse{
			Count:    len(comments),
			Comments: newCommentResponses(comments),
		})
	})
}

func (h *Handler) HandleCreateReply() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentID := r.PathValue("commentId")

		var body createReplyBody

		err := decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		if body.Depth < 0 {
			writeError(w, r, &BadRequestError{Reason: fmt.Sprintf("invalid depth %d", body.Depth)})

			return
		}

		if body.Depth == 0 {
			body.Depth, err = h.commentDepth(r.Context(), parentID)
			if err != nil {
				writeError(w, r, fmt.Errorf("failed to resolve comment depth: %w", err))

				return
			}
		}

		reply, err := h.submitter.Submit(r.Context(), replies.Request{
			ParentID:  parentID,
			ReplierID: authcontext.GetSubject(r.Context()),
			Content:   body.Content,
			Depth:     body.Depth,
			RootID:    "",
		})
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to submit reply: %w", err))

			return
		}

		writeJSON(w, r, http.StatusCreated, newCommentResponse(reply))
	})
}

func (h *Handler) HandleToggleLike() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commentID := r.PathValue("commentId")

		_, err := h.discussSvc.GetComment(r.Context(), commentID)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to get comment: %w", err))

			return
		}

		subject := authcontext.GetSubject(r.Context())

		liked, err := h.reactionsSvc.ToggleLike(r.Context(), reactions.TargetTypeComment, commentID, subject)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to toggle like: %w", err))

			return
		}

		summary, err := h.reactionsSvc.GetLikes(r.Context(), reactions.TargetTypeComment, commentID, &subject)
		if err != nil {
			writeError(w, r, fmt.Errorf("failed to get likes: %w", err))

			return
		}

		writeJSON(w, r, http.StatusOK, likeResponse{
			Liked: liked,
			Count: summary.Count,
		})
	})
}

var errTooDeep = errors.New("comment is nested too deep")

// commentDepth counts the comment and its ancestors. Deletion does not cascade, so an ancestor may be gone. A
// missing ancestor counts as the root.
func (h *Handler) commentDepth(ctx context.Context, id string) (int, error) {
	depth := 0

	for range maxAncestorHops {
		comment, err := h.discussSvc.GetComment(ctx, id)
		if err != nil {
			var notFoundErr *discuss.CommentNotFoundError
			if depth > 0 && errors.As(err, &notFoundErr) {
				return depth + 1, nil
			}

			return 0, fmt.Errorf("failed to get comment: %w", err)
		}

		depth++

		if comment.IsRoot() {
			return depth, nil
		}

		id = *comment.ReplyTo
	}

	return 0, errTooDeep
}
