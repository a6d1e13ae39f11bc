package thread

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
	"golang.org/x/sync/singleflight"
)

const UnknownAuthorName = "unknown"

type Author struct {
	ID        string
	Username  string
	AvatarURL string
}

// Node is one mounted comment. Its children are fetched on expansion and always replace the previous set.
type Node struct {
	tree        *Tree
	parent      *Node
	onDeleted   func()
	comment     *discuss.Comment
	contentHTML string
	depth       int
	indent      int
	fetch       singleflight.Group

	mu         sync.Mutex
	author     Author
	replyCount int
	expanded   bool
	loading    bool
	hidden     bool
	liked      bool
	likeCount  int
	children   []*Node
}

func (t *Tree) newNode(ctx context.Context, parent *Node, comment *discuss.Comment, depth int) *Node {
	node := &Node{
		tree:     t,
		parent:   parent,
		comment:  comment,
		depth:    depth,
		indent:   min(depth-1, t.opts.IndentCap),
		author:   Author{ID: comment.AuthorID, Username: UnknownAuthorName},
		children: []*Node{},
	}

	if parent != nil {
		node.onDeleted = parent.childDeleted
	}

	var buf bytes.Buffer

	err := t.opts.Renderer.Convert([]byte(comment.Content), &buf)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render comment content", "commentId", comment.ID, "error", err)
	} else {
		node.contentHTML = buf.String()
	}

	return node
}

// mount loads the author, the reply count and the like state. Failures are logged and leave defaults in place.
func (n *Node) mount(ctx context.Context) {
	caps := n.tree.caps

	profile, err := caps.Authors.GetProfile(ctx, n.comment.AuthorID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get comment author",
			"commentId", n.comment.ID, "authorId", n.comment.AuthorID, "error", err)
	}

	count, countErr := caps.Comments.CountReplies(ctx, n.comment.ID)
	if countErr != nil {
		slog.ErrorContext(ctx, "failed to count replies", "commentId", n.comment.ID, "error", countErr)
	}

	var likes *reactions.LikeSummary

	if caps.Likes != nil {
		var viewer *string
		if n.tree.opts.Viewer != "" {
			viewer = &n.tree.opts.Viewer
		}

		var likesErr error

		likes, likesErr = caps.Likes.GetLikes(ctx, reactions.TargetTypeComment, n.comment.ID, viewer)
		if likesErr != nil {
			slog.ErrorContext(ctx, "failed to get comment likes", "commentId", n.comment.ID, "error", likesErr)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err == nil && profile != nil {
		n.author = Author{ID: profile.ID, Username: profile.Username, AvatarURL: profile.AvatarURL}
	}

	if countErr == nil {
		n.replyCount = count
	}

	if likes != nil {
		n.likeCount = likes.Count
		n.liked = likes.Liked
	}
}

func (n *Node) ID() string {
	return n.comment.ID
}

func (n *Node) Comment() *discuss.Comment {
	return n.comment
}

func (n *Node) Depth() int {
	return n.depth
}

func (n *Node) Indent() int {
	return n.indent
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) Author() Author {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.author
}

func (n *Node) ReplyCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.replyCount
}

func (n *Node) Expanded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.expanded
}

func (n *Node) Loading() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.loading
}

func (n *Node) Hidden() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.hidden
}

func (n *Node) Liked() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.liked
}

func (n *Node) LikeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.likeCount
}

// Children returns the mounted, not deleted children, whether or not the node is expanded.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	children := n.children
	n.mu.Unlock()

	return visible(children)
}

// Toggle collapses an expanded node, or expands a collapsed one and fetches its children. It reports whether the node
// is expanded afterwards.
func (n *Node) Toggle(ctx context.Context) bool {
	n.mu.Lock()

	if n.expanded {
		n.expanded = false
		n.mu.Unlock()

		return false
	}

	n.expanded = true
	n.mu.Unlock()

	n.loadChildren(ctx)

	return true
}

// Expand expands the node and fetches its children. Concurrent calls share one fetch.
func (n *Node) Expand(ctx context.Context) {
	n.mu.Lock()
	n.expanded = true
	n.mu.Unlock()

	n.loadChildren(ctx)
}

func (n *Node) loadChildren(ctx context.Context) {
	_, _, _ = n.fetch.Do("children", func() (any, error) {
		n.mu.Lock()
		n.loading = true
		n.mu.Unlock()

		children, ok := n.fetchChildren(ctx)

		n.mu.Lock()
		defer n.mu.Unlock()

		n.loading = false
		n.children = children

		if ok {
			n.replyCount = len(children)
		}

		return nil, nil
	})
}

// fetchChildren returns the mounted children, or no children and false when they cannot be listed.
func (n *Node) fetchChildren(ctx context.Context) ([]*Node, bool) {
	comments, err := n.tree.caps.Comments.ListReplies(ctx, n.comment.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list replies", "commentId", n.comment.ID, "error", err)

		return []*Node{}, false
	}

	return n.tree.mountAll(ctx, n, comments, n.depth+1), true
}

func (n *Node) rootID() string {
	root := n
	for root.parent != nil {
		root = root.parent
	}

	return root.comment.ID
}

// Reply submits a reply to this node's comment and bumps the reply counter. The tree is flagged for refresh.
func (n *Node) Reply(ctx context.Context, replierID, content string) (*discuss.Comment, error) {
	submitter := n.tree.caps.Replies
	if submitter == nil {
		return nil, ErrRepliesUnavailable
	}

	reply, err := submitter.Submit(ctx, replies.Request{
		ParentID:  n.comment.ID,
		ReplierID: replierID,
		Content:   content,
		Depth:     n.depth,
		RootID:    n.rootID(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit reply: %w", err)
	}

	n.mu.Lock()
	n.replyCount++
	n.mu.Unlock()

	n.tree.RequestRefresh()

	return reply, nil
}

// Delete removes this comment only and hides the node. Replies of the comment are not touched.
func (n *Node) Delete(ctx context.Context) error {
	err := n.tree.caps.Comments.DeleteComment(ctx, n.comment.ID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	n.mu.Lock()
	n.hidden = true
	n.mu.Unlock()

	if n.onDeleted != nil {
		n.onDeleted()
	} else {
		n.tree.RequestRefresh()
	}

	return nil
}

func (n *Node) childDeleted() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.replyCount = max(n.replyCount-1, 0)
}

// ToggleLike flips the like state right away and persists it when the tree has a LikeRecorder. On failure the local
// state is restored.
func (n *Node) ToggleLike(ctx context.Context) (bool, error) {
	liked := n.flipLike()

	recorder := n.tree.caps.Likes
	if recorder == nil {
		return liked, nil
	}

	viewer := n.tree.opts.Viewer
	if viewer == "" {
		n.flipLike()

		return !liked, ErrNoViewer
	}

	persisted, err := recorder.ToggleLike(ctx, reactions.TargetTypeComment, n.comment.ID, viewer)
	if err != nil {
		n.flipLike()

		return !liked, fmt.Errorf("failed to persist like: %w", err)
	}

	if persisted != liked {
		n.flipLike()
	}

	return persisted, nil
}

func (n *Node) flipLike() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.liked = !n.liked

	if n.liked {
		n.likeCount++
	} else {
		n.likeCount = max(n.likeCount-1, 0)
	}

	return n.liked
}
