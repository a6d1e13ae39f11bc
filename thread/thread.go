package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/profiles"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultIndentCap        = 1
	DefaultMaxDepth         = 8
	DefaultMountConcurrency = 8
)

var (
	ErrRepliesUnavailable = errors.New("replying is not available in this thread")
	ErrNoViewer           = errors.New("thread has no viewer")
)

type CommentStore interface {
	ListComments(ctx context.Context, target discuss.Target) (comments []*discuss.Comment, err error)
	ListReplies(ctx context.Context, parentID string) (comments []*discuss.Comment, err error)
	CountReplies(ctx context.Context, parentID string) (count int, err error)
	DeleteComment(ctx context.Context, id string) (err error)
}

type AuthorFetcher interface {
	GetProfile(ctx context.Context, id string) (profile *profiles.Profile, err error)
}

type ReplySubmitter interface {
	Submit(ctx context.Context, req replies.Request) (reply *discuss.Comment, err error)
}

type LikeRecorder interface {
	ToggleLike(ctx context.Context, targetType reactions.TargetType, targetID, userID string) (liked bool, err error)
	GetLikes(
		ctx context.Context,
		targetType reactions.TargetType,
		targetID string,
		viewerID *string,
	) (summary *reactions.LikeSummary, err error)
}

// Capabilities are the collaborators a tree works with. Comments and Authors are required, Replies and Likes are
// optional. Without Likes, like state stays local to the tree.
type Capabilities struct {
	Comments CommentStore
	Authors  AuthorFetcher
	Replies  ReplySubmitter
	Likes    LikeRecorder
}

type Options struct {
	// IndentCap bounds the visual indentation. It does not bound the nesting.
	IndentCap int
	// Viewer is the user looking at the tree. It is empty for anonymous viewers.
	Viewer string
	// Renderer turns comment content into HTML. Defaults to goldmark with its safe settings.
	Renderer         goldmark.Markdown
	MountConcurrency int
}

// Tree is the comment thread of one target. Roots are loaded eagerly, replies lazily per node.
type Tree struct {
	target  discuss.Target
	caps    Capabilities
	opts    Options
	mu      sync.Mutex
	roots   []*Node
	refresh atomic.Bool
}

func NewTree(target discuss.Target, caps Capabilities, opts Options) *Tree {
	if opts.IndentCap < 0 {
		opts.IndentCap = 0
	}

	if opts.Renderer == nil {
		opts.Renderer = goldmark.New()
	}

	if opts.MountConcurrency <= 0 {
		opts.MountConcurrency = DefaultMountConcurrency
	}

	return &Tree{
		target: target,
		caps:   caps,
		opts:   opts,
		roots:  []*Node{},
	}
}

func (t *Tree) Target() discuss.Target {
	return t.target
}

// Load fetches the root comments and replaces the current roots with freshly mounted nodes.
func (t *Tree) Load(ctx context.Context) error {
	comments, err := t.caps.Comments.ListComments(ctx, t.target)
	if err != nil {
		return fmt.Errorf("failed to list root comments: %w", err)
	}

	roots := t.mountAll(ctx, nil, comments, 1)

	t.mu.Lock()
	t.roots = roots
	t.mu.Unlock()

	return nil
}

func (t *Tree) Roots() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	return visible(t.roots)
}

func (t *Tree) Render() []View {
	return renderAll(t.Roots())
}

// Find returns the mounted node of comment id, or nil.
func (t *Tree) Find(id string) *Node {
	stack := t.Roots()

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.comment.ID == id {
			return node
		}

		stack = append(stack, node.Children()...)
	}

	return nil
}

// ExpandAll expands every node with replies whose depth is below maxDepth.
func (t *Tree) ExpandAll(ctx context.Context, maxDepth int) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	level := t.Roots()

	for len(level) > 0 {
		var g errgroup.Group

		g.SetLimit(t.opts.MountConcurrency)

		for _, node := range level {
			if node.depth >= maxDepth || node.ReplyCount() == 0 {
				continue
			}

			g.Go(func() error {
				node.Expand(ctx)

				return nil
			})
		}

		_ = g.Wait()

		next := make([]*Node, 0)

		for _, node := range level {
			if node.Expanded() {
				next = append(next, node.Children()...)
			}
		}

		level = next
	}
}

func (t *Tree) RequestRefresh() {
	t.refresh.Store(true)
}

func (t *Tree) RefreshRequested() bool {
	return t.refresh.Load()
}

// Sync reloads the roots if a refresh was requested.
func (t *Tree) Sync(ctx context.Context) error {
	if !t.refresh.CompareAndSwap(true, false) {
		return nil
	}

	err := t.Load(ctx)
	if err != nil {
		t.refresh.Store(true)

		return err
	}

	return nil
}

// mountAll mounts one node per comment, concurrently, keeping the order of comments.
func (t *Tree) mountAll(ctx context.Context, parent *Node, comments []*discuss.Comment, depth int) []*Node {
	nodes := make([]*Node, len(comments))

	var g errgroup.Group

	g.SetLimit(t.opts.MountConcurrency)

	for i, comment := range comments {
		g.Go(func() error {
			node := t.newNode(ctx, parent, comment, depth)
			node.mount(ctx)
			nodes[i] = node

			return nil
		})
	}

	_ = g.Wait()

	return nodes
}

func visible(nodes []*Node) []*Node {
	result := make([]*Node, 0, len(nodes))

	for _, node := range nodes {
		if !node.Hidden() {
			result = append(result, node)
		}
	}

	return result
}
