package thread

import "time"

// View is a JSON friendly snapshot of a node and its expanded subtree.
type View struct {
	ID              string    `json:"id"`
	ReplyTo         *string   `json:"replyTo,omitempty"`
	AuthorID        string    `json:"authorId"`
	AuthorName      string    `json:"authorName"`
	AuthorAvatarURL string    `json:"authorAvatarUrl,omitempty"`
	Content         string    `json:"content"`
	ContentHTML     string    `json:"contentHtml"`
	CreatedAt       time.Time `json:"createdAt"`
	Depth           int       `json:"depth"`
	Indent          int       `json:"indent"`
	ReplyCount      int       `json:"replyCount"`
	Expanded        bool      `json:"expanded"`
	Loading         bool      `json:"loading"`
	Liked           bool      `json:"liked"`
	LikeCount       int       `json:"likeCount"`
	Replies         []View    `json:"replies,omitempty"`
}

// Render snapshots the node. Replies are included only while the node is expanded.
func (n *Node) Render() View {
	n.mu.Lock()
	view := View{
		ID:              n.comment.ID,
		ReplyTo:         n.comment.ReplyTo,
		AuthorID:        n.author.ID,
		AuthorName:      n.author.Username,
		AuthorAvatarURL: n.author.AvatarURL,
		Content:         n.comment.Content,
		ContentHTML:     n.contentHTML,
		CreatedAt:       n.comment.CreatedAt,
		Depth:           n.depth,
		Indent:          n.indent,
		ReplyCount:      n.replyCount,
		Expanded:        n.expanded,
		Loading:         n.loading,
		Liked:           n.liked,
		LikeCount:       n.likeCount,
	}
	expanded := n.expanded
	n.mu.Unlock()

	if expanded {
		view.Replies = renderAll(n.Children())
	}

	return view
}

func renderAll(nodes []*Node) []View {
	views := make([]View, 0, len(nodes))

	for _, node := range nodes {
		views = append(views, node.Render())
	}

	return views
}
