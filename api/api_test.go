package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nasermirzaei89/reelthread/api"
	"github.com/nasermirzaei89/reelthread/authorization"
	"github.com/nasermirzaei89/reelthread/authorization/casbin"
	reelredis "github.com/nasermirzaei89/reelthread/db/redis"
	"github.com/nasermirzaei89/reelthread/db/sqlite3"
	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/nasermirzaei89/reelthread/profiles"
	"github.com/nasermirzaei89/reelthread/random"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = `g, system:anonymous, system:unauthenticated
g, system:admin, system:authenticated

p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, createComment
p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, getComment
p, system:unauthenticated, github.com/nasermirzaei89/reelthread/discuss, *, getComment
p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, listComments
p, system:unauthenticated, github.com/nasermirzaei89/reelthread/discuss, *, listComments
p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, listReplies
p, system:unauthenticated, github.com/nasermirzaei89/reelthread/discuss, *, listReplies
p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, countReplies
p, system:unauthenticated, github.com/nasermirzaei89/reelthread/discuss, *, countReplies
p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, countComments
p, system:unauthenticated, github.com/nasermirzaei89/reelthread/discuss, *, countComments
p, system:authenticated, github.com/nasermirzaei89/reelthread/discuss, *, deleteComment
p, system:admin, github.com/nasermirzaei89/reelthread/discuss, *, deleteAnyComment

p, system:authenticated, github.com/nasermirzaei89/reelthread/reactions, *, toggleLike
p, system:authenticated, github.com/nasermirzaei89/reelthread/reactions, *, getLikes
p, system:unauthenticated, github.com/nasermirzaei89/reelthread/reactions, *, getLikes
`

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []notify.Task
}

func (n *recordingNotifier) Notify(_ context.Context, task notify.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.tasks = append(n.tasks, task)
}

func (n *recordingNotifier) Tasks() []notify.Task {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]notify.Task(nil), n.tasks...)
}

type fixture struct {
	handler  *api.Handler
	notifier *recordingNotifier
	inbox    *notify.Inbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite3.Open(ctx, sqlite3.MemoryDSN(random.String(8)))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	adapter, err := casbin.NewSQLAdapter(db, "sqlite3", "casbin_rule")
	require.NoError(t, err)

	provider, err := casbin.NewAuthorizationProvider(adapter)
	require.NoError(t, err)

	err = provider.AddPolicyFromCSV(ctx, testPolicy)
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(provider)
	require.NoError(t, err)

	authzClient := authorization.NewClient(authzSvc)

	redisServer := miniredis.RunT(t)

	redisClient, err := reelredis.NewClient(ctx, redisServer.Addr(), "", 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = redisClient.Close()
	})

	inbox := notify.NewInbox(reelredis.NewInboxRepository(redisClient, 0))

	discussSvc := discuss.NewAuthorizationMiddleware(
		authzClient,
		discuss.NewService(sqlite3.NewCommentRepository(db), nil),
	)
	profilesSvc := profiles.NewService(sqlite3.NewProfileRepository(db), authzClient)
	reactionsSvc := reactions.NewService(sqlite3.NewLikeRepository(db), authzClient)
	notifier := &recordingNotifier{}
	submitter := replies.NewSubmitter(discussSvc, profilesSvc, notifier, replies.DefaultMentionDepth)

	handler := api.NewHandler(
		discussSvc,
		profilesSvc,
		reactionsSvc,
		submitter,
		inbox,
		http.NotFoundHandler(),
		api.ThreadConfig{IndentCap: 1, MaxDepth: 4},
	)

	return &fixture{
		handler:  handler,
		notifier: notifier,
		inbox:    inbox,
	}
}

func (f *fixture) do(t *testing.T, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		err := json.NewEncoder(&buf).Encode(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	if subject != "" {
		req.Header.Set(api.SubjectHeader, subject)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func (f *fixture) register(t *testing.T, userID, username, pushToken string) {
	t.Helper()

	rec := f.do(t, http.MethodPut, "/me", userID, map[string]string{"username": username})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	if pushToken != "" {
		rec = f.do(t, http.MethodPut, "/me/push-token", userID, map[string]string{"token": pushToken})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	}
}

type comment struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"authorId"`
	ReplyTo  *string `json:"replyTo"`
	Content  string  `json:"content"`
}

func (f *fixture) comment(t *testing.T, userID, path, content string) comment {
	t.Helper()

	rec := f.do(t, http.MethodPost, path, userID, map[string]any{"content": content})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res comment

	err := json.Unmarshal(rec.Body.Bytes(), &res)
	require.NoError(t, err)

	return res
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T

	err := json.Unmarshal(rec.Body.Bytes(), &v)
	require.NoError(t, err)

	return v
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_Comments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "alice", "alice", "")

	t.Run("anonymous cannot comment", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/targets/video/v1/comments", "", map[string]string{"content": "hi"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unregistered user cannot comment", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/targets/video/v1/comments", "mallory", map[string]string{"content": "hi"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid target type", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/targets/story/v1/comments", "alice", map[string]string{"content": "hi"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blank content", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/targets/video/v1/comments", "alice", map[string]string{"content": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/targets/video/v1/comments", "alice", map[string]string{"body": "hi"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	created := f.comment(t, "alice", "/targets/video/v1/comments", " first ")
	assert.Equal(t, "first", created.Content)
	assert.Equal(t, "alice", created.AuthorID)
	assert.Nil(t, created.ReplyTo)

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/targets/video/v1/comments", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode[struct {
			Count    int       `json:"count"`
			Comments []comment `json:"comments"`
		}](t, rec)
		assert.Equal(t, 1, res.Count)
		require.Len(t, res.Comments, 1)
		assert.Equal(t, created.ID, res.Comments[0].ID)
	})

	t.Run("other target is empty", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/targets/post/v1/comments", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"count":0,"comments":[]}`, rec.Body.String())
	})

	t.Run("get", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/comments/"+created.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created.ID, decode[comment](t, rec).ID)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/comments/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_Replies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "alice", "alice", "ExponentPushToken[alice]")
	f.register(t, "bob", "bob", "")

	root := f.comment(t, "alice", "/targets/video/v1/comments", "root")

	first := f.comment(t, "bob", "/comments/"+root.ID+"/replies", "direct reply")
	assert.Equal(t, "direct reply", first.Content)
	require.NotNil(t, first.ReplyTo)
	assert.Equal(t, root.ID, *first.ReplyTo)

	tasks := f.notifier.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "alice", tasks[0].RecipientID)
	assert.Equal(t, "bob replied to your comment", tasks[0].Message.Title)
	assert.Equal(t, root.ID, tasks[0].Message.Data["commentId"])

	second := f.comment(t, "alice", "/comments/"+first.ID+"/replies", "nested reply")
	assert.Equal(t, "@bob  nested reply", second.Content)

	// bob has no push token
	assert.Len(t, f.notifier.Tasks(), 1)

	t.Run("reply under a deleted root", func(t *testing.T) {
		orphanRoot := f.comment(t, "alice", "/targets/video/v2/comments", "soon gone")
		orphan := f.comment(t, "bob", "/comments/"+orphanRoot.ID+"/replies", "still here")

		rec := f.do(t, http.MethodDelete, "/comments/"+orphanRoot.ID, "alice", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		reply := f.comment(t, "alice", "/comments/"+orphan.ID+"/replies", "hi")
		require.NotNil(t, reply.ReplyTo)
		assert.Equal(t, orphan.ID, *reply.ReplyTo)
		assert.Equal(t, "@bob  hi", reply.Content)
	})

	t.Run("empty reply", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/comments/"+root.ID+"/replies", "bob", map[string]any{"content": " "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reply to unknown comment", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/comments/nope/replies", "bob", map[string]any{"content": "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("anonymous reply", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/comments/"+root.ID+"/replies", "", map[string]any{"content": "x", "depth": 1})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("list only direct replies", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/comments/"+root.ID+"/replies", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode[struct {
			Count    int       `json:"count"`
			Comments []comment `json:"comments"`
		}](t, rec)
		assert.Equal(t, 1, res.Count)
		require.Len(t, res.Comments, 1)
		assert.Equal(t, first.ID, res.Comments[0].ID)
	})

	t.Run("roots exclude replies", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/targets/video/v1/comments", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"count":1`)
	})
}

type threadView struct {
	ID         string       `json:"id"`
	AuthorName string       `json:"authorName"`
	Depth      int          `json:"depth"`
	Indent     int          `json:"indent"`
	ReplyCount int          `json:"replyCount"`
	Expanded   bool         `json:"expanded"`
	Liked      bool         `json:"liked"`
	LikeCount  int          `json:"likeCount"`
	Replies    []threadView `json:"replies"`
}

func TestHandler_Thread(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "alice", "alice", "")
	f.register(t, "bob", "bob", "")

	root := f.comment(t, "alice", "/targets/post/p1/comments", "root")
	reply := f.comment(t, "bob", "/comments/"+root.ID+"/replies", "reply")
	f.comment(t, "alice", "/comments/"+reply.ID+"/replies", "deep")

	rec := f.do(t, http.MethodPost, "/comments/"+root.ID+"/like", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	type response struct {
		Count    int          `json:"count"`
		Comments []threadView `json:"comments"`
	}

	t.Run("collapsed", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/targets/post/p1/thread", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode[response](t, rec)
		assert.Equal(t, 1, res.Count)
		require.Len(t, res.Comments, 1)
		assert.Equal(t, "alice", res.Comments[0].AuthorName)
		assert.Equal(t, 1, res.Comments[0].ReplyCount)
		assert.True(t, res.Comments[0].Liked)
		assert.Equal(t, 1, res.Comments[0].LikeCount)
		assert.False(t, res.Comments[0].Expanded)
		assert.Empty(t, res.Comments[0].Replies)
	})

	t.Run("expanded", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/targets/post/p1/thread?depth=3", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode[response](t, rec)
		require.Len(t, res.Comments, 1)
		assert.False(t, res.Comments[0].Liked)

		require.Len(t, res.Comments[0].Replies, 1)
		child := res.Comments[0].Replies[0]
		assert.Equal(t, "bob", child.AuthorName)
		assert.Equal(t, 2, child.Depth)
		assert.Equal(t, 1, child.Indent)

		require.Len(t, child.Replies, 1)
		assert.Equal(t, 3, child.Replies[0].Depth)
		assert.Equal(t, 1, child.Replies[0].Indent)
	})

	t.Run("invalid depth", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/targets/post/p1/thread?depth=zero", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_ToggleLike(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "alice", "alice", "")

	created := f.comment(t, "alice", "/targets/video/v1/comments", "like me")

	type response struct {
		Liked bool `json:"liked"`
		Count int  `json:"count"`
	}

	rec := f.do(t, http.MethodPost, "/comments/"+created.ID+"/like", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response{Liked: true, Count: 1}, decode[response](t, rec))

	rec = f.do(t, http.MethodPost, "/comments/"+created.ID+"/like", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response{Liked: false, Count: 0}, decode[response](t, rec))

	rec = f.do(t, http.MethodPost, "/comments/"+created.ID+"/like", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/comments/nope/like", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DeleteComment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "alice", "alice", "")
	f.register(t, "bob", "bob", "")

	created := f.comment(t, "alice", "/targets/video/v1/comments", "mine")

	rec := f.do(t, http.MethodDelete, "/comments/"+created.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/comments/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/comments/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/comments/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Notifications(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/me/notifications", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/me/notifications", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())

	notification, err := f.inbox.Record(context.Background(), "alice", notify.KindCommentReply, notify.Message{
		To:    "",
		Title: "bob replied to your comment",
		Body:  "hey",
		Data:  map[string]string{"commentId": "c1"},
	})
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/me/notifications?limit=10", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[struct {
		Notifications []notify.Notification `json:"notifications"`
	}](t, rec)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, notification.ID, res.Notifications[0].ID)
	assert.False(t, res.Notifications[0].Read)

	rec = f.do(t, http.MethodPost, "/me/notifications/"+notification.ID+"/read", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/me/notifications/nope/read", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/me/notifications?limit=-1", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Profile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/me", "", map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/me", "alice", map[string]string{"username": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/me", "alice", map[string]string{"username": "alice", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/me", "alice", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"alice","username":"alice","hasPushToken":false}`, rec.Body.String())

	// reserved subjects are treated as anonymous
	rec = f.do(t, http.MethodPut, "/me", "system:admin", map[string]string{"username": "root"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
