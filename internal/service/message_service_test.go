package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/realtime"
	"github.com/shinyyama/ecograd-backend/internal/repository"
	"github.com/shinyyama/ecograd-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inboxRow(id, post, from, to uint64, at time.Time, read bool) model.InboxRow {
	names := map[uint64]string{1: "alice", 2: "bob", 3: "carol"}
	return model.InboxRow{
		ID:               id,
		PostID:           post,
		SenderID:         from,
		ReceiverID:       to,
		Body:             "msg",
		IsRead:           read,
		CreatedAt:        at,
		PostTitle:        "post",
		SenderUsername:   names[from],
		ReceiverUsername: names[to],
	}
}

func TestAggregateConversations(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// newest first, as the inbox query returns them
	rows := []model.InboxRow{
		inboxRow(6, 20, 3, 2, base.Add(5*time.Minute), false),
		inboxRow(5, 10, 2, 1, base.Add(4*time.Minute), false),
		inboxRow(4, 10, 1, 2, base.Add(3*time.Minute), true),
		inboxRow(3, 10, 3, 2, base.Add(2*time.Minute), true),
		inboxRow(2, 10, 1, 2, base.Add(time.Minute), false),
		inboxRow(1, 10, 1, 2, base, false),
	}
	rows[1].Body = "latest from bob"

	convs := service.AggregateConversations(2, rows)
	require.Len(t, convs, 3)

	assert.Equal(t, uint64(20), convs[0].PostID)
	assert.Equal(t, uint64(3), convs[0].OtherUserID)
	assert.Equal(t, 1, convs[0].UnreadCount)

	// both directions with alice on post 10 collapse into one
	assert.Equal(t, uint64(10), convs[1].PostID)
	assert.Equal(t, uint64(1), convs[1].OtherUserID)
	assert.Equal(t, "alice", convs[1].OtherUsername)
	assert.Equal(t, "latest from bob", convs[1].LastMessage)
	assert.Equal(t, base.Add(4*time.Minute), convs[1].LastMessageTime)
	assert.Equal(t, 2, convs[1].UnreadCount)

	assert.Equal(t, uint64(3), convs[2].OtherUserID)
	assert.Equal(t, 0, convs[2].UnreadCount)

	var unread int
	for i, c := range convs {
		unread += c.UnreadCount
		if i > 0 {
			assert.False(t, c.LastMessageTime.After(convs[i-1].LastMessageTime))
		}
	}
	assert.Equal(t, 3, unread)
}

func TestAggregateConversationsTieKeepsRowOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []model.InboxRow{
		inboxRow(9, 11, 1, 2, at, false),
		inboxRow(8, 10, 1, 2, at, false),
	}
	convs := service.AggregateConversations(2, rows)
	require.Len(t, convs, 2)
	assert.Equal(t, uint64(11), convs[0].PostID)
	assert.Equal(t, uint64(10), convs[1].PostID)
}

func TestAggregateConversationsEmpty(t *testing.T) {
	convs := service.AggregateConversations(1, nil)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}

type messagingFixture struct {
	svc   service.MessageService
	pub   *recordingPublisher
	alice *model.User
	bob   *model.User
	post  *model.Post
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()
	gdb := newTestDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(gdb)
	posts := repository.NewPostRepository(gdb)

	alice := &model.User{Username: "alice", PasswordHash: "x"}
	bob := &model.User{Username: "bob", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))
	post := &model.Post{
		UserID: bob.ID, Title: "Blue gown", ItemType: "Gown", Size: "L",
		ConditionStatus: "Worn", Price: 30, ContactInfo: "bob", Status: model.PostStatusActive,
	}
	require.NoError(t, posts.Create(ctx, post))

	pub := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewMessageService(repository.NewMessageRepository(gdb), users, posts, pub, logger)
	return &messagingFixture{svc: svc, pub: pub, alice: alice, bob: bob, post: post}
}

func TestMessagingReadFlow(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	a, b, p := f.alice.ID, f.bob.ID, f.post.ID

	id, err := f.svc.Send(ctx, a, b, p, "  Is this available?  ")
	require.NoError(t, err)
	require.NotZero(t, id)

	convs, err := f.svc.Conversations(ctx, b)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, a, convs[0].OtherUserID)
	assert.Equal(t, "alice", convs[0].OtherUsername)
	assert.Equal(t, "Is this available?", convs[0].LastMessage)
	assert.Equal(t, "Blue gown", convs[0].PostTitle)
	assert.Equal(t, 1, convs[0].UnreadCount)

	count, err := f.svc.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// fetching the thread marks bob's incoming messages read
	thread, err := f.svc.Thread(ctx, b, a, p)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, id, thread[len(thread)-1].ID)
	assert.False(t, thread[0].IsRead)
	count, err = f.svc.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, count)

	thread, err = f.svc.Thread(ctx, b, a, p)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.True(t, thread[0].IsRead)

	n, err := f.svc.MarkThreadRead(ctx, p, a, b)
	require.NoError(t, err)
	assert.Zero(t, n)

	convs, err = f.svc.Conversations(ctx, b)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)

	events := f.pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, realtime.EventMessageCreated, events[0].Event.Type)
	assert.ElementsMatch(t, []uint64{a, b}, events[0].UserIDs)
	view, ok := events[0].Event.Data.(service.MessageView)
	require.True(t, ok)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "alice", view.SenderUsername)

	assert.Equal(t, realtime.EventThreadRead, events[1].Event.Type)
	assert.Equal(t, []uint64{a}, events[1].UserIDs)
	assert.Equal(t, service.ThreadReadEvent{PostID: p, ReaderID: b, Updated: 1}, events[1].Event.Data)
}

func TestMessagingThreadOrderAndUnreadSum(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	a, b, p := f.alice.ID, f.bob.ID, f.post.ID

	var last uint64
	for i, send := range []struct{ from, to uint64 }{{a, b}, {b, a}, {a, b}, {a, b}} {
		id, err := f.svc.Send(ctx, send.from, send.to, p, "hello")
		require.NoError(t, err, "send %d", i)
		last = id
	}

	thread, err := f.svc.Thread(ctx, a, b, p)
	require.NoError(t, err)
	require.Len(t, thread, 4)
	assert.Equal(t, last, thread[3].ID)
	for i := 1; i < len(thread); i++ {
		assert.Less(t, thread[i-1].ID, thread[i].ID)
	}

	for _, viewer := range []uint64{a, b} {
		convs, err := f.svc.Conversations(ctx, viewer)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		count, err := f.svc.UnreadCount(ctx, viewer)
		require.NoError(t, err)
		assert.Equal(t, count, int64(convs[0].UnreadCount))
	}
}

func TestSendValidation(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	a, b, p := f.alice.ID, f.bob.ID, f.post.ID
	long := make([]rune, 2001)
	for i := range long {
		long[i] = 'x'
	}

	cases := []struct {
		name           string
		from, to, post uint64
		body           string
		want           error
	}{
		{"blank body", a, b, p, "   ", service.ErrValidation},
		{"missing receiver", a, 0, p, "hi", service.ErrValidation},
		{"missing post", a, b, 0, "hi", service.ErrValidation},
		{"too long", a, b, p, string(long), service.ErrValidation},
		{"self", a, a, p, "hi", service.ErrValidation},
		{"unknown sender", 999, b, p, "hi", service.ErrNotFound},
		{"unknown receiver", a, 999, p, "hi", service.ErrNotFound},
		{"unknown post", a, b, 999, "hi", service.ErrNotFound},
	}
	for _, tc := range cases {
		_, err := f.svc.Send(ctx, tc.from, tc.to, tc.post, tc.body)
		assert.ErrorIs(t, err, tc.want, tc.name)
	}
	assert.Empty(t, f.pub.snapshot())
}

func TestMessagesGoneWithPost(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(gdb)
	posts := repository.NewPostRepository(gdb)
	alice := &model.User{Username: "alice", PasswordHash: "x"}
	bob := &model.User{Username: "bob", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))
	post := &model.Post{
		UserID: bob.ID, Title: "Cap", ItemType: "Cap", Size: "S",
		ConditionStatus: "New", Price: 5, ContactInfo: "bob", Status: model.PostStatusActive,
	}
	require.NoError(t, posts.Create(ctx, post))

	svc := service.NewMessageService(repository.NewMessageRepository(gdb), users, posts, nil, nil)
	_, err := svc.Send(ctx, alice.ID, bob.ID, post.ID, "still for sale?")
	require.NoError(t, err)

	postSvc := service.NewPostService(posts, nil, 0)
	require.NoError(t, postSvc.Delete(ctx, bob.ID, post.ID))

	convs, err := svc.Conversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
	var n int64
	require.NoError(t, gdb.Model(&model.Message{}).Count(&n).Error)
	assert.Zero(t, n)
}
