package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"duochat/internal/models"
	"duochat/internal/storage/storagetest"
)

type fixture struct {
	store *gormMessageRepository
	users UserRepository
	alice *models.User
	bob   *models.User
	carol *models.User
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.NewDB(t)
	users := NewGormUserRepository(db)
	f := &fixture{
		users: users,
		alice: storagetest.SeedUser(t, db, "alice"),
		bob:   storagetest.SeedUser(t, db, "bob"),
		carol: storagetest.SeedUser(t, db, "carol"),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = &gormMessageRepository{db: db, users: users, now: func() time.Time { return f.clock }}
	return f
}

func (f *fixture) send(t *testing.T, from, to *models.User, content string, at time.Time) *models.Message {
	t.Helper()
	msg := &models.Message{SenderID: from.ID, ReceiverID: to.ID, Content: content, Timestamp: at}
	require.NoError(t, f.store.Create(context.Background(), msg))
	return msg
}

func TestMessageStore_Create_Persists_Normalized_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given a message with messy whitespace
	msg := &models.Message{SenderID: f.alice.ID, ReceiverID: f.bob.ID, Content: "  hi \n there  "}

	// When it is created and read back
	req.NoError(f.store.Create(ctx, msg))
	got, err := f.store.FindByID(ctx, msg.ID)

	// Then the stored copy is normalized, unread and enriched
	req.NoError(err)
	req.Equal("hi there", got.Content)
	req.Equal(models.TextMessage, got.MessageType)
	req.False(got.IsRead)
	req.Nil(got.ReadAt)
	req.True(f.clock.Equal(got.Timestamp))
	req.Equal("alice", got.Sender.Username)
	req.Equal("bob", got.Receiver.Username)
	req.Equal(f.bob.AvatarURL, got.Receiver.AvatarURL)
}

func TestMessageStore_Create_Rejects_Invalid_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	msg := &models.Message{SenderID: f.alice.ID, ReceiverID: f.bob.ID, MessageType: models.ImageMessage}
	err := f.store.Create(context.Background(), msg)

	req.ErrorIs(err, models.ErrValidation)
	req.False(errors.Is(err, ErrPersistence))
}

func TestMessageStore_Create_Round_Trips_Attachment(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	msg := &models.Message{
		SenderID:    f.alice.ID,
		ReceiverID:  f.bob.ID,
		MessageType: models.VideoMessage,
		Attachment: &models.Attachment{
			URL:        "https://cdn.example.com/v.mp4",
			Filename:   "v.mp4",
			Size:       4096,
			MimeType:   "video/mp4",
			Duration:   12.5,
			Dimensions: &models.Dimensions{Width: 640, Height: 480},
		},
	}
	req.NoError(f.store.Create(ctx, msg))

	got, err := f.store.FindByID(ctx, msg.ID)

	req.NoError(err)
	req.Equal(msg.Attachment, got.Attachment)
	req.Empty(got.Content)
}

func TestMessageStore_FindByID_Not_Found(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.FindByID(context.Background(), "missing")

	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessageStore_FindConversation_Orders_And_Limits(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	base := f.clock.Add(-time.Hour)

	// Given messages in both directions plus an unrelated one
	m1 := f.send(t, f.alice, f.bob, "one", base)
	m2 := f.send(t, f.bob, f.alice, "two", base.Add(time.Minute))
	m3 := f.send(t, f.alice, f.bob, "three", base.Add(2*time.Minute))
	f.send(t, f.alice, f.carol, "elsewhere", base.Add(3*time.Minute))

	// When the conversation is loaded from either side
	fromAlice, err := f.store.FindConversation(context.Background(), f.alice.ID, f.bob.ID, 0)
	req.NoError(err)
	fromBob, err := f.store.FindConversation(context.Background(), f.bob.ID, f.alice.ID, 2)
	req.NoError(err)

	// Then both views are newest first and exclude other pairs
	req.Equal([]string{m3.ID, m2.ID, m1.ID}, ids(fromAlice))
	req.Equal([]string{m3.ID, m2.ID}, ids(fromBob))
}

func TestMessageStore_MarkAsRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m1 := f.send(t, f.alice, f.bob, "one", f.clock)
	m2 := f.send(t, f.alice, f.bob, "two", f.clock)

	// First mark flips one message
	changed, err := f.store.MarkAsRead(ctx, []string{m1.ID})
	req.NoError(err)
	req.Equal(int64(1), changed)
	first, err := f.store.FindByID(ctx, m1.ID)
	req.NoError(err)
	req.True(first.IsRead)
	req.NotNil(first.ReadAt)

	// Marking again later only touches the still-unread one
	f.clock = f.clock.Add(time.Hour)
	changed, err = f.store.MarkAsRead(ctx, []string{m1.ID, m2.ID, "unknown"})
	req.NoError(err)
	req.Equal(int64(1), changed)

	again, err := f.store.FindByID(ctx, m1.ID)
	req.NoError(err)
	req.True(first.ReadAt.Equal(*again.ReadAt))

	second, err := f.store.FindByID(ctx, m2.ID)
	req.NoError(err)
	req.True(f.clock.Equal(*second.ReadAt))

	changed, err = f.store.MarkAsRead(ctx, nil)
	req.NoError(err)
	req.Zero(changed)
}

func TestMessageStore_GetUnreadCount(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m1 := f.send(t, f.alice, f.bob, "one", f.clock)
	f.send(t, f.carol, f.bob, "two", f.clock)
	f.send(t, f.bob, f.alice, "three", f.clock)

	count, err := f.store.GetUnreadCount(ctx, f.bob.ID)
	req.NoError(err)
	req.Equal(int64(2), count)

	_, err = f.store.MarkAsRead(ctx, []string{m1.ID})
	req.NoError(err)

	count, err = f.store.GetUnreadCount(ctx, f.bob.ID)
	req.NoError(err)
	req.Equal(int64(1), count)
}

func TestMessageStore_FindWithAttachments(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, f.alice, f.bob, "plain", f.clock)
	img := &models.Message{
		SenderID: f.alice.ID, ReceiverID: f.bob.ID, MessageType: models.ImageMessage,
		Attachment: &models.Attachment{URL: "https://x/a.png", Filename: "a.png", Size: 1},
	}
	file := &models.Message{
		SenderID: f.bob.ID, ReceiverID: f.alice.ID, MessageType: models.FileMessage,
		Attachment: &models.Attachment{URL: "https://x/a.pdf", Filename: "a.pdf", Size: 1},
	}
	req.NoError(f.store.Create(ctx, img))
	req.NoError(f.store.Create(ctx, file))

	all, err := f.store.FindWithAttachments(ctx, f.alice.ID, "")
	req.NoError(err)
	req.ElementsMatch([]string{img.ID, file.ID}, ids(all))

	images, err := f.store.FindWithAttachments(ctx, f.bob.ID, models.ImageMessage)
	req.NoError(err)
	req.Equal([]string{img.ID}, ids(images))

	_, err = f.store.FindWithAttachments(ctx, f.bob.ID, models.TextMessage)
	req.ErrorIs(err, models.ErrValidation)
}

func ids(msgs []*models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
