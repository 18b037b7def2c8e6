package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat-service/internal/models"
)

func TestMemoryStoreAppendKeepsOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inserted, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi"})
	require.NoError(t, err)
	require.True(t, inserted)
	inserted, err = store.Append(ctx, "a--b", models.Message{ID: "m2", From: "b", Text: "hello"})
	require.NoError(t, err)
	require.True(t, inserted)

	history, err := store.History(ctx, "a--b")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m2", history[1].ID)
}

func TestMemoryStoreDuplicateAppendDropped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi"})
	require.NoError(t, err)
	inserted, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi again"})
	require.NoError(t, err)
	assert.False(t, inserted)

	history, err := store.History(ctx, "a--b")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)
}

func TestMemoryStoreMarkDeletedForGrowsMonotonically(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.MarkDeletedFor(ctx, "a--b", "m1", []string{"a"}))
	require.NoError(t, store.MarkDeletedFor(ctx, "a--b", "m1", []string{"a", "b"}))

	msg, err := store.GetMessage(ctx, "a--b", "m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, msg.DeletedFor)
}

func TestMemoryStoreMarkDeletedForUnknownMessage(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.MarkDeletedFor(ctx, "a--b", "missing", []string{"a"})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMemoryStoreSoftDeleteKeepsMessageInHistory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, store.MarkDeletedFor(ctx, "a--b", "m1", []string{"a"}))

	history, err := store.History(ctx, "a--b")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"a"}, history[0].DeletedFor)
}

func TestMemoryStoreClearEmptiesLogButKeepsMembership(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AddParticipant(ctx, "a--b", "a"))
	_, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "a--b"))

	history, err := store.History(ctx, "a--b")
	require.NoError(t, err)
	assert.Empty(t, history)

	participants, err := store.Participants(ctx, "a--b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, participants)

	// The same id may be appended again after a hard clear.
	inserted, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "again"})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestMemoryStoreAddParticipantIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AddParticipant(ctx, "a--b", "a"))
	require.NoError(t, store.AddParticipant(ctx, "a--b", "a"))

	participants, err := store.Participants(ctx, "a--b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, participants)

	member, err := store.IsParticipant(ctx, "a--b", "a")
	require.NoError(t, err)
	assert.True(t, member)
	member, err = store.IsParticipant(ctx, "a--b", "c")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestMemoryStoreDeleteRoom(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AddParticipant(ctx, "a--b", "a"))
	_, err := store.Append(ctx, "a--b", models.Message{ID: "m1", From: "a", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRoom(ctx, "a--b"))

	participants, err := store.Participants(ctx, "a--b")
	require.NoError(t, err)
	assert.Empty(t, participants)
	_, err = store.GetMessage(ctx, "a--b", "m1")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
