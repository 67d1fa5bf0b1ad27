package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/videochat/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	store.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	return store
}

func TestRecordAndListChats(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.RecordChat(ctx, 1, "what is shown?", &models.ChatResponse{
		Response:  "A street [1]",
		Citations: []models.Citation{{Text: "street", Time: 4.5, Timestamp: "00:04", CitationID: 1}},
		MessageID: 11,
	})
	require.NoError(t, err)

	_, err = store.RecordChat(ctx, 1, "anything else?", &models.ChatResponse{Response: "No", MessageID: 12})
	require.NoError(t, err)

	_, err = store.RecordChat(ctx, 2, "other video", nil)
	require.NoError(t, err)

	entries, err := store.ListChats(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "anything else?", entries[0].Message, "newest first")
	assert.Empty(t, entries[0].Citations)
	assert.Equal(t, 12, entries[0].MessageID)

	assert.Equal(t, "A street [1]", entries[1].Response)
	require.Len(t, entries[1].Citations, 1)
	assert.Equal(t, 4.5, entries[1].Citations[0].Time)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC), entries[1].CreatedAt)

	limited, err := store.ListChats(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordAndListSearches(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	id, err := store.RecordSearch(ctx, 4, "red car", "native", 3)
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := store.ListSearches(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "red car", entries[0].Query)
	assert.Equal(t, "native", entries[0].Strategy)
	assert.Equal(t, 3, entries[0].TotalResults)

	none, err := store.ListSearches(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteVideoAndClearChats(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.RecordChat(ctx, 1, "q", &models.ChatResponse{Response: "a"})
	require.NoError(t, err)
	_, err = store.RecordSearch(ctx, 1, "q", "standard", 0)
	require.NoError(t, err)
	_, err = store.RecordChat(ctx, 2, "q", &models.ChatResponse{Response: "a"})
	require.NoError(t, err)

	require.NoError(t, store.ClearChats(ctx, 2))
	chats, err := store.ListChats(ctx, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, chats)

	require.NoError(t, store.DeleteVideo(ctx, 1))
	chats, err = store.ListChats(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, chats)
	searches, err := store.ListSearches(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, searches)
}

func TestOpenReopensExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.RecordSearch(ctx, 9, "dog", "native", 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.ListSearches(ctx, 9, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open("/dev/null/history.db")
	assert.Error(t, err)
}
