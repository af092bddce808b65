package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anonchat/backend/internal/models"
)

type fakeStore struct {
	idleDeleted    int64
	messageDeleted int64
	old            []models.Message

	deleteOldCalls int
}

func (f *fakeStore) DeleteIdleRooms(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.idleDeleted, nil
}

func (f *fakeStore) MessagesOlderThan(ctx context.Context, cutoff time.Time) ([]models.Message, error) {
	return f.old, nil
}

func (f *fakeStore) DeleteOldMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteOldCalls++
	return f.messageDeleted, nil
}

type fakeArchiver struct {
	enabled bool
	err     error
	batches [][]models.Message
}

func (f *fakeArchiver) Enabled() bool { return f.enabled }

func (f *fakeArchiver) Put(ctx context.Context, messages []models.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.batches = append(f.batches, messages)
	return "messages/test.json", nil
}

type noopSweeper struct{}

func (noopSweeper) SweepStale(ctx context.Context) {}

func newTestJanitor(st *fakeStore, ar *fakeArchiver) *Janitor {
	return New(noopSweeper{}, st, ar, Config{
		SweepInterval:    time.Minute,
		CleanupInterval:  time.Hour,
		RoomIdleTTL:      24 * time.Hour,
		MessageRetention: 720 * time.Hour,
	})
}

func TestCleanupRooms(t *testing.T) {
	st := &fakeStore{idleDeleted: 3}
	j := newTestJanitor(st, &fakeArchiver{})

	n, err := j.CleanupRooms(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestCleanupMessagesArchivesBeforeDeleting(t *testing.T) {
	st := &fakeStore{
		messageDeleted: 2,
		old: []models.Message{
			{Content: "one"}, {Content: "two"},
		},
	}
	ar := &fakeArchiver{enabled: true}
	j := newTestJanitor(st, ar)

	n, err := j.CleanupMessages(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Len(t, ar.batches, 1)
	require.Len(t, ar.batches[0], 2)
}

func TestCleanupMessagesKeepsDataWhenArchiveFails(t *testing.T) {
	st := &fakeStore{old: []models.Message{{Content: "one"}}}
	ar := &fakeArchiver{enabled: true, err: errors.New("bucket gone")}
	j := newTestJanitor(st, ar)

	_, err := j.CleanupMessages(context.Background(), time.Now())
	require.Error(t, err)
	require.Zero(t, st.deleteOldCalls)
}

func TestCleanupMessagesSkipsDisabledArchive(t *testing.T) {
	st := &fakeStore{messageDeleted: 5, old: []models.Message{{Content: "one"}}}
	ar := &fakeArchiver{enabled: false}
	j := newTestJanitor(st, ar)

	n, err := j.CleanupMessages(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Empty(t, ar.batches)
}
