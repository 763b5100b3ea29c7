package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwnode/dwnd/internal/model"
	"github.com/dwnode/dwnd/internal/sync"
)

func TestReconcileClassifiesRecords(t *testing.T) {
	t.Parallel()

	local := []model.LocalRecordRef{
		{RecordID: "only-local", LatestEntryID: "e1"},
		{RecordID: "both-same", LatestEntryID: "e2"},
		{RecordID: "both-diff", LatestEntryID: "e3"},
	}

	remote := []model.LocalRecordRef{
		{RecordID: "both-same", LatestEntryID: "e2"},
		{RecordID: "both-diff", LatestEntryID: "e3-newer"},
		{RecordID: "only-remote", LatestEntryID: "e4"},
	}

	result := sync.Reconcile(local, remote)

	assert.ElementsMatch(t, []string{"only-local"}, result.LocalOnly)
	assert.ElementsMatch(t, []string{"only-remote"}, result.RemoteOnly)
	assert.ElementsMatch(t, []string{"both-diff"}, result.Conflict)
}

func TestQueueEnqueueRejectsWhenFull(t *testing.T) {
	t.Parallel()

	queue := sync.NewQueue(1)

	require.NoError(t, queue.Enqueue(sync.WorkItem{RecordID: "rec-1"}))

	err := queue.Enqueue(sync.WorkItem{RecordID: "rec-2"})
	assert.ErrorIs(t, err, sync.ErrQueueFull)

	item := <-queue.Items()
	assert.Equal(t, "rec-1", item.RecordID)
}

type fakeDialer struct {
	client sync.RemoteClient
	err    error
}

func (f fakeDialer) Dial(string) (sync.RemoteClient, error) { return f.client, f.err }

type fakeRemote struct {
	manifest []model.LocalRecordRef
}

func (f fakeRemote) Manifest(context.Context) ([]model.LocalRecordRef, error) { return f.manifest, nil }
func (f fakeRemote) Fetch(context.Context, string) (model.Message, error)     { return model.Message{}, nil }
func (f fakeRemote) Push(context.Context, string, model.Message) error       { return nil }

type fakeLocalManifest struct {
	refs []model.LocalRecordRef
}

func (f fakeLocalManifest) PrepareSync(context.Context) ([]model.LocalRecordRef, error) {
	return f.refs, nil
}

func TestSchedulerEnqueuesRemoteOnlyAndConflicts(t *testing.T) {
	t.Parallel()

	local := fakeLocalManifest{refs: []model.LocalRecordRef{{RecordID: "rec-1", LatestEntryID: "e1"}}}
	remote := fakeRemote{manifest: []model.LocalRecordRef{
		{RecordID: "rec-1", LatestEntryID: "e1-newer"},
		{RecordID: "rec-2", LatestEntryID: "e2"},
	}}

	queue := sync.NewQueue(10)
	scheduler := sync.NewScheduler(local, fakeDialer{client: remote}, queue, time.Hour, []string{"peer-a"})

	ctx, cancel := context.WithCancel(context.Background())
	stopCh := make(chan struct{})

	go func() {
		scheduler.Run(ctx, stopCh)
	}()

	seen := map[string]bool{}

	for i := 0; i < 2; i++ {
		select {
		case item := <-queue.Items():
			seen[item.RecordID] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for scheduled work items")
		}
	}

	close(stopCh)
	cancel()

	assert.True(t, seen["rec-1"])
	assert.True(t, seen["rec-2"])
}
