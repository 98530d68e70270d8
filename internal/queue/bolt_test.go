package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltQueueFIFO(t *testing.T) {
	q, err := NewBoltQueue(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	_, err = q.Enqueue(ctx, Task{WorkspaceID: "ws1", DriftID: "a"}, Options{})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = q.Enqueue(ctx, Task{WorkspaceID: "ws1", DriftID: "b"}, Options{})
	require.NoError(t, err)

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.DriftID)

	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "b", second.DriftID)

	none, err := q.Dequeue(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBoltQueueDelayedTaskNotDueYet(t *testing.T) {
	q, err := NewBoltQueue(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	_, err = q.Enqueue(ctx, Task{WorkspaceID: "ws1", DriftID: "later"}, Options{DelaySeconds: 60})
	require.NoError(t, err)

	got, err := q.Dequeue(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the delayed task stays parked")
}

func TestBoltQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	q, err := NewBoltQueue(path)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Task{WorkspaceID: "ws1", DriftID: "persisted"}, Options{})
	require.NoError(t, err)
	require.NoError(t, q.Close())

	reopened, err := NewBoltQueue(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "persisted", got.DriftID)
}
