package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueAppliesEvents(t *testing.T) {
	ResetForTest()
	q := NewQueue()
	done := make(chan struct{})
	go func() {
		q.Run()
		close(done)
	}()

	q.Publish(Event{Type: EventJobFinished, Status: "succeeded"})
	q.Publish(Event{Type: EventJobFinished, Status: "failed"})
	q.Publish(Event{Type: EventJobFinished, Status: "failed"})

	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	snap := Snapshot()
	assert.Equal(t, int64(1), snap.JobsFinished["succeeded"])
	assert.Equal(t, int64(2), snap.JobsFinished["failed"])
}

func TestQueueDrainsOnClose(t *testing.T) {
	ResetForTest()
	q := NewQueue()

	// Events published before the consumer ever runs must still land.
	for i := 0; i < 10; i++ {
		q.Publish(Event{Type: EventJobFinished, Status: "succeeded"})
	}

	done := make(chan struct{})
	go func() {
		q.Run()
		close(done)
	}()
	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, int64(10), Snapshot().JobsFinished["succeeded"])
}

func TestQueuePublishNeverBlocks(t *testing.T) {
	q := NewQueue()
	// No consumer running; overflow past capacity must drop, not stall.
	finished := make(chan struct{})
	go func() {
		for i := 0; i < queueCapacity+100; i++ {
			q.Publish(Event{Type: EventJobRunningInc})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full queue")
	}
}

func TestLocalStateCounters(t *testing.T) {
	ResetForTest()
	IncJobsSubmitted("node-a", "node-b")
	IncJobsSubmitted("node-a", "node-b")
	IncJobsOwned("node-a")
	JobsActiveInc("node-a")
	JobsActiveInc("node-a")
	JobsActiveDec("node-a")

	snap := Snapshot()
	assert.Equal(t, int64(2), snap.JobsSubmitted["node-a,node-b"])
	assert.Equal(t, int64(1), snap.JobsOwned["node-a"])
	assert.Equal(t, int64(1), snap.JobsActive["node-a"])
}

func TestJobsActiveNeverNegative(t *testing.T) {
	ResetForTest()
	JobsActiveDec("node-a")
	require.Equal(t, int64(0), Snapshot().JobsActive["node-a"])
}
