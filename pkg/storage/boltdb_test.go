package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cisco7507/LangId-mr/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "langid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeJob(id string, status types.JobStatus, createdAt time.Time) *types.Job {
	return &types.Job{
		ID:        id,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)

	job := makeJob("node-a-123", types.JobStatusQueued, time.Now().UTC())
	job.OriginalFilename = "clip.wav"
	job.TargetLang = "fr"
	require.NoError(t, store.CreateJob(job))

	got, err := store.GetJob("node-a-123")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, got.Status)
	assert.Equal(t, "clip.wav", got.OriginalFilename)
	assert.Equal(t, "fr", got.TargetLang)
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, store.CreateJob(makeJob("a", types.JobStatusQueued, base.Add(-2*time.Hour))))
	require.NoError(t, store.CreateJob(makeJob("b", types.JobStatusSucceeded, base.Add(-1*time.Hour))))
	require.NoError(t, store.CreateJob(makeJob("c", types.JobStatusQueued, base)))

	jobs, err := store.ListJobs(ListFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
	assert.Equal(t, "a", jobs[2].ID)
}

func TestListJobsFilters(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, store.CreateJob(makeJob("old", types.JobStatusSucceeded, base.Add(-10*time.Minute))))
	require.NoError(t, store.CreateJob(makeJob("new", types.JobStatusSucceeded, base)))
	require.NoError(t, store.CreateJob(makeJob("queued", types.JobStatusQueued, base)))

	byStatus, err := store.ListJobs(ListFilter{Status: types.JobStatusSucceeded})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	bySince, err := store.ListJobs(ListFilter{Since: base.Add(-time.Minute)})
	require.NoError(t, err)
	assert.Len(t, bySince, 2)
	for _, j := range bySince {
		assert.NotEqual(t, "old", j.ID)
	}
}

func TestClaimNextOldestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, store.CreateJob(makeJob("newer", types.JobStatusQueued, base)))
	require.NoError(t, store.CreateJob(makeJob("older", types.JobStatusQueued, base.Add(-time.Hour))))
	require.NoError(t, store.CreateJob(makeJob("done", types.JobStatusSucceeded, base.Add(-2*time.Hour))))

	claimed, err := store.ClaimNext()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "older", claimed.ID)
	assert.Equal(t, types.JobStatusRunning, claimed.Status)
	assert.Equal(t, 10, claimed.Progress)

	persisted, err := store.GetJob("older")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusRunning, persisted.Status)
}

func TestClaimNextEmpty(t *testing.T) {
	store := newTestStore(t)

	claimed, err := store.ClaimNext()
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimNextConcurrent(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	const jobs = 8
	for i := 0; i < jobs; i++ {
		id := string(rune('a' + i))
		require.NoError(t, store.CreateJob(makeJob(id, types.JobStatusQueued, base.Add(time.Duration(i)*time.Second))))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.ClaimNext()
				if err != nil || job == nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestUpdateJobPartial(t *testing.T) {
	store := newTestStore(t)

	job := makeJob("j1", types.JobStatusRunning, time.Now().UTC())
	job.Attempts = 1
	require.NoError(t, store.CreateJob(job))

	err := store.UpdateJob("j1", UpdateFields{
		Status:     StatusPtr(types.JobStatusSucceeded),
		Progress:   IntPtr(100),
		ResultJSON: StringPtr(`{"language":"en"}`),
	})
	require.NoError(t, err)

	got, err := store.GetJob("j1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSucceeded, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, `{"language":"en"}`, got.ResultJSON)
	assert.Equal(t, 1, got.Attempts, "untouched field must survive partial update")
}

func TestUpdateJobNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateJob("nope", UpdateFields{Progress: IntPtr(50)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteJobsRemovesArtifacts(t *testing.T) {
	store := newTestStore(t)
	root := t.TempDir()

	require.NoError(t, store.CreateJob(makeJob("j1", types.JobStatusSucceeded, time.Now().UTC())))
	require.NoError(t, store.CreateJob(makeJob("j2", types.JobStatusFailed, time.Now().UTC())))

	artifact := filepath.Join(root, "j1-input.wav")
	require.NoError(t, os.WriteFile(artifact, []byte("data"), 0o644))
	other := filepath.Join(root, "j2-input.wav")
	require.NoError(t, os.WriteFile(other, []byte("data"), 0o644))

	n, err := store.DeleteJobs([]string{"j1", "ghost"}, root)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetJob("j1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(other)
	assert.NoError(t, err, "other job's artifact must survive")
}

func TestDeleteJobsSkipsEscapingSymlink(t *testing.T) {
	store := newTestStore(t)
	root := t.TempDir()
	outside := t.TempDir()

	require.NoError(t, store.CreateJob(makeJob("j1", types.JobStatusSucceeded, time.Now().UTC())))

	target := filepath.Join(outside, "precious.txt")
	require.NoError(t, os.WriteFile(target, []byte("keep me"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "j1-link")))

	_, err := store.DeleteJobs([]string{"j1"}, root)
	require.NoError(t, err)

	_, err = os.Stat(target)
	assert.NoError(t, err, "symlink target outside the root must not be deleted")
}
