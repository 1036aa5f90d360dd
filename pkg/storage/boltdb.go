package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketJobs = []byte("jobs")

// BoltStore implements Store using BoltDB. A single shared handle plus the
// claim mutex serializes ClaimNext across all workers in the process; on
// multi-process deployments the store file must not be shared (bbolt takes an
// exclusive file lock, which enforces that).
type BoltStore struct {
	db      *bolt.DB
	claimMu sync.Mutex
}

// NewBoltStore opens (or creates) the job database at dbPath.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) CreateJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put([]byte(job.ID), data)
	})
}

func (s *BoltStore) GetJob(id string) (*types.Job, error) {
	var job types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobs(filter ListFilter) ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if filter.Status != "" && job.Status != filter.Status {
				return nil
			}
			if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
				return nil
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortJobsNewestFirst(jobs)
	return jobs, nil
}

// ClaimNext atomically selects the oldest queued job and transitions it to
// running with progress 10. The claim mutex plus a single read+update
// transaction guarantees no two workers ever see the same queued job.
func (s *BoltStore) ClaimNext() (*types.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var claimed *types.Job
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var oldest *types.Job
		err := b.ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.Status != types.JobStatusQueued {
				return nil
			}
			if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
				oldest = &job
			}
			return nil
		})
		if err != nil {
			return err
		}
		if oldest == nil {
			return nil
		}

		oldest.Status = types.JobStatusRunning
		oldest.Progress = 10
		oldest.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(oldest)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(oldest.ID), data); err != nil {
			return err
		}
		claimed = oldest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *BoltStore) UpdateJob(id string, fields UpdateFields) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var job types.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if fields.Status != nil {
			job.Status = *fields.Status
		}
		if fields.Progress != nil {
			job.Progress = *fields.Progress
		}
		if fields.Attempts != nil {
			job.Attempts = *fields.Attempts
		}
		if fields.ResultJSON != nil {
			job.ResultJSON = *fields.ResultJSON
		}
		if fields.Error != nil {
			job.Error = *fields.Error
		}
		job.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

// DeleteJobs removes job rows and any storage artifacts whose filename
// starts with the job id. Symlinks that resolve outside the storage root are
// skipped.
func (s *BoltStore) DeleteJobs(ids []string, storageRoot string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				continue
			}
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
			deleted++
			if storageRoot != "" {
				removeArtifacts(storageRoot, id)
			}
		}
		return nil
	})
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

// removeArtifacts deletes files under root whose name starts with the job
// id. Deletion errors are logged, not propagated: the row is already gone
// and a leftover artifact is recoverable by the retention job.
func removeArtifacts(root, jobID string) {
	logger := log.WithComponent("storage")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		logger.Warn().Err(err).Str("root", root).Msg("cannot resolve storage root")
		return
	}
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		logger.Warn().Err(err).Str("root", absRoot).Msg("cannot read storage root")
		return
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), jobID) {
			continue
		}
		p := filepath.Join(absRoot, entry.Name())
		if !pathInsideRoot(absRoot, p) {
			logger.Warn().Str("path", p).Msg("skipping artifact outside storage root")
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			logger.Warn().Err(err).Str("path", p).Msg("failed to remove artifact")
			continue
		}
		logger.Info().Str("job_id", jobID).Str("path", p).Msg("removed storage artifact")
	}
}

// pathInsideRoot resolves symlinks and verifies the target stays under root.
func pathInsideRoot(root, p string) bool {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Broken symlink or race; the lexical path is under root, removing
		// the link itself is safe.
		return true
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func sortJobsNewestFirst(jobs []*types.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
