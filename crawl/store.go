package crawl

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/scoutwork/harvest/models"
)

const (
	jobRetention  = time.Hour
	jobSweepEvery = 5 * time.Minute
)

// Store keeps crawl jobs in memory so callers can poll their progress.
// Finished jobs are retained for an hour, then swept. Safe for
// concurrent use.
type Store struct {
	jobs sync.Map // id -> *trackedJob
}

type trackedJob struct {
	mu  sync.Mutex
	job models.CrawlJob
}

func NewStore() *Store {
	s := &Store{}
	go s.sweepLoop()
	return s
}

// Create registers a new job in "processing" state and returns its ID.
func (s *Store) Create(unitsTotal int) string {
	id := newJobID()
	s.jobs.Store(id, &trackedJob{job: models.CrawlJob{
		ID:         id,
		Status:     "processing",
		CreatedAt:  time.Now().Unix(),
		UnitsTotal: unitsTotal,
	}})
	return id
}

// Update applies fn to the job under its lock.
func (s *Store) Update(id string, fn func(*models.CrawlJob)) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return
	}
	t := v.(*trackedJob)
	t.mu.Lock()
	fn(&t.job)
	t.mu.Unlock()
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (models.CrawlJob, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return models.CrawlJob{}, false
	}
	t := v.(*trackedJob)
	t.mu.Lock()
	snapshot := t.job
	snapshot.Records = append([]models.Record(nil), t.job.Records...)
	snapshot.Errors = append([]string(nil), t.job.Errors...)
	snapshot.RecordsPerUnit = append([]int(nil), t.job.RecordsPerUnit...)
	t.mu.Unlock()
	return snapshot, true
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(jobSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-jobRetention).Unix()
		s.jobs.Range(func(key, value any) bool {
			t := value.(*trackedJob)
			t.mu.Lock()
			expired := t.job.CreatedAt < cutoff && t.job.Status != "processing"
			t.mu.Unlock()
			if expired {
				s.jobs.Delete(key)
			}
			return true
		})
	}
}

func newJobID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Extremely unlikely; fall back to a time-derived ID.
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000")))[:16]
	}
	return hex.EncodeToString(b[:])
}
