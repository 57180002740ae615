// Package sweeper periodically reclaims records from the in-memory code and
// refresh stores (each store's Sweep decides which: expired codes; expired
// or revoked refresh tokens) (spec §4.6/§4.7: "expired
// entries are swept lazily... not required for correctness"). This is a
// memory-bounding optimization only — Consume/Rotate already reject
// expired records on the read path regardless of whether a sweep ran.
//
// Grounded on github.com/robfig/cron/v3, present in the teacher's go.mod
// for its own scheduled-job runner; the Redis-backed store variants in
// internal/store/redisstore need no equivalent since Redis reclaims keys
// via their own TTL.
package sweeper

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/uitsmijter/uitsmijter/internal/logger"
)

// CodeSweeper is the subset of internal/codes.Store's surface the
// sweeper depends on.
type CodeSweeper interface {
	Sweep(now time.Time) int
}

// RefreshSweeper is the subset of internal/refresh.Store's surface the
// sweeper depends on.
type RefreshSweeper interface {
	Sweep(now time.Time) int
}

// Sweeper runs a cron schedule that sweeps both stores.
type Sweeper struct {
	cron    *cron.Cron
	codes   CodeSweeper
	refresh RefreshSweeper
}

// New builds a Sweeper. schedule is a standard 5-field cron expression
// (e.g. "*/5 * * * *" to sweep every five minutes); an empty schedule
// defaults to every five minutes.
func New(schedule string, codes CodeSweeper, refresh RefreshSweeper) (*Sweeper, error) {
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	s := &Sweeper{
		cron:    cron.New(),
		codes:   codes,
		refresh: refresh,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron schedule in the background. Stop via Sweeper.Stop.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() { s.cron.Stop() }

func (s *Sweeper) run() {
	now := time.Now()
	codesRemoved := s.codes.Sweep(now)
	refreshRemoved := s.refresh.Sweep(now)
	logger.Engine().Debug().
		Int("codes_removed", codesRemoved).
		Int("refresh_removed", refreshRemoved).
		Msg("swept expired authorization state")
}
