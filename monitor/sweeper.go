package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/toolwatch/cascade"
	"github.com/jonwraymond/toolwatch/observe"
	"github.com/jonwraymond/toolwatch/record"
)

const (
	// DefaultSweepSchedule runs retention at the top of every hour.
	DefaultSweepSchedule = "0 * * * *"

	// DefaultBucketRetention keeps aggregated metric buckets for a week.
	DefaultBucketRetention = 7 * 24 * time.Hour

	// DefaultIncidentRetention keeps resolved incidents for thirty days.
	DefaultIncidentRetention = 30 * 24 * time.Hour
)

// SweeperConfig configures the retention sweeper.
type SweeperConfig struct {
	// Store holds the metric buckets to prune. Required.
	Store record.Store

	// Incidents optionally holds resolved incidents to prune.
	Incidents cascade.Store

	// Schedule is a cron expression. Default: hourly.
	Schedule string

	// BucketRetention bounds how long buckets live after their period
	// ends. Default: 7 days.
	BucketRetention time.Duration

	// IncidentRetention bounds how long resolved incidents live after
	// their last update. Default: 30 days.
	IncidentRetention time.Duration

	// Logger receives sweep outcomes. Default: no-op logger.
	Logger observe.Logger
}

// Sweeper prunes expired metric buckets and resolved incidents on a
// cron schedule, keeping storage bounded over long uptimes.
type Sweeper struct {
	cron              *cron.Cron
	store             record.Store
	incidents         cascade.Store
	bucketRetention   time.Duration
	incidentRetention time.Duration
	logger            observe.Logger
}

// NewSweeper creates a sweeper and registers its schedule. Call Start
// to begin sweeping.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if cfg.BucketRetention <= 0 {
		cfg.BucketRetention = DefaultBucketRetention
	}
	if cfg.IncidentRetention <= 0 {
		cfg.IncidentRetention = DefaultIncidentRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}

	s := &Sweeper{
		cron:              cron.New(),
		store:             cfg.Store,
		incidents:         cfg.Incidents,
		bucketRetention:   cfg.BucketRetention,
		incidentRetention: cfg.IncidentRetention,
		logger:            cfg.Logger,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("monitor: invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins scheduled sweeping.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one retention pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	pruned, err := s.store.PruneBuckets(ctx, now.Add(-s.bucketRetention))
	if err != nil {
		s.logger.Error(ctx, "bucket retention sweep failed",
			observe.Field{Key: "error", Value: err.Error()},
		)
	} else if pruned > 0 {
		s.logger.Info(ctx, "pruned expired metric buckets",
			observe.Field{Key: "pruned", Value: pruned},
		)
	}

	if s.incidents == nil {
		return
	}
	pruned, err = s.incidents.PruneResolved(ctx, now.Add(-s.incidentRetention))
	if err != nil {
		s.logger.Error(ctx, "incident retention sweep failed",
			observe.Field{Key: "error", Value: err.Error()},
		)
	} else if pruned > 0 {
		s.logger.Info(ctx, "pruned resolved incidents",
			observe.Field{Key: "pruned", Value: pruned},
		)
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.Sweep(ctx)
}
