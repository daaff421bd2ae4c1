package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolwatch/cascade"
	"github.com/jonwraymond/toolwatch/record"
)

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	incidents := cascade.NewMemoryStore()

	now := time.Now().UTC()
	store.UpsertSample(ctx, record.Sample{TargetID: "jira", Metric: "m", Value: 1, At: now.Add(-30 * 24 * time.Hour)})
	store.UpsertSample(ctx, record.Sample{TargetID: "jira", Metric: "m", Value: 2, At: now})

	incidents.Upsert(ctx, cascade.Incident{
		ID:         uuid.New(),
		RootCause:  "identity-provider",
		Affected:   []string{"gateway"},
		Severity:   cascade.SeverityCritical,
		UserImpact: cascade.ImpactCompleteOutage,
		DetectedAt: now.Add(-60 * 24 * time.Hour),
		StartedAt:  now.Add(-60 * 24 * time.Hour),
		UpdatedAt:  now.Add(-59 * 24 * time.Hour),
		Resolution: cascade.ResolutionResolved,
	})
	stillOpen := cascade.Incident{
		ID:         uuid.New(),
		RootCause:  "gateway",
		Affected:   []string{"catalog-service"},
		Severity:   cascade.SeverityCritical,
		UserImpact: cascade.ImpactCompleteOutage,
		DetectedAt: now.Add(-60 * 24 * time.Hour),
		StartedAt:  now.Add(-60 * 24 * time.Hour),
		UpdatedAt:  now.Add(-60 * 24 * time.Hour),
		Resolution: cascade.ResolutionOngoing,
	}
	incidents.Upsert(ctx, stillOpen)

	sweeper, err := NewSweeper(SweeperConfig{Store: store, Incidents: incidents})
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	sweeper.Sweep(ctx)

	buckets, err := store.Buckets(ctx, "jira", "m", now.Add(-90*24*time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Buckets: %v", err)
	}
	if len(buckets) != 1 {
		t.Errorf("buckets after sweep = %d, want 1 (expired pruned)", len(buckets))
	}

	all, err := incidents.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("incidents after sweep = %d, want 1", len(all))
	}
	// An open incident is never pruned, however stale.
	if all[0].ID != stillOpen.ID {
		t.Errorf("surviving incident = %v, want the ongoing one", all[0].ID)
	}
}

func TestNewSweeper_RejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(SweeperConfig{Store: record.NewMemoryStore(), Schedule: "not a schedule"})
	if err == nil {
		t.Fatal("NewSweeper accepted an invalid cron expression")
	}
}
