package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trustscore/internal/adapters/repository"
	service "github.com/okian/trustscore/internal/app"
	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/signals"
	"github.com/okian/trustscore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	profiles *repository.ProfileStore
	ledger   *repository.Ledger
	weights  *repository.WeightStore
	deps     service.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.Open(ctx, repository.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = repository.Close(db) })

	f := &fixture{
		profiles: repository.NewProfileStore(db),
		ledger:   repository.NewLedger(db),
		weights:  repository.NewWeightStore(db),
	}
	collector := signals.NewCollector(signals.Sources{
		Profiles:     f.profiles,
		Activity:     f.profiles,
		Content:      f.profiles,
		Projects:     f.profiles,
		Endorsements: f.profiles,
	}, signals.WithClock(func() time.Time { return fixedNow }))
	f.deps = service.Deps{Profiles: f.profiles, Collector: collector, Weights: f.weights, Ledger: f.ledger}
	return f
}

// seedScenario stores the reference profile that scores 147.
func (f *fixture) seedScenario(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	must(t, f.profiles.CreateProfile(ctx, userID, fixedNow.AddDate(0, 0, -60)))
	must(t, f.profiles.AddSkills(ctx, userID, "go", "sql", "kubernetes"))
	must(t, f.profiles.UpsertExternalActivity(ctx, userID, model.ExternalActivity{
		PublicRepos: 10, Followers: 5, TotalStars: 20, TotalCommits: 100,
	}))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
