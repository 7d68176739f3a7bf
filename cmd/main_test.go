package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/trustscore/internal/adapters/repository"
	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
	"github.com/okian/trustscore/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

// execute runs the root command against a fresh output buffer.
func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedProfile(t *testing.T, dsn, userID string) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = repository.Close(db) }()

	store := repository.NewProfileStore(db)
	if err := store.CreateProfile(ctx, userID, time.Now().UTC().AddDate(0, 0, -60)); err != nil {
		t.Fatal(err)
	}
	if err := store.AddSkills(ctx, userID, "go", "sql", "kubernetes"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertExternalActivity(ctx, userID, model.ExternalActivity{
		PublicRepos: 10, Followers: 5, TotalStars: 20, TotalCommits: 100,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestParseWeights(t *testing.T) {
	convey.Convey("Given KEY=VALUE arguments", t, func() {
		convey.Convey("When they are well formed", func() {
			w, err := parseWeights([]string{"skills=12", " posts = 1.5"})

			convey.Convey("Then they become a partial config", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w[scoring.KeySkills], convey.ShouldEqual, 12)
				convey.So(w[scoring.KeyPosts], convey.ShouldEqual, 1.5)
			})
		})

		convey.Convey("When an argument is malformed", func() {
			for _, args := range [][]string{{"skills"}, {"=3"}, {"skills=many"}, {"karma=1"}, {"skills=-2"}} {
				_, err := parseWeights(args)
				convey.So(errors.Is(err, model.ErrInvalidWeightConfig), convey.ShouldBeTrue)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	convey.Convey("Given a database file with one profile", t, func() {
		dsn := filepath.Join(t.TempDir(), "trust.db")
		t.Setenv("TRUST_DB_DRIVER", "sqlite")
		t.Setenv("TRUST_DB_DSN", dsn)
		t.Setenv("TRUST_LOG_LEVEL", "error")
		seedProfile(t, dsn, "u1")

		convey.Convey("When recalculating the user", func() {
			out, err := execute("recalculate", "u1")
			convey.So(err, convey.ShouldBeNil)

			var diff types.Diff
			convey.So(json.Unmarshal([]byte(out), &diff), convey.ShouldBeNil)

			convey.Convey("Then the settled diff is printed", func() {
				convey.So(diff.NewScore, convey.ShouldEqual, 147)
				convey.So(diff.Changed, convey.ShouldBeTrue)
			})

			convey.Convey("And the history shows the admin event", func() {
				out, err := execute("history", "u1", "--limit", "5")
				convey.So(err, convey.ShouldBeNil)
				var page types.HistoryPage
				convey.So(json.Unmarshal([]byte(out), &page), convey.ShouldBeNil)
				convey.So(page.Total, convey.ShouldEqual, 1)
				convey.So(page.Events[0].Reason, convey.ShouldEqual, model.ReasonManualAdmin)
			})

			convey.Convey("And the ledger verifies and audits clean", func() {
				out, err := execute("verify", "u1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "u1\tok")

				_, err = execute("audit", "u1")
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When asking for a breakdown", func() {
			out, err := execute("breakdown", "u1")
			convey.So(err, convey.ShouldBeNil)
			var rep types.Reputation
			convey.So(json.Unmarshal([]byte(out), &rep), convey.ShouldBeNil)
			convey.So(rep.Score, convey.ShouldEqual, 147)
			convey.So(rep.Stored, convey.ShouldEqual, 0)
		})

		convey.Convey("When changing weights", func() {
			_, err := execute("weights", "set", "skills=12")
			convey.So(err, convey.ShouldBeNil)

			out, err := execute("weights", "get")
			convey.So(err, convey.ShouldBeNil)
			var w types.Weights
			convey.So(json.Unmarshal([]byte(out), &w), convey.ShouldBeNil)
			convey.So(w.Overrides[scoring.KeySkills], convey.ShouldEqual, 12)
		})

		convey.Convey("When the user is unknown", func() {
			_, err := execute("breakdown", "ghost")
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When triggering without Kafka", func() {
			_, err := execute("trigger", "u1")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
