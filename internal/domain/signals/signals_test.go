package signals_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/signals"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeProfiles struct {
	skills   int64
	joinedAt time.Time
	err      error
}

func (f fakeProfiles) ProfileSignals(context.Context, string) (int64, time.Time, error) {
	return f.skills, f.joinedAt, f.err
}

type fakeActivity struct {
	activity *model.ExternalActivity
	err      error
}

func (f fakeActivity) ExternalActivity(context.Context, string) (*model.ExternalActivity, error) {
	return f.activity, f.err
}

type fakeContent struct{ posts, likes int64 }

func (f fakeContent) ContentStats(context.Context, string) (int64, int64, error) {
	return f.posts, f.likes, nil
}

type fakeCount struct {
	n   int64
	err error
}

func (f fakeCount) ProjectCount(context.Context, string) (int64, error)     { return f.n, f.err }
func (f fakeCount) EndorsementCount(context.Context, string) (int64, error) { return f.n, f.err }

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := signals.WithClock(func() time.Time { return now })
	ctx := context.Background()

	Convey("Given every source has data", t, func() {
		c := signals.NewCollector(signals.Sources{
			Profiles:     fakeProfiles{skills: 3, joinedAt: now.AddDate(0, 0, -60)},
			Activity:     fakeActivity{activity: &model.ExternalActivity{PublicRepos: 10, Followers: 5, TotalStars: 20, TotalCommits: 100}},
			Content:      fakeContent{posts: 4, likes: 9},
			Projects:     fakeCount{n: 2},
			Endorsements: fakeCount{n: 1},
		}, clock)

		Convey("When collecting", func() {
			snap, err := c.Collect(ctx, "user-1")

			Convey("Then the snapshot reflects each source", func() {
				So(err, ShouldBeNil)
				So(snap.UserID, ShouldEqual, "user-1")
				So(snap.SkillsCount, ShouldEqual, 3)
				So(snap.AccountAgeDays, ShouldEqual, 60)
				So(snap.ExternalActivity.PublicRepos, ShouldEqual, 10)
				So(snap.PostsCount, ShouldEqual, 4)
				So(snap.TotalLikes, ShouldEqual, 9)
				So(snap.ProjectsCount, ShouldEqual, 2)
				So(snap.EndorsementsCount, ShouldEqual, 1)
				So(snap.CollectedAt, ShouldEqual, now)
			})
		})
	})

	Convey("Given a user with no external sync and no optional sources", t, func() {
		c := signals.NewCollector(signals.Sources{
			Profiles: fakeProfiles{joinedAt: now.Add(-36 * time.Hour)},
			Activity: fakeActivity{},
		}, clock)

		Convey("When collecting", func() {
			snap, err := c.Collect(ctx, "user-2")

			Convey("Then missing signals are zero", func() {
				So(err, ShouldBeNil)
				So(snap.ExternalActivity, ShouldResemble, model.ExternalActivity{})
				So(snap.PostsCount, ShouldEqual, 0)
				So(snap.AccountAgeDays, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a join date in the future", t, func() {
		c := signals.NewCollector(signals.Sources{Profiles: fakeProfiles{joinedAt: now.Add(time.Hour)}}, clock)

		Convey("Then account age is clamped to zero", func() {
			snap, err := c.Collect(ctx, "user-3")
			So(err, ShouldBeNil)
			So(snap.AccountAgeDays, ShouldEqual, 0)
		})
	})

	Convey("Given an unknown user", t, func() {
		c := signals.NewCollector(signals.Sources{Profiles: fakeProfiles{err: model.ErrNotFound}}, clock)

		Convey("Then collection reports not found", func() {
			_, err := c.Collect(ctx, "ghost")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, model.ErrCollectorUnavailable), ShouldBeFalse)
		})
	})

	Convey("Given a failing store", t, func() {
		boom := errors.New("connection reset")
		c := signals.NewCollector(signals.Sources{
			Profiles:     fakeProfiles{skills: 1, joinedAt: now},
			Endorsements: fakeCount{err: boom},
		}, clock)

		Convey("Then collection aborts instead of defaulting to zero", func() {
			_, err := c.Collect(ctx, "user-4")
			So(errors.Is(err, model.ErrCollectorUnavailable), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, signals.SourceEndorsements)
		})
	})

	Convey("Given a collector without a profile source", t, func() {
		c := signals.NewCollector(signals.Sources{})

		Convey("Then collection is unavailable", func() {
			_, err := c.Collect(ctx, "user-5")
			So(errors.Is(err, model.ErrCollectorUnavailable), ShouldBeTrue)
		})
	})
}
