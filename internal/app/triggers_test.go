package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	service "github.com/okian/trustscore/internal/app"
	"github.com/okian/trustscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type downBus struct {
	mu    sync.Mutex
	calls int
}

func (b *downBus) Publish(context.Context, model.RecomputeRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return errors.New("broker unreachable")
}

func TestTriggers(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(t)
		f.seedScenario(t, "u1")
		svc := service.New(f.deps, service.WithWorkerCount(2), service.WithQueueSize(16))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("When an endorsement is added", func() {
			_, err := f.profiles.AddEndorsement(ctx, "u1", "u2")
			So(err, ShouldBeNil)
			svc.EndorsementAdded(ctx, "u1")

			Convey("Then the score eventually includes it", func() {
				So(eventually(func() bool {
					s, _ := f.profiles.ProfileScore(ctx, "u1")
					return s == 152
				}), ShouldBeTrue)

				page, err := svc.History(ctx, "u1", 1, 0)
				So(err, ShouldBeNil)
				So(page.Events[0].Reason, ShouldEqual, model.ReasonEndorsementAdded)
			})
		})

		Convey("When an endorsement is added and then removed", func() {
			_, err := f.profiles.AddEndorsement(ctx, "u1", "u2")
			So(err, ShouldBeNil)
			svc.EndorsementAdded(ctx, "u1")
			So(eventually(func() bool {
				n, _ := f.ledger.Count(ctx, "u1")
				return n == 1
			}), ShouldBeTrue)

			removed, err := f.profiles.RemoveEndorsement(ctx, "u1", "u2")
			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)
			svc.EndorsementRemoved(ctx, "u1")

			Convey("Then the removal settles as its own event back at the base score", func() {
				So(eventually(func() bool {
					n, _ := f.ledger.Count(ctx, "u1")
					return n == 2
				}), ShouldBeTrue)

				page, err := svc.History(ctx, "u1", 2, 0)
				So(err, ShouldBeNil)
				So(page.Events[0].Reason, ShouldEqual, model.ReasonEndorsementRemoved)
				So(page.Events[0].PreviousScore, ShouldEqual, 152)
				So(page.Events[0].NewScore, ShouldEqual, 147)
				So(page.Events[1].Reason, ShouldEqual, model.ReasonEndorsementAdded)

				s, _ := f.profiles.ProfileScore(ctx, "u1")
				So(s, ShouldEqual, 147)
				So(svc.Verify(ctx, "u1"), ShouldBeNil)
			})
		})

		Convey("When an external sync completes", func() {
			svc.ExternalSyncCompleted(ctx, "u1")

			Convey("Then the event carries the sync reason", func() {
				So(eventually(func() bool {
					n, _ := f.ledger.Count(ctx, "u1")
					return n == 1
				}), ShouldBeTrue)
				page, _ := svc.History(ctx, "u1", 1, 0)
				So(page.Events[0].Reason, ShouldEqual, model.ReasonExternalSync)
			})
		})

		Convey("When a recompute is requested explicitly", func() {
			id, err := svc.RequestRecompute(ctx, "u1", "")
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			Convey("Then it settles with the default reason", func() {
				So(eventually(func() bool {
					s, _ := f.profiles.ProfileScore(ctx, "u1")
					return s == 147
				}), ShouldBeTrue)
			})
		})

		Convey("When the input is invalid", func() {
			_, err := svc.RequestRecompute(ctx, "  ", model.ReasonRecalculation)
			So(errors.Is(err, service.ErrInvalidUser), ShouldBeTrue)

			_, err = svc.RequestRecompute(ctx, "u1", model.Reason("karma"))
			So(errors.Is(err, model.ErrInvalidReason), ShouldBeTrue)
		})

		Convey("When a trigger names an unknown user", func() {
			svc.EndorsementAdded(ctx, "ghost")

			Convey("Then it is dropped instead of retried", func() {
				So(eventually(func() bool {
					return svc.GetStats()["queueLength"] == 0
				}), ShouldBeTrue)
				So(svc.RetryPending(), ShouldEqual, 0)
			})
		})

		Convey("Then stats report the running pool", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 16)
		})
	})
}

func TestHandle(t *testing.T) {
	Convey("Given a started service and a delivered request", t, func() {
		f := newFixture(t)
		f.seedScenario(t, "u1")
		svc := service.New(f.deps, service.WithWorkerCount(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		req := model.RecomputeRequest{ID: "req-1", UserID: "u1", Reason: model.ReasonExternalSync}
		So(svc.Handle(ctx, req), ShouldBeNil)

		Convey("When the same request is redelivered after signals changed", func() {
			So(f.profiles.AddProject(ctx, "u1", "compiler"), ShouldBeNil)
			So(svc.Handle(ctx, req), ShouldBeNil)

			Convey("Then it is skipped", func() {
				s, _ := f.profiles.ProfileScore(ctx, "u1")
				So(s, ShouldEqual, 147)
				n, _ := f.ledger.Count(ctx, "u1")
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When a new request arrives", func() {
			So(f.profiles.AddProject(ctx, "u1", "compiler"), ShouldBeNil)
			So(svc.Handle(ctx, model.RecomputeRequest{ID: "req-2", UserID: "u1"}), ShouldBeNil)

			Convey("Then it is processed", func() {
				s, _ := f.profiles.ProfileScore(ctx, "u1")
				So(s, ShouldEqual, 152)
			})
		})
	})
}

func TestStopAfterCancel(t *testing.T) {
	Convey("Given requests queued on a service whose start context is cancelled", t, func() {
		f := newFixture(t)
		users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
		for _, u := range users {
			f.seedScenario(t, u)
		}
		svc := service.New(f.deps, service.WithWorkerCount(1), service.WithQueueSize(16))
		ctx, cancel := context.WithCancel(context.Background())
		So(svc.Start(ctx), ShouldBeNil)

		for _, u := range users {
			_, err := svc.RequestRecompute(ctx, u, model.ReasonRecalculation)
			So(err, ShouldBeNil)
		}
		cancel()

		Convey("When the service is stopped", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then every queued request was settled", func() {
				for _, u := range users {
					s, _ := f.profiles.ProfileScore(context.Background(), u)
					So(s, ShouldEqual, 147)
				}
				So(svc.RetryPending(), ShouldEqual, 0)
			})
		})
	})
}

func TestRetrySweep(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		f := newFixture(t)
		f.seedScenario(t, "u1")
		svc := service.New(f.deps, service.WithWorkerCount(1))
		ctx := context.Background()

		Convey("When a trigger fires", func() {
			_, err := svc.RequestRecompute(ctx, "u1", model.ReasonEndorsementAdded)

			Convey("Then the request is parked rather than lost", func() {
				So(err, ShouldBeNil)
				So(svc.RetryPending(), ShouldEqual, 1)
			})

			Convey("And a sweep after start settles it", func() {
				So(svc.Start(ctx), ShouldBeNil)
				Reset(func() { _ = svc.Stop(context.Background()) })

				So(svc.SweepRetries(ctx), ShouldEqual, 1)
				So(svc.RetryPending(), ShouldEqual, 0)
				So(eventually(func() bool {
					s, _ := f.profiles.ProfileScore(ctx, "u1")
					return s == 147
				}), ShouldBeTrue)
			})
		})
	})

	Convey("Given an external bus that is down", t, func() {
		f := newFixture(t)
		bus := &downBus{}
		ctx := context.Background()

		Convey("When requests keep failing past the attempt limit", func() {
			svc := service.New(f.deps, service.WithPublisher(bus), service.WithRetryMaxAttempts(1))
			_, err := svc.RequestRecompute(ctx, "u1", model.ReasonRecalculation)
			So(err, ShouldBeNil)

			So(svc.SweepRetries(ctx), ShouldEqual, 0)
			So(svc.RetryPending(), ShouldEqual, 1)

			So(svc.SweepRetries(ctx), ShouldEqual, 0)

			Convey("Then they are dropped", func() {
				So(svc.RetryPending(), ShouldEqual, 0)
				So(bus.calls, ShouldEqual, 2)
			})
		})

		Convey("When the retry buffer is full", func() {
			svc := service.New(f.deps, service.WithPublisher(bus), service.WithRetryBufferSize(1))
			_, err := svc.RequestRecompute(ctx, "u1", model.ReasonRecalculation)
			So(err, ShouldBeNil)

			_, err = svc.RequestRecompute(ctx, "u1", model.ReasonRecalculation)

			Convey("Then the caller sees backpressure", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
				So(svc.RetryPending(), ShouldEqual, 1)
			})
		})

		Convey("When a trigger fires while the buffer is full", func() {
			svc := service.New(f.deps, service.WithPublisher(bus), service.WithRetryBufferSize(1))
			svc.EndorsementAdded(ctx, "u1")
			svc.EndorsementRemoved(ctx, "u1")

			Convey("Then the caller is not failed", func() {
				So(svc.RetryPending(), ShouldEqual, 1)
			})
		})
	})
}

func TestStartStop(t *testing.T) {
	Convey("Given a service", t, func() {
		f := newFixture(t)
		svc := service.New(f.deps, service.WithWorkerCount(1))
		ctx := context.Background()

		Convey("When enqueueing before start", func() {
			err := svc.Enqueue(ctx, model.RecomputeRequest{ID: "x", UserID: "u1"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldBeFalse)
		})

		Convey("When the retry schedule is invalid", func() {
			bad := service.New(f.deps, service.WithRetrySchedule("every now and then"))
			So(bad.Start(ctx), ShouldNotBeNil)
		})
	})
}
