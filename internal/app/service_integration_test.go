package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/wcs/internal/adapters/repository"
	service "github.com/okian/wcs/internal/app"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// gatedStore blocks every SaveScore until release is closed, or fails it
// while failing is set.
type gatedStore struct {
	*repository.MemoryStore
	release chan struct{}

	mu      sync.Mutex
	failing bool
}

func (g *gatedStore) SaveScore(ctx context.Context, rec model.ScoreRecord) error {
	<-g.release
	g.mu.Lock()
	failing := g.failing
	g.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return g.MemoryStore.SaveScore(ctx, rec)
}

func (g *gatedStore) setFailing(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing = v
}

func TestServiceIntegration_Async(t *testing.T) {
	Convey("Given a service on a SQLite store", t, func() {
		ctx := context.Background()
		store, err := repository.OpenSQLite(ctx, repository.MemoryDSN)
		So(err, ShouldBeNil)
		svc := startService(
			service.WithStore(store),
			service.WithWorkerCount(4),
			service.WithQueueSize(100),
		)
		defer svc.Stop()

		Convey("When activities are submitted asynchronously", func() {
			for i := range 20 {
				res, err := svc.SubmitActivity(ctx, model.Submission{
					ID:       fmt.Sprintf("sub-%d", i),
					Activity: activity(fmt.Sprintf("emp-%02d", i%5), fmt.Sprintf("2026-W%02d", 30+i/5), 20, 1),
				})
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			}

			Convey("Then every submission is scored and ranked", func() {
				So(eventually(func() bool { return svc.GetStats()["scoreRecords"] == 20 }), ShouldBeTrue)

				entries, err := svc.Leaderboard(ctx, leaderboard.ViewRanking, 0)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 5)
				for _, e := range entries {
					So(e.CurrentStreak, ShouldEqual, 4)
					So(e.CheckMarkCount, ShouldEqual, 4)
				}
				// equal scores rank in employee id order
				So(entries[0].EmployeeID, ShouldEqual, "emp-00")
				So(entries[4].EmployeeID, ShouldEqual, "emp-04")
			})

			Convey("Then a retried submission is acknowledged as a duplicate", func() {
				res, err := svc.SubmitActivity(ctx, model.Submission{
					ID:       "sub-3",
					Activity: activity("emp-03", "2026-W30", 20, 1),
				})
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeTrue)
				So(res.SubmissionID, ShouldEqual, "sub-3")
			})
		})

		Convey("When a submission has no id", func() {
			res, err := svc.SubmitActivity(ctx, model.Submission{Activity: activity("emp-x", "2026-W42", 20, 1)})
			So(err, ShouldBeNil)
			So(res.SubmissionID, ShouldNotBeEmpty)
		})

		Convey("When a submission is invalid", func() {
			_, err := svc.SubmitActivity(ctx, model.Submission{ID: "bad", Activity: activity("", "2026-W42", 20, 1)})
			So(errors.Is(err, model.ErrInvalidActivity), ShouldBeTrue)
		})
	})
}

func TestServiceIntegration_Backpressure(t *testing.T) {
	Convey("Given a single worker stuck on a slow store", t, func() {
		ctx := context.Background()
		gate := &gatedStore{MemoryStore: repository.NewMemoryStore(ctx), release: make(chan struct{})}
		svc := startService(
			service.WithStore(gate),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		defer func() {
			close(gate.release)
			svc.Stop()
		}()

		Convey("When submissions outpace it", func() {
			var rejected string
			for i := range 10 {
				id := fmt.Sprintf("sub-%d", i)
				_, err := svc.SubmitActivity(ctx, model.Submission{ID: id, Activity: activity("emp", fmt.Sprintf("2026-W%02d", 10+i), 20, 1)})
				if errors.Is(err, service.ErrBackpressure) {
					rejected = id
					break
				}
				So(err, ShouldBeNil)
			}

			Convey("Then the queue pushes back and the id stays retryable", func() {
				So(rejected, ShouldNotBeEmpty)
				_, err := svc.SubmitActivity(ctx, model.Submission{ID: rejected, Activity: activity("emp", "2026-W40", 20, 1)})
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
			})
		})
	})

	Convey("Given a store that fails writes", t, func() {
		ctx := context.Background()
		gate := &gatedStore{MemoryStore: repository.NewMemoryStore(ctx), release: make(chan struct{})}
		close(gate.release)
		gate.setFailing(true)
		svc := startService(service.WithStore(gate), service.WithWorkerCount(1))
		defer svc.Stop()

		Convey("When a submission fails in the worker", func() {
			sub := model.Submission{ID: "sub-1", Activity: activity("emp", "2026-W42", 20, 1)}
			_, err := svc.SubmitActivity(ctx, sub)
			So(err, ShouldBeNil)

			Convey("Then the same id can be resubmitted once the store recovers", func() {
				So(eventually(func() bool { return svc.GetStats()["dedupeEntries"] == int64(0) }), ShouldBeTrue)

				gate.setFailing(false)
				res, err := svc.SubmitActivity(ctx, sub)
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				So(eventually(func() bool { return svc.GetStats()["scoreRecords"] == 1 }), ShouldBeTrue)
			})
		})
	})
}
