package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/wcs/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleRecord(employee, period string, wcs float64) model.ScoreRecord {
	return model.ScoreRecord{
		EmployeeID:  employee,
		PeriodID:    period,
		TeamID:      "eng",
		HoursWorked: 21.5,
		EC:          1.0,
		OC:          2.0 / 3.0,
		CC:          0.79,
		WCS:         wcs,
		CheckMark:   false,
		Weights:     model.Weights{EC: 40, OC: 50, CC: 10},
		Multiplier:  1.1,
		FinalScore:  math.Nextafter(wcs, 2),
		ScoredAt:    time.Date(2026, time.October, 16, 9, 30, 0, 123456789, time.UTC),
	}
}

// storeContract runs the behaviour every Store shares.
func storeContract(newStore func() Store) {
	ctx := context.Background()

	Convey("When a record is saved and reloaded", func() {
		s := newStore()
		defer s.Close()
		want := sampleRecord("emp-1", "2026-W42", 0.83)
		So(s.SaveScore(ctx, want), ShouldBeNil)
		got, err := s.Score(ctx, "emp-1", "2026-W42")

		Convey("Then every field round-trips bit for bit", func() {
			So(err, ShouldBeNil)
			So(math.Float64bits(got.OC), ShouldEqual, math.Float64bits(want.OC))
			So(math.Float64bits(got.FinalScore), ShouldEqual, math.Float64bits(want.FinalScore))
			So(got.EC, ShouldEqual, want.EC)
			So(got.CC, ShouldEqual, want.CC)
			So(got.WCS, ShouldEqual, want.WCS)
			So(got.CheckMark, ShouldEqual, want.CheckMark)
			So(got.HoursWorked, ShouldEqual, want.HoursWorked)
			So(got.Weights, ShouldResemble, want.Weights)
			So(got.Multiplier, ShouldEqual, want.Multiplier)
			So(got.TeamID, ShouldEqual, "eng")
			So(got.ScoredAt.Equal(want.ScoredAt), ShouldBeTrue)
		})
	})

	Convey("When the same period is saved twice", func() {
		s := newStore()
		defer s.Close()
		So(s.SaveScore(ctx, sampleRecord("emp-1", "2026-W42", 0.5)), ShouldBeNil)
		So(s.SaveScore(ctx, sampleRecord("emp-1", "2026-W42", 0.9)), ShouldBeNil)

		Convey("Then the record is replaced, not duplicated", func() {
			So(s.Count(ctx), ShouldEqual, 1)
			got, err := s.Score(ctx, "emp-1", "2026-W42")
			So(err, ShouldBeNil)
			So(got.WCS, ShouldEqual, 0.9)
		})
	})

	Convey("When a history spans several periods", func() {
		s := newStore()
		defer s.Close()
		for _, p := range []string{"2026-W40", "2025-W52", "2026-W42", "2026-W01"} {
			So(s.SaveScore(ctx, sampleRecord("emp-1", p, 0.7)), ShouldBeNil)
		}
		hist, err := s.History(ctx, "emp-1")

		Convey("Then it is ordered most recent first", func() {
			So(err, ShouldBeNil)
			So(hist, ShouldHaveLength, 4)
			So(hist[0].PeriodID, ShouldEqual, "2026-W42")
			So(hist[1].PeriodID, ShouldEqual, "2026-W40")
			So(hist[2].PeriodID, ShouldEqual, "2026-W01")
			So(hist[3].PeriodID, ShouldEqual, "2025-W52")
		})

		Convey("Then an unknown employee has an empty history", func() {
			h, err := s.History(ctx, "nobody")
			So(err, ShouldBeNil)
			So(h, ShouldBeEmpty)
		})
	})

	Convey("When a record is missing", func() {
		s := newStore()
		defer s.Close()
		_, err := s.Score(ctx, "emp-1", "2026-W42")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		_, err = s.Employee(ctx, "emp-1")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		_, err = s.TeamWeights(ctx, "eng")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		_, err = s.Multiplier(ctx, "emp-1")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
	})

	Convey("When taking a snapshot", func() {
		s := newStore()
		defer s.Close()
		So(s.UpsertEmployee(ctx, model.Employee{ID: "b", Name: "Bea", TeamID: "eng"}), ShouldBeNil)
		So(s.UpsertEmployee(ctx, model.Employee{ID: "c", Name: "Cal"}), ShouldBeNil)
		So(s.SaveScore(ctx, sampleRecord("b", "2026-W41", 0.6)), ShouldBeNil)
		So(s.SaveScore(ctx, sampleRecord("b", "2026-W42", 0.7)), ShouldBeNil)
		So(s.SaveScore(ctx, sampleRecord("a", "2026-W42", 0.8)), ShouldBeNil)

		snap, err := s.Snapshot(ctx)
		So(err, ShouldBeNil)

		Convey("Then it covers roster and scored employees ordered by id", func() {
			So(snap, ShouldHaveLength, 3)
			So(snap[0].Employee.ID, ShouldEqual, "a")
			So(snap[0].Records, ShouldHaveLength, 1)
			So(snap[1].Employee.Name, ShouldEqual, "Bea")
			So(snap[1].Records, ShouldHaveLength, 2)
			So(snap[1].Records[0].PeriodID, ShouldEqual, "2026-W42")
			So(snap[2].Employee.ID, ShouldEqual, "c")
			So(snap[2].Records, ShouldBeEmpty)
		})

		Convey("Then later writes do not leak into it", func() {
			So(s.SaveScore(ctx, sampleRecord("b", "2026-W43", 0.1)), ShouldBeNil)
			snap[1].Records[0].WCS = -1
			So(snap[1].Records, ShouldHaveLength, 2)

			again, err := s.History(ctx, "b")
			So(err, ShouldBeNil)
			So(again, ShouldHaveLength, 3)
			So(again[1].WCS, ShouldEqual, 0.7)
		})
	})

	Convey("When managing the roster", func() {
		s := newStore()
		defer s.Close()
		So(s.UpsertEmployee(ctx, model.Employee{ID: "x", Name: "Xi", TeamID: "eng"}), ShouldBeNil)
		So(s.UpsertEmployee(ctx, model.Employee{ID: "x", Name: "Xi", TeamID: "ops"}), ShouldBeNil)
		So(s.UpsertEmployee(ctx, model.Employee{ID: "w"}), ShouldBeNil)

		e, err := s.Employee(ctx, "x")
		So(err, ShouldBeNil)
		So(e.TeamID, ShouldEqual, "ops")

		all, err := s.Employees(ctx)
		So(err, ShouldBeNil)
		So(all, ShouldHaveLength, 2)
		So(all[0].ID, ShouldEqual, "w")
	})

	Convey("When storing personalization", func() {
		s := newStore()
		defer s.Close()
		cfg := model.TeamWeightConfig{TeamID: "eng", Weights: model.Weights{EC: 30, OC: 60, CC: 10}}
		So(s.SetTeamWeights(ctx, cfg), ShouldBeNil)
		So(s.SetMultiplier(ctx, model.UserMultiplier{EmployeeID: "x", Multiplier: 1.2}), ShouldBeNil)
		So(s.SetMultiplier(ctx, model.UserMultiplier{EmployeeID: "x", Multiplier: 0.9}), ShouldBeNil)

		got, err := s.TeamWeights(ctx, "eng")
		So(err, ShouldBeNil)
		So(got, ShouldResemble, cfg)

		m, err := s.Multiplier(ctx, "x")
		So(err, ShouldBeNil)
		So(m.Multiplier, ShouldEqual, 0.9)
	})

	Convey("When writers race", func() {
		s := newStore()
		defer s.Close()
		var wg sync.WaitGroup
		for w := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 1; i <= 10; i++ {
					_ = s.SaveScore(ctx, sampleRecord(fmt.Sprintf("emp-%d", w), fmt.Sprintf("2026-W%02d", i), 0.5))
				}
			}()
		}
		wg.Wait()
		So(s.Count(ctx), ShouldEqual, 40)
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		storeContract(func() Store { return NewMemoryStore(context.Background()) })
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given an in-memory SQLite store", t, func() {
		storeContract(func() Store {
			s, err := OpenSQLite(context.Background(), MemoryDSN)
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a corrupt team weight blob", t, func() {
		ctx := context.Background()
		s, err := OpenSQLite(ctx, MemoryDSN)
		So(err, ShouldBeNil)
		defer s.Close()
		So(s.db.Create(&teamWeightRow{TeamID: "eng", Blob: "{not json"}).Error, ShouldBeNil)

		_, err = s.TeamWeights(ctx, "eng")
		So(errors.Is(err, ErrMalformedConfig), ShouldBeTrue)
		So(errors.Is(err, ErrNotFound), ShouldBeFalse)
	})

	Convey("Given a database file", t, func() {
		ctx := context.Background()
		path := t.TempDir() + "/data/wcs.db"
		s, err := OpenSQLite(ctx, path, WithMetricsUpdateInterval(time.Hour))
		So(err, ShouldBeNil)
		So(s.SaveScore(ctx, sampleRecord("emp-1", "2026-W42", 0.83)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then records survive a reopen", func() {
			reopened, err := OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			defer reopened.Close()
			got, err := reopened.Score(ctx, "emp-1", "2026-W42")
			So(err, ShouldBeNil)
			So(got.WCS, ShouldEqual, 0.83)
		})
	})
}
