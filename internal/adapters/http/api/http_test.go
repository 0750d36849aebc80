package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/wcs/internal/adapters/http/api"
	"github.com/okian/wcs/internal/adapters/repository"
	service "github.com/okian/wcs/internal/app"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

// mockDeps records calls and returns canned results.
type mockDeps struct {
	submitted []model.Submission
	seen      map[string]bool
	submitErr error

	scoreErr error
	editErr  error
	patches  []model.ScorePatch

	history    model.History
	historyErr error

	entries    []api.Entry
	lastView   leaderboard.View
	lastLimit  int
	rankErr    error
	adminErr   error
	employees  []model.Employee
	teams      []model.TeamWeightConfig
	multiplier []model.UserMultiplier
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen: map[string]bool{},
		entries: []api.Entry{
			{Rank: 1, EmployeeID: "a", RollingAverageScore: 0.9, CurrentStreak: 3, CheckMarkCount: 1, RankingScore: 125},
			{Rank: 2, EmployeeID: "b", RollingAverageScore: 0.5, RankingScore: 50},
		},
	}
}

func (m *mockDeps) SubmitActivity(_ context.Context, sub model.Submission) (service.SubmitResult, error) {
	if m.submitErr != nil {
		return service.SubmitResult{}, m.submitErr
	}
	if sub.ID == "" {
		sub.ID = "generated"
	}
	if m.seen[sub.ID] {
		return service.SubmitResult{SubmissionID: sub.ID, Duplicate: true}, nil
	}
	m.seen[sub.ID] = true
	m.submitted = append(m.submitted, sub)
	return service.SubmitResult{SubmissionID: sub.ID}, nil
}

func (m *mockDeps) ScoreActivity(_ context.Context, in model.ActivityRecord) (model.ScoreRecord, error) {
	if m.scoreErr != nil {
		return model.ScoreRecord{}, m.scoreErr
	}
	return model.ScoreRecord{EmployeeID: in.EmployeeID, PeriodID: in.PeriodID, EC: 1, OC: 1, CC: 1, WCS: 1, CheckMark: true}, nil
}

func (m *mockDeps) EditScore(_ context.Context, employeeID, periodID string, patch model.ScorePatch) (model.ScoreRecord, error) {
	if m.editErr != nil {
		return model.ScoreRecord{}, m.editErr
	}
	m.patches = append(m.patches, patch)
	return model.ScoreRecord{EmployeeID: employeeID, PeriodID: periodID, WCS: 0.92}, nil
}

func (m *mockDeps) History(_ context.Context, employeeID string) (model.History, error) {
	if m.historyErr != nil {
		return model.History{}, m.historyErr
	}
	h := m.history
	h.Employee.ID = employeeID
	return h, nil
}

func (m *mockDeps) Leaderboard(_ context.Context, view leaderboard.View, limit int) ([]api.Entry, error) {
	m.lastView, m.lastLimit = view, limit
	if limit > 0 && limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func (m *mockDeps) Rank(_ context.Context, employeeID string) (api.Entry, error) {
	if m.rankErr != nil {
		return api.Entry{}, m.rankErr
	}
	e, ok := leaderboard.Find(m.entries, employeeID)
	if !ok {
		return api.Entry{}, fmt.Errorf("rank %s: %w", employeeID, repository.ErrNotFound)
	}
	return e, nil
}

func (m *mockDeps) UpsertEmployee(_ context.Context, e model.Employee) error {
	if m.adminErr != nil {
		return m.adminErr
	}
	m.employees = append(m.employees, e)
	return nil
}

func (m *mockDeps) SetTeamWeights(_ context.Context, cfg model.TeamWeightConfig) error {
	if m.adminErr != nil {
		return m.adminErr
	}
	m.teams = append(m.teams, cfg)
	return nil
}

func (m *mockDeps) SetMultiplier(_ context.Context, um model.UserMultiplier) error {
	if m.adminErr != nil {
		return m.adminErr
	}
	m.multiplier = append(m.multiplier, um)
	return nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

const validActivity = `{"employee_id":"e-1","period_id":"2025-W14","hours_worked":25,
"key_results":[{"score":1,"weight":1}],
"collaboration":{"peer_review_count":3,"daily_posts_in_period":5,"has_retro_insight":true}}`

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("Then health serves Prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats serves JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			decode(w, &stats)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then unknown paths are not found", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then a wrong method is rejected", func() {
			So(do(mux, http.MethodDelete, "/leaderboard", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestActivities(t *testing.T) {
	Convey("Given the activities endpoint", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a new activity is posted", func() {
			body := `{"submission_id":"sub-1",` + strings.TrimPrefix(validActivity, "{")
			w := do(mux, http.MethodPost, "/activities", body)

			Convey("Then it is accepted and forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var ack map[string]any
				decode(w, &ack)
				So(ack["status"], ShouldEqual, "accepted")
				So(ack["submission_id"], ShouldEqual, "sub-1")
				So(ack["duplicate"], ShouldEqual, false)

				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].Activity.EmployeeID, ShouldEqual, "e-1")
				So(deps.submitted[0].Activity.HoursWorked, ShouldEqual, 25.0)
				So(deps.submitted[0].Activity.Collaboration.PeerReviewCount, ShouldEqual, 3)
			})

			Convey("Then posting it again is a duplicate", func() {
				w := do(mux, http.MethodPost, "/activities", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				var ack map[string]any
				decode(w, &ack)
				So(ack["status"], ShouldEqual, "duplicate")
				So(ack["duplicate"], ShouldEqual, true)
				So(deps.submitted, ShouldHaveLength, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/activities", `{`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.submitted, ShouldBeEmpty)
			})
		})

		Convey("When the service rejects the activity", func() {
			deps.submitErr = fmt.Errorf("%w: hours_worked must be >= 0", model.ErrInvalidActivity)
			w := do(mux, http.MethodPost, "/activities", validActivity)

			Convey("Then it is a bad request naming the field", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var e map[string]string
				decode(w, &e)
				So(e["code"], ShouldEqual, "bad_request")
				So(e["message"], ShouldContainSubstring, "hours_worked")
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("%w: 10 queued", service.ErrBackpressure)
			w := do(mux, http.MethodPost, "/activities", validActivity)

			Convey("Then it answers 429 with Retry-After", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Header().Get("Retry-After"), ShouldEqual, "1")
			})
		})

		Convey("When the service is not running", func() {
			deps.submitErr = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/activities", validActivity)

			Convey("Then it answers 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestScores(t *testing.T) {
	Convey("Given the scores endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When scoring synchronously", func() {
			w := do(mux, http.MethodPost, "/scores", validActivity)

			Convey("Then the record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec model.ScoreRecord
				decode(w, &rec)
				So(rec.EmployeeID, ShouldEqual, "e-1")
				So(rec.WCS, ShouldEqual, 1.0)
				So(rec.CheckMark, ShouldBeTrue)
			})
		})

		Convey("When patching a record", func() {
			w := do(mux, http.MethodPatch, "/scores/e-1/2025-W14", `{"oc":0.9}`)

			Convey("Then the patch reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.patches, ShouldHaveLength, 1)
				So(*deps.patches[0].OC, ShouldEqual, 0.9)
				So(deps.patches[0].EC, ShouldBeNil)
				var rec model.ScoreRecord
				decode(w, &rec)
				So(rec.PeriodID, ShouldEqual, "2025-W14")
			})
		})

		Convey("When patching with a malformed period", func() {
			w := do(mux, http.MethodPatch, "/scores/e-1/week-14", `{"oc":0.9}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.patches, ShouldBeEmpty)
			})
		})

		Convey("When patching a record that does not exist", func() {
			deps.editErr = fmt.Errorf("score e-1/2025-W14: %w", repository.ErrNotFound)
			w := do(mux, http.MethodPatch, "/scores/e-1/2025-W14", `{"oc":0.9}`)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When reading history", func() {
			deps.history = model.History{Records: []model.ScoreRecord{
				{PeriodID: "2025-W15", WCS: 0.9},
				{PeriodID: "2025-W14", WCS: 0.8},
			}}
			w := do(mux, http.MethodGet, "/scores/e-1", "")

			Convey("Then records come back in service order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var h model.History
				decode(w, &h)
				So(h.Employee.ID, ShouldEqual, "e-1")
				So(h.Records, ShouldHaveLength, 2)
				So(h.Records[0].PeriodID, ShouldEqual, "2025-W15")
			})
		})

		Convey("When reading history of a known employee with no records", func() {
			w := do(mux, http.MethodGet, "/scores/e-2", "")

			Convey("Then records is an empty array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"records":[]`)
			})
		})

		Convey("When reading history of an unknown employee", func() {
			deps.historyErr = repository.ErrNotFound
			w := do(mux, http.MethodGet, "/scores/ghost", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestLeaderboardAndRank(t *testing.T) {
	Convey("Given the leaderboard endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When asking for a limited streak view", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=1&sort=streak", "")

			Convey("Then the view and limit are forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastView, ShouldEqual, leaderboard.ViewStreak)
				So(deps.lastLimit, ShouldEqual, 1)
				var entries []api.Entry
				decode(w, &entries)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].EmployeeID, ShouldEqual, "a")
			})
		})

		Convey("When no limit or sort is given", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")

			Convey("Then the service decides the limit and ranking order applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 0)
				So(deps.lastView, ShouldEqual, leaderboard.ViewRanking)
			})
		})

		Convey("When the limit is not a number", func() {
			So(do(mux, http.MethodGet, "/leaderboard?limit=ten", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the sort is unknown", func() {
			So(do(mux, http.MethodGet, "/leaderboard?sort=salary", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the board is empty", func() {
			deps.entries = nil
			w := do(mux, http.MethodGet, "/leaderboard", "")

			Convey("Then an empty array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When an entry cannot be encoded", func() {
			deps.entries[0].RankingScore = math.NaN()
			w := do(mux, http.MethodGet, "/leaderboard", "")

			Convey("Then a 500 with an error body replaces the partial board", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				var body map[string]string
				decode(w, &body)
				So(body["code"], ShouldEqual, "internal_error")
			})
		})

		Convey("When asking for a ranked employee", func() {
			w := do(mux, http.MethodGet, "/rank/b", "")

			Convey("Then the entry is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var e api.Entry
				decode(w, &e)
				So(e.Rank, ShouldEqual, 2)
				So(e.RankingScore, ShouldEqual, 50.0)
			})
		})

		Convey("When asking for an unranked employee", func() {
			So(do(mux, http.MethodGet, "/rank/zed", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the rank lookup fails unexpectedly", func() {
			deps.rankErr = errors.New("disk on fire")
			So(do(mux, http.MethodGet, "/rank/a", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestAdmin(t *testing.T) {
	Convey("Given the admin endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When upserting an employee", func() {
			w := do(mux, http.MethodPut, "/employees/e-9", `{"id":"ignored","name":"Ada","team_id":"eng"}`)

			Convey("Then the path id wins", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.employees, ShouldHaveLength, 1)
				So(deps.employees[0], ShouldResemble, model.Employee{ID: "e-9", Name: "Ada", TeamID: "eng"})
			})
		})

		Convey("When setting team weights", func() {
			w := do(mux, http.MethodPut, "/teams/eng/weights", `{"ec":20,"oc":70,"cc":10}`)

			Convey("Then the weights reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.teams, ShouldHaveLength, 1)
				So(deps.teams[0].TeamID, ShouldEqual, "eng")
				So(deps.teams[0].Weights, ShouldResemble, model.Weights{EC: 20, OC: 70, CC: 10})
			})
		})

		Convey("When the service rejects team weights", func() {
			deps.adminErr = fmt.Errorf("%w: negative", service.ErrInvalidConfig)
			w := do(mux, http.MethodPut, "/teams/eng/weights", `{"ec":-1,"oc":70,"cc":10}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When setting a multiplier", func() {
			w := do(mux, http.MethodPut, "/employees/e-1/multiplier", `{"multiplier":1.1}`)

			Convey("Then the multiplier reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.multiplier, ShouldResemble, []model.UserMultiplier{{EmployeeID: "e-1", Multiplier: 1.1}})
			})
		})

		Convey("When the multiplier is missing", func() {
			w := do(mux, http.MethodPut, "/employees/e-1/multiplier", `{}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.multiplier, ShouldBeEmpty)
			})
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server limited to one write", t, func() {
		deps := newMockDeps()
		mux := newMux(deps, api.WithRateLimit(0.001, 1))

		first := do(mux, http.MethodPost, "/activities", validActivity)
		second := do(mux, http.MethodPost, "/scores", validActivity)

		Convey("Then the second write is throttled", func() {
			So(first.Code, ShouldEqual, http.StatusAccepted)
			So(second.Code, ShouldEqual, http.StatusTooManyRequests)
			So(second.Header().Get("Retry-After"), ShouldEqual, "1")
			var e map[string]string
			decode(second, &e)
			So(e["code"], ShouldEqual, "rate_limited")
		})

		Convey("Then reads are never throttled", func() {
			for range 5 {
				So(do(mux, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusOK)
			}
		})
	})

	Convey("Given a zero rate", t, func() {
		mux := newMux(newMockDeps(), api.WithRateLimit(0, 0))

		Convey("Then throttling is off", func() {
			for range 5 {
				So(do(mux, http.MethodPost, "/scores", validActivity).Code, ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given the op-tagging helpers", t, func() {
		inner := errors.New("boom")

		Convey("Then Wrap keeps the cause and names the op", func() {
			err := api.Wrap("api.x", inner)
			So(errors.Is(err, inner), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.x: boom")
			So(api.Wrap("api.x", nil), ShouldBeNil)
		})

		Convey("Then WrapKind matches both kind and cause", func() {
			err := api.WrapKind("api.x", api.ErrBadRequest, inner)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, inner), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.x: bad request: boom")
		})

		Convey("Then NewKind carries only the kind", func() {
			err := api.NewKind("api.x", api.ErrRateLimited)
			So(errors.Is(err, api.ErrRateLimited), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.x: rate limited")
		})
	})
}

func TestScoringThroughService(t *testing.T) {
	Convey("Given the API over a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)

		So(do(mux, http.MethodPost, "/scores", validActivity).Code, ShouldEqual, http.StatusOK)

		Convey("When key result weights are huge but finite", func() {
			w := do(mux, http.MethodPost, "/scores", `{"employee_id":"e-2","period_id":"2025-W14","hours_worked":25,
"key_results":[{"score":1,"weight":1e308},{"score":0.5,"weight":1e308}]}`)

			Convey("Then the record is scored with a finite outcome credit", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec model.ScoreRecord
				decode(w, &rec)
				So(rec.OC, ShouldAlmostEqual, 0.75, 1e-12)
				So(rec.CheckMark, ShouldBeFalse)
			})

			Convey("Then the leaderboard still serves every employee", func() {
				lb := do(mux, http.MethodGet, "/leaderboard", "")
				So(lb.Code, ShouldEqual, http.StatusOK)
				var entries []api.Entry
				decode(lb, &entries)
				So(entries, ShouldHaveLength, 2)
				for _, e := range entries {
					So(math.IsNaN(e.RankingScore), ShouldBeFalse)
				}
			})
		})
	})
}
