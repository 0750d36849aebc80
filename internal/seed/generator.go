package seed

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/period"
)

// profile shapes how an employee's weeks look.
type profile struct {
	name         string
	minHours     float64
	hoursRange   float64
	minKRScore   float64
	perfectShare float64 // chance every key result is scored 1.0
	reviews      int     // upper bound, inclusive
	missedPosts  int     // upper bound, inclusive
	retroShare   float64
}

//nolint:gochecknoglobals // fixed generation table
var profiles = []profile{
	{name: "elite", minHours: 20, hoursRange: 12, minKRScore: 0.85, perfectShare: 0.5, reviews: 5, missedPosts: 0, retroShare: 0.95},
	{name: "steady", minHours: 17, hoursRange: 10, minKRScore: 0.6, perfectShare: 0.15, reviews: 3, missedPosts: 1, retroShare: 0.8},
	{name: "average", minHours: 11, hoursRange: 12, minKRScore: 0.35, perfectShare: 0.05, reviews: 2, missedPosts: 2, retroShare: 0.6},
	{name: "struggling", minHours: 4, hoursRange: 12, minKRScore: 0, perfectShare: 0, reviews: 1, missedPosts: 4, retroShare: 0.3},
}

// Dataset is everything a run submits.
type Dataset struct {
	Employees   []model.Employee         `yaml:"employees"`
	TeamWeights map[string]model.Weights `yaml:"team_weights"`
	Submissions []model.Submission       `yaml:"submissions"`
}

// Generate builds a roster and one activity per employee per week. Equal
// configs generate equal datasets apart from submission ids.
func Generate(cfg *Config) (*Dataset, error) {
	if cfg.Employees < 1 || cfg.Weeks < 1 {
		return nil, fmt.Errorf("need at least one employee and one week, got %d and %d", cfg.Employees, cfg.Weeks)
	}
	start, err := startWeek(cfg)
	if err != nil {
		return nil, err
	}
	days := cfg.ReportingDays
	if days <= 0 {
		days = period.DefaultReportingDays
	}
	teams := max(cfg.Teams, 1)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data

	ds := &Dataset{TeamWeights: make(map[string]model.Weights, teams)}
	for t := range teams {
		ds.TeamWeights[teamID(t)] = teamWeights(t)
	}

	ds.Employees = make([]model.Employee, cfg.Employees)
	ds.Submissions = make([]model.Submission, 0, cfg.Employees*cfg.Weeks)
	for i := range cfg.Employees {
		emp := model.Employee{
			ID:     fmt.Sprintf("emp-%04d", i+1),
			Name:   fmt.Sprintf("Employee %d", i+1),
			TeamID: teamID(i % teams),
		}
		ds.Employees[i] = emp
		p := profiles[rng.IntN(len(profiles))]

		w := start
		for range cfg.Weeks {
			ds.Submissions = append(ds.Submissions, model.Submission{
				ID:         uuid.NewString(),
				Activity:   activity(rng, p, emp, w, days),
				ReceivedAt: time.Now().UTC(),
			})
			w = w.Next()
		}
	}
	return ds, nil
}

func startWeek(cfg *Config) (period.Week, error) {
	if cfg.StartWeek != "" {
		w, err := period.Parse(cfg.StartWeek)
		if err != nil {
			return period.Week{}, fmt.Errorf("start week: %w", err)
		}
		return w, nil
	}
	w := period.Of(time.Now())
	for range cfg.Weeks {
		w = w.Prev()
	}
	return w, nil
}

func teamID(i int) string {
	return fmt.Sprintf("team-%d", i+1)
}

// teamWeights cycles a few plausible weightings. team-1 keeps the defaults.
func teamWeights(i int) model.Weights {
	switch i % 3 {
	case 1:
		return model.Weights{EC: 20, OC: 70, CC: 10}
	case 2:
		return model.Weights{EC: 30, OC: 50, CC: 20}
	default:
		return model.DefaultWeights()
	}
}

func activity(rng *rand.Rand, p profile, emp model.Employee, w period.Week, reportingDays int) model.ActivityRecord {
	a := model.ActivityRecord{
		EmployeeID:  emp.ID,
		PeriodID:    w.String(),
		HoursWorked: round1(p.minHours + rng.Float64()*p.hoursRange),
		Collaboration: model.CollaborationSignals{
			PeerReviewCount:    rng.IntN(p.reviews + 1),
			DailyPostsInPeriod: max(reportingDays-rng.IntN(p.missedPosts+1), 0),
			HasRetroInsight:    rng.Float64() < p.retroShare,
		},
	}

	n := 1 + rng.IntN(4)
	perfect := rng.Float64() < p.perfectShare
	a.KeyResults = make([]model.KeyResult, n)
	for k := range n {
		score := 1.0
		if !perfect {
			score = round2(p.minKRScore + rng.Float64()*(1-p.minKRScore))
		}
		a.KeyResults[k] = model.KeyResult{Score: score, Weight: float64(1 + rng.IntN(3))}
	}
	return a
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }
