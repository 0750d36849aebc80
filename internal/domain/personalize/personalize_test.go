package personalize_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/okian/wcs/internal/domain/credit"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/personalize"
	"github.com/okian/wcs/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errCorrupt = errors.New("corrupt blob")

type fakeSource struct {
	teams       map[string]model.Weights
	multipliers map[string]float64
	teamErr     error
}

func (f *fakeSource) TeamWeights(_ context.Context, teamID string) (model.TeamWeightConfig, error) {
	if f.teamErr != nil {
		return model.TeamWeightConfig{}, f.teamErr
	}
	w, ok := f.teams[teamID]
	if !ok {
		return model.TeamWeightConfig{}, fmt.Errorf("team %s: %w", teamID, personalize.ErrNotConfigured)
	}
	return model.TeamWeightConfig{TeamID: teamID, Weights: w}, nil
}

func (f *fakeSource) Multiplier(_ context.Context, employeeID string) (model.UserMultiplier, error) {
	m, ok := f.multipliers[employeeID]
	if !ok {
		return model.UserMultiplier{}, personalize.ErrNotConfigured
	}
	return model.UserMultiplier{EmployeeID: employeeID, Multiplier: m}, nil
}

func TestResolveTeamWeights(t *testing.T) {
	Convey("Given a resolver over stored team weights", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithOutput(&buf)), ShouldBeNil)
		ctx := context.Background()
		src := &fakeSource{teams: map[string]model.Weights{
			"eng":      {EC: 30, OC: 60, CC: 10},
			"sales":    {EC: -10, OC: 100, CC: 10},
			"empty":    {},
			"overflow": {EC: 80, OC: 80, CC: 10},
			"nan":      {EC: math.NaN(), OC: 50, CC: 10},
		}}
		r := personalize.NewResolver(src, personalize.WithLogger(logger.Get()))

		Convey("When the team is configured", func() {
			So(r.ResolveTeamWeights(ctx, "eng"), ShouldResemble, model.Weights{EC: 30, OC: 60, CC: 10})
		})

		Convey("When the team is unknown or empty", func() {
			So(r.ResolveTeamWeights(ctx, "ops"), ShouldResemble, model.DefaultWeights())
			So(r.ResolveTeamWeights(ctx, ""), ShouldResemble, model.DefaultWeights())
		})

		Convey("When the stored weights are invalid", func() {
			So(r.ResolveTeamWeights(ctx, "sales"), ShouldResemble, model.DefaultWeights())
			So(r.ResolveTeamWeights(ctx, "empty"), ShouldResemble, model.DefaultWeights())
			So(r.ResolveTeamWeights(ctx, "nan"), ShouldResemble, model.DefaultWeights())
			So(buf.String(), ShouldContainSubstring, "invalid configuration")
		})

		Convey("When the weights do not sum to 100", func() {
			So(r.ResolveTeamWeights(ctx, "overflow"), ShouldResemble, model.Weights{EC: 80, OC: 80, CC: 10})
			So(buf.String(), ShouldContainSubstring, "do not sum to 100")
		})

		Convey("When the store returns a malformed blob", func() {
			src.teamErr = errCorrupt
			w := r.ResolveTeamWeights(ctx, "eng")

			Convey("Then the default is used and the anomaly is logged", func() {
				So(w, ShouldResemble, model.DefaultWeights())
				So(buf.String(), ShouldContainSubstring, "configuration lookup failed")
				So(buf.String(), ShouldContainSubstring, "corrupt blob")
			})
		})

		Convey("When the source is nil", func() {
			r := personalize.NewResolver(nil)
			So(r.ResolveTeamWeights(ctx, "eng"), ShouldResemble, model.DefaultWeights())
			So(r.ResolveUserMultiplier(ctx, "emp-1"), ShouldEqual, personalize.DefaultMultiplier)
		})

		Convey("When custom defaults are configured", func() {
			r := personalize.NewResolver(src, personalize.WithDefaultWeights(model.Weights{EC: 50, OC: 50}))
			So(r.ResolveTeamWeights(ctx, "ops"), ShouldResemble, model.Weights{EC: 50, OC: 50})

			Convey("And invalid custom defaults are ignored", func() {
				r := personalize.NewResolver(src, personalize.WithDefaultWeights(model.Weights{EC: -1}))
				So(r.DefaultWeights(), ShouldResemble, model.DefaultWeights())
			})
		})
	})
}

func TestResolveUserMultiplier(t *testing.T) {
	Convey("Given stored multipliers", t, func() {
		ctx := context.Background()
		src := &fakeSource{multipliers: map[string]float64{
			"star":   1.2,
			"zero":   0,
			"neg":    -1,
			"infty":  math.Inf(1),
			"junior": 0.9,
		}}
		r := personalize.NewResolver(src)

		So(r.ResolveUserMultiplier(ctx, "star"), ShouldEqual, 1.2)
		So(r.ResolveUserMultiplier(ctx, "junior"), ShouldEqual, 0.9)
		So(r.ResolveUserMultiplier(ctx, "nobody"), ShouldEqual, 1.0)
		So(r.ResolveUserMultiplier(ctx, "zero"), ShouldEqual, 1.0)
		So(r.ResolveUserMultiplier(ctx, "neg"), ShouldEqual, 1.0)
		So(r.ResolveUserMultiplier(ctx, "infty"), ShouldEqual, 1.0)
	})
}

func TestApplyMultiplier(t *testing.T) {
	Convey("Given the identity multiplier", t, func() {
		for _, s := range []float64{0, 0.123, 0.455, 0.5, 0.999, 1} {
			So(personalize.ApplyMultiplier(s, 1.0), ShouldEqual, credit.Round(s))
		}
	})

	Convey("Given a boosting multiplier", t, func() {
		So(personalize.ApplyMultiplier(0.8, 1.25), ShouldEqual, 1.0)
		So(personalize.ApplyMultiplier(0.73, 0.5), ShouldEqual, 0.37)
	})
}

func TestComputeFinalScore(t *testing.T) {
	Convey("Given a configured team and employee", t, func() {
		ctx := context.Background()
		src := &fakeSource{
			teams:       map[string]model.Weights{"eng": {EC: 20, OC: 70, CC: 10}},
			multipliers: map[string]float64{"emp-1": 1.1},
		}
		r := personalize.NewResolver(src)

		Convey("When computing the final score", func() {
			fs := r.ComputeFinalScore(ctx, 1, 0.5, 0, "emp-1", "eng")

			Convey("Then weights, base and final scores line up", func() {
				So(fs.Weights, ShouldResemble, model.Weights{EC: 20, OC: 70, CC: 10})
				So(fs.BaseScore, ShouldEqual, 0.55)
				So(fs.Multiplier, ShouldEqual, 1.1)
				So(fs.FinalScore, ShouldEqual, 0.61)
			})
		})

		Convey("When nothing is configured", func() {
			fs := r.ComputeFinalScore(ctx, 1, 1, 0.99, "emp-2", "")

			Convey("Then it matches the fixed composite", func() {
				So(fs.BaseScore, ShouldEqual, credit.Composite(1, 1, 0.99))
				So(fs.FinalScore, ShouldEqual, fs.BaseScore)
				So(fs.Multiplier, ShouldEqual, 1.0)
			})
		})
	})
}
