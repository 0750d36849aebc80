package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/wcs/internal/config"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it should carry the documented defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 1000)
			convey.So(cfg.RollingWindow, convey.ShouldEqual, 12)
			convey.So(cfg.StreakThreshold, convey.ShouldEqual, 0.8)
			convey.So(cfg.CheckMarkTolerance, convey.ShouldEqual, 1e-9)
			convey.So(cfg.ReportingRule, convey.ShouldEqual, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR")
			convey.So(cfg.DefaultWeights, convey.ShouldResemble, model.Weights{EC: 40, OC: 50, CC: 10})
		})

		convey.Convey("Then it should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given configs with a single bad field", t, func() {
		cases := map[string]func(*config.Config){
			"unknown store driver":    func(c *config.Config) { c.StoreDriver = "postgres" },
			"sqlite without a path":   func(c *config.Config) { c.StoreDriver = config.StoreSQLite; c.SQLitePath = "" },
			"zero workers":            func(c *config.Config) { c.WorkerCount = 0 },
			"zero queue":              func(c *config.Config) { c.QueueSize = 0 },
			"unknown log format":      func(c *config.Config) { c.LogFormat = "xml" },
			"wide tolerance":          func(c *config.Config) { c.CheckMarkTolerance = 0.05 },
			"broken reporting rule":   func(c *config.Config) { c.ReportingRule = "FREQ=SOMETIMES" },
			"zero default weights":    func(c *config.Config) { c.DefaultWeights = model.Weights{} },
			"negative team weight":    func(c *config.Config) { c.TeamWeights["eng"] = model.Weights{EC: -1, OC: 50, CC: 10} },
			"non-positive multiplier": func(c *config.Config) { c.UserMultipliers["emp-1"] = 0 },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given team weights that do not sum to 100", t, func() {
		cfg := config.New()
		cfg.TeamWeights["eng"] = model.Weights{EC: 50, OC: 50, CC: 10}

		convey.Convey("Then they are accepted", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
