package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

type scoreRow struct {
	EmployeeID  string `gorm:"primaryKey"`
	PeriodID    string `gorm:"primaryKey"`
	TeamID      string
	HoursWorked float64
	EC          float64
	OC          float64
	CC          float64
	WCS         float64
	CheckMark   bool
	WeightEC    float64
	WeightOC    float64
	WeightCC    float64
	Multiplier  float64
	FinalScore  float64
	ScoredAt    time.Time
}

func (scoreRow) TableName() string { return "score_records" }

type employeeRow struct {
	ID     string `gorm:"primaryKey"`
	Name   string
	TeamID string `gorm:"index"`
}

func (employeeRow) TableName() string { return "employees" }

// teamWeightRow keeps the weights as a JSON blob so the schema does not
// change when the weighting does.
type teamWeightRow struct {
	TeamID string `gorm:"primaryKey"`
	Blob   string
}

func (teamWeightRow) TableName() string { return "team_weights" }

type multiplierRow struct {
	EmployeeID string `gorm:"primaryKey"`
	Multiplier float64
}

func (multiplierRow) TableName() string { return "user_multipliers" }

// SQLiteStore is a Store backed by a pure Go SQLite database through gorm.
type SQLiteStore struct {
	db *gorm.DB

	stopOnce sync.Once
	stop     chan struct{}
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path, migrates the
// schema and starts the metrics updater. Use MemoryDSN for a throwaway store.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One connection: a single writer, and an in-memory database is per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&scoreRow{}, &employeeRow{}, &teamWeightRow{}, &multiplierRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, stop: make(chan struct{})}
	startMetricsUpdater(ctx, s, o.metricsUpdateInterval, s.stop)
	return s, nil
}

func toRow(rec model.ScoreRecord) scoreRow {
	return scoreRow{
		EmployeeID:  rec.EmployeeID,
		PeriodID:    rec.PeriodID,
		TeamID:      rec.TeamID,
		HoursWorked: rec.HoursWorked,
		EC:          rec.EC,
		OC:          rec.OC,
		CC:          rec.CC,
		WCS:         rec.WCS,
		CheckMark:   rec.CheckMark,
		WeightEC:    rec.Weights.EC,
		WeightOC:    rec.Weights.OC,
		WeightCC:    rec.Weights.CC,
		Multiplier:  rec.Multiplier,
		FinalScore:  rec.FinalScore,
		ScoredAt:    rec.ScoredAt.UTC(),
	}
}

func (r scoreRow) record() model.ScoreRecord {
	return model.ScoreRecord{
		EmployeeID:  r.EmployeeID,
		PeriodID:    r.PeriodID,
		TeamID:      r.TeamID,
		HoursWorked: r.HoursWorked,
		EC:          r.EC,
		OC:          r.OC,
		CC:          r.CC,
		WCS:         r.WCS,
		CheckMark:   r.CheckMark,
		Weights:     model.Weights{EC: r.WeightEC, OC: r.WeightOC, CC: r.WeightCC},
		Multiplier:  r.Multiplier,
		FinalScore:  r.FinalScore,
		ScoredAt:    r.ScoredAt.UTC(),
	}
}

func (s *SQLiteStore) SaveScore(ctx context.Context, rec model.ScoreRecord) error {
	defer observe("save_score", time.Now())
	row := toRow(rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}, {Name: "period_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		metrics.RecordErrorByComponent("repository", "save_score")
		return fmt.Errorf("save score %s/%s: %w", rec.EmployeeID, rec.PeriodID, err)
	}
	return nil
}

func (s *SQLiteStore) Score(ctx context.Context, employeeID, periodID string) (model.ScoreRecord, error) {
	defer observe("score", time.Now())
	var row scoreRow
	err := s.db.WithContext(ctx).
		Where("employee_id = ? AND period_id = ?", employeeID, periodID).
		First(&row).Error
	if err != nil {
		return model.ScoreRecord{}, notFound(err, "score %s/%s", employeeID, periodID)
	}
	return row.record(), nil
}

func (s *SQLiteStore) History(ctx context.Context, employeeID string) ([]model.ScoreRecord, error) {
	defer observe("history", time.Now())
	var rows []scoreRow
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("period_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", employeeID, err)
	}
	out := make([]model.ScoreRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) ([]model.History, error) {
	defer observe("snapshot", time.Now())
	var (
		rows   []scoreRow
		roster []employeeRow
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("employee_id ASC, period_id DESC").Find(&rows).Error; err != nil {
			return err
		}
		return tx.Order("id ASC").Find(&roster).Error
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	byID := make(map[string]*model.History, len(roster))
	out := make([]model.History, 0, len(roster))
	for _, e := range roster {
		out = append(out, model.History{Employee: model.Employee{ID: e.ID, Name: e.Name, TeamID: e.TeamID}})
	}
	for i := range out {
		byID[out[i].Employee.ID] = &out[i]
	}
	var orphans []model.History
	for _, r := range rows {
		if h, ok := byID[r.EmployeeID]; ok {
			h.Records = append(h.Records, r.record())
			continue
		}
		if n := len(orphans); n > 0 && orphans[n-1].Employee.ID == r.EmployeeID {
			orphans[n-1].Records = append(orphans[n-1].Records, r.record())
			continue
		}
		orphans = append(orphans, model.History{Employee: model.Employee{ID: r.EmployeeID}, Records: []model.ScoreRecord{r.record()}})
	}
	out = append(out, orphans...)
	sortHistories(out)
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int64
	if err := s.db.WithContext(ctx).Model(&scoreRow{}).Count(&n).Error; err != nil {
		return 0
	}
	return int(n)
}

func (s *SQLiteStore) UpsertEmployee(ctx context.Context, e model.Employee) error {
	row := employeeRow{ID: e.ID, Name: e.Name, TeamID: e.TeamID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert employee %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Employee(ctx context.Context, id string) (model.Employee, error) {
	var row employeeRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return model.Employee{}, notFound(err, "employee %s", id)
	}
	return model.Employee{ID: row.ID, Name: row.Name, TeamID: row.TeamID}, nil
}

func (s *SQLiteStore) Employees(ctx context.Context) ([]model.Employee, error) {
	var rows []employeeRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	out := make([]model.Employee, len(rows))
	for i, r := range rows {
		out[i] = model.Employee{ID: r.ID, Name: r.Name, TeamID: r.TeamID}
	}
	return out, nil
}

func (s *SQLiteStore) SetTeamWeights(ctx context.Context, cfg model.TeamWeightConfig) error {
	blob, err := json.Marshal(cfg.Weights)
	if err != nil {
		return fmt.Errorf("encode team weights %s: %w", cfg.TeamID, err)
	}
	row := teamWeightRow{TeamID: cfg.TeamID, Blob: string(blob)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save team weights %s: %w", cfg.TeamID, err)
	}
	return nil
}

func (s *SQLiteStore) TeamWeights(ctx context.Context, teamID string) (model.TeamWeightConfig, error) {
	var row teamWeightRow
	if err := s.db.WithContext(ctx).Where("team_id = ?", teamID).First(&row).Error; err != nil {
		return model.TeamWeightConfig{}, notFound(err, "team weights %s", teamID)
	}
	var w model.Weights
	if err := json.Unmarshal([]byte(row.Blob), &w); err != nil {
		metrics.RecordErrorByComponent("repository", "malformed_config")
		return model.TeamWeightConfig{}, fmt.Errorf("team weights %s: %w: %v", teamID, ErrMalformedConfig, err)
	}
	return model.TeamWeightConfig{TeamID: teamID, Weights: w}, nil
}

func (s *SQLiteStore) SetMultiplier(ctx context.Context, m model.UserMultiplier) error {
	row := multiplierRow{EmployeeID: m.EmployeeID, Multiplier: m.Multiplier}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save multiplier %s: %w", m.EmployeeID, err)
	}
	return nil
}

func (s *SQLiteStore) Multiplier(ctx context.Context, employeeID string) (model.UserMultiplier, error) {
	var row multiplierRow
	if err := s.db.WithContext(ctx).Where("employee_id = ?", employeeID).First(&row).Error; err != nil {
		return model.UserMultiplier{}, notFound(err, "multiplier %s", employeeID)
	}
	return model.UserMultiplier{EmployeeID: row.EmployeeID, Multiplier: row.Multiplier}, nil
}

// Close stops the metrics updater and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		sqlDB, dbErr := s.db.DB()
		if dbErr != nil {
			err = dbErr
			return
		}
		err = sqlDB.Close()
	})
	return err
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
