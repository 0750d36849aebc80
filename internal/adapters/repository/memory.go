package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/wcs/internal/domain/model"
)

// MemoryStore is an in-memory Store. Reads return copies so callers never
// observe a concurrent write.
type MemoryStore struct {
	mu          sync.RWMutex
	scores      map[string]map[string]model.ScoreRecord // employee -> period -> record
	records     int
	roster      map[string]model.Employee
	teams       map[string]model.TeamWeightConfig
	multipliers map[string]model.UserMultiplier

	stopOnce sync.Once
	stop     chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemoryStore{
		scores:      make(map[string]map[string]model.ScoreRecord),
		roster:      make(map[string]model.Employee),
		teams:       make(map[string]model.TeamWeightConfig),
		multipliers: make(map[string]model.UserMultiplier),
		stop:        make(chan struct{}),
	}
	startMetricsUpdater(ctx, s, o.metricsUpdateInterval, s.stop)
	return s
}

func (s *MemoryStore) SaveScore(_ context.Context, rec model.ScoreRecord) error {
	defer observe("save_score", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	byPeriod, ok := s.scores[rec.EmployeeID]
	if !ok {
		byPeriod = make(map[string]model.ScoreRecord)
		s.scores[rec.EmployeeID] = byPeriod
	}
	if _, exists := byPeriod[rec.PeriodID]; !exists {
		s.records++
	}
	byPeriod[rec.PeriodID] = rec
	return nil
}

func (s *MemoryStore) Score(_ context.Context, employeeID, periodID string) (model.ScoreRecord, error) {
	defer observe("score", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.scores[employeeID][periodID]
	if !ok {
		return model.ScoreRecord{}, fmt.Errorf("score %s/%s: %w", employeeID, periodID, ErrNotFound)
	}
	return rec, nil
}

func (s *MemoryStore) History(_ context.Context, employeeID string) ([]model.ScoreRecord, error) {
	defer observe("history", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyLocked(employeeID), nil
}

func (s *MemoryStore) historyLocked(employeeID string) []model.ScoreRecord {
	byPeriod := s.scores[employeeID]
	out := make([]model.ScoreRecord, 0, len(byPeriod))
	for _, rec := range byPeriod {
		out = append(out, rec)
	}
	sortHistory(out)
	return out
}

func (s *MemoryStore) Snapshot(_ context.Context) ([]model.History, error) {
	defer observe("snapshot", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.History, 0, len(s.roster)+len(s.scores))
	for id, e := range s.roster {
		out = append(out, model.History{Employee: e, Records: s.historyLocked(id)})
	}
	for id := range s.scores {
		if _, onRoster := s.roster[id]; onRoster {
			continue
		}
		out = append(out, model.History{Employee: model.Employee{ID: id}, Records: s.historyLocked(id)})
	}
	sortHistories(out)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

func (s *MemoryStore) UpsertEmployee(_ context.Context, e model.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster[e.ID] = e
	return nil
}

func (s *MemoryStore) Employee(_ context.Context, id string) (model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.roster[id]
	if !ok {
		return model.Employee{}, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) Employees(_ context.Context) ([]model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Employee, 0, len(s.roster))
	for _, e := range s.roster {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetTeamWeights(_ context.Context, cfg model.TeamWeightConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[cfg.TeamID] = cfg
	return nil
}

func (s *MemoryStore) TeamWeights(_ context.Context, teamID string) (model.TeamWeightConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.teams[teamID]
	if !ok {
		return model.TeamWeightConfig{}, fmt.Errorf("team weights %s: %w", teamID, ErrNotFound)
	}
	return cfg, nil
}

func (s *MemoryStore) SetMultiplier(_ context.Context, m model.UserMultiplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multipliers[m.EmployeeID] = m
	return nil
}

func (s *MemoryStore) Multiplier(_ context.Context, employeeID string) (model.UserMultiplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.multipliers[employeeID]
	if !ok {
		return model.UserMultiplier{}, fmt.Errorf("multiplier %s: %w", employeeID, ErrNotFound)
	}
	return m, nil
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
