// Package batch scores a file of activity records offline, in parallel, and
// builds the leaderboard from the result.
package batch

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/wcs/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// File is the YAML batch format: a roster, optional personalization and the
// activity records to score.
type File struct {
	Employees       []model.Employee         `yaml:"employees"`
	TeamWeights     map[string]model.Weights `yaml:"team_weights"`
	UserMultipliers map[string]float64       `yaml:"user_multipliers"`
	Activities      []model.ActivityRecord   `yaml:"activities"`
}

// Load reads and checks a batch file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode parses a batch document. Unknown keys are rejected so a typo does
// not silently drop a field.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Encode writes v as YAML.
func Encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// check rejects two records for the same employee and period, since their
// scoring order would decide which one is stored.
func (f *File) check() error {
	type key struct{ employee, period string }
	seen := make(map[key]int, len(f.Activities))
	for i, a := range f.Activities {
		k := key{a.EmployeeID, a.PeriodID}
		if j, ok := seen[k]; ok {
			return fmt.Errorf("%w: %s/%s at activities[%d] and activities[%d]", ErrDuplicateActivity, a.EmployeeID, a.PeriodID, j, i)
		}
		seen[k] = i
	}
	return nil
}
