// Package runlog reads experiment logs of the active learning and random
// sampling runs. One log holds one row per (iteration, step).
package runlog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

type Strategy string

const (
	Active Strategy = "active"
	Random Strategy = "random"
)

var (
	ErrSourceNotFound = errors.New("run log not found")
	ErrEmptyTable     = errors.New("run log has no rows")
)

// Record is a single step of one experiment replicate.
type Record struct {
	Iteration int     `json:"iteration"`
	Acc       float64 `json:"acc"`
	Size      float64 `json:"size"`
	DT        float64 `json:"dt"`
}

type Table []Record

// Iterations returns distinct iteration ids in order of first appearance.
func (t Table) Iterations() []int {
	return lo.Uniq(lo.Map(t, func(r Record, _ int) int { return r.Iteration }))
}

// ByIteration groups rows by iteration, keeping the input row order inside each group.
func (t Table) ByIteration() map[int]Table {
	groups := lo.GroupBy(t, func(r Record) int { return r.Iteration })
	out := make(map[int]Table, len(groups))
	for it, rows := range groups {
		out[it] = Table(rows)
	}
	return out
}

type Source interface {
	Load(ctx context.Context, strategy Strategy, nParams int) (Table, error)
}

// FileSource reads CSV logs from BaseDir. Pattern is a fmt template that gets
// the strategy name and the parameter count, e.g. "%s_%dparams.csv".
type FileSource struct {
	BaseDir string
	Pattern string
}

func NewFileSource(baseDir, pattern string) *FileSource {
	return &FileSource{BaseDir: baseDir, Pattern: pattern}
}

func (s *FileSource) Path(strategy Strategy, nParams int) string {
	return filepath.Join(s.BaseDir, fmt.Sprintf(s.Pattern, strategy, nParams))
}

func (s *FileSource) Load(ctx context.Context, strategy Strategy, nParams int) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(strategy, nParams)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
		}
		return nil, err
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

type memKey struct {
	strategy Strategy
	nParams  int
}

// MemorySource serves tables put into it. Safe for concurrent reads once filled.
type MemorySource struct {
	tables map[memKey]Table
}

func NewMemorySource() *MemorySource {
	return &MemorySource{tables: make(map[memKey]Table)}
}

func (s *MemorySource) Put(strategy Strategy, nParams int, t Table) *MemorySource {
	s.tables[memKey{strategy, nParams}] = t
	return s
}

func (s *MemorySource) Load(ctx context.Context, strategy Strategy, nParams int) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := s.tables[memKey{strategy, nParams}]
	if !ok {
		return nil, fmt.Errorf("%w: %s table for %d parameters", ErrSourceNotFound, strategy, nParams)
	}
	return t, nil
}

// LoadPair loads both tables of one configuration. Either one missing or empty is an error.
func LoadPair(ctx context.Context, src Source, nParams int) (active, random Table, err error) {
	active, err = src.Load(ctx, Active, nParams)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s table: %w", Active, err)
	}
	random, err = src.Load(ctx, Random, nParams)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s table: %w", Random, err)
	}
	if len(active) == 0 {
		return nil, nil, fmt.Errorf("load %s table: %w", Active, ErrEmptyTable)
	}
	if len(random) == 0 {
		return nil, nil, fmt.Errorf("load %s table: %w", Random, ErrEmptyTable)
	}
	return active, random, nil
}
