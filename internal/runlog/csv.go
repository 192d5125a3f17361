package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrNotFinite     = errors.New("value is not finite")
)

const (
	colIteration = "iteration"
	colAcc       = "acc"
	colSize      = "size"
	colDT        = "dt"
)

// ParseError reports a cell that is not a number.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %s: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode reads a comma separated log with a header row. Only the iteration,
// acc, size and dt columns are used, any other column is ignored.
func Decode(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, v := range head {
		col[strings.TrimSpace(v)] = i
	}
	idx := make(map[string]int, 4)
	for _, name := range []string{colIteration, colAcc, colSize, colDT} {
		i, ok := col[name]
		if !ok {
			return nil, fmt.Errorf("%w %q in header %v", ErrMissingColumn, name, head)
		}
		idx[name] = i
	}

	var out Table
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		cell := func(name string) (string, error) {
			i := idx[name]
			if i >= len(rec) {
				return "", &ParseError{Line: line, Column: name, Err: errors.New("short row")}
			}
			return strings.TrimSpace(rec[i]), nil
		}
		num := func(name string) (float64, error) {
			s, err := cell(name)
			if err != nil {
				return 0, err
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, &ParseError{Line: line, Column: name, Value: s, Err: err}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, &ParseError{Line: line, Column: name, Value: s, Err: ErrNotFinite}
			}
			return v, nil
		}

		var r Record
		if r.Iteration, err = parseIteration(line, cell); err != nil {
			return nil, err
		}
		if r.Acc, err = num(colAcc); err != nil {
			return nil, err
		}
		if r.Size, err = num(colSize); err != nil {
			return nil, err
		}
		if r.DT, err = num(colDT); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrEmptyTable
	}
	return out, nil
}

// parseIteration accepts "3" as well as "3.0", which is how some writers store integer columns.
func parseIteration(line int, cell func(string) (string, error)) (int, error) {
	s, err := cell(colIteration)
	if err != nil {
		return 0, err
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Line: line, Column: colIteration, Value: s, Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ParseError{Line: line, Column: colIteration, Value: s, Err: ErrNotFinite}
	}
	if f != math.Trunc(f) {
		return 0, &ParseError{Line: line, Column: colIteration, Value: s, Err: errors.New("not an integer")}
	}
	if f < math.MinInt || f >= math.MaxInt {
		return 0, &ParseError{Line: line, Column: colIteration, Value: s, Err: strconv.ErrRange}
	}
	return int(f), nil
}
