// Package response reads and holds single-fibre response functions: one row
// of zonal spherical harmonic coefficients (increasing even degree) per
// acquisition shell.
package response

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dwicsd/pkg/sh"
)

// Response holds one zonal coefficient row per shell. All rows have the same
// length; shorter rows are zero-padded when the response is built.
type Response struct {
	shells [][]float64
}

// New builds a response from zonal rows, copying them.
func New(rows ...[]float64) (*Response, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("response has no shells")
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return nil, fmt.Errorf("response has no coefficients")
	}
	shells := make([][]float64, len(rows))
	for i, row := range rows {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("shell %d coefficient %d is not finite", i, j)
			}
		}
		shells[i] = make([]float64, width)
		copy(shells[i], row)
	}
	return &Response{shells: shells}, nil
}

// FromRH builds a single-shell response from rotational harmonic values.
func FromRH(rh []float64) (*Response, error) {
	return New(sh.FromRH(rh))
}

// NumShells returns the number of rows.
func (r *Response) NumShells() int { return len(r.shells) }

// Lmax returns the maximum even degree represented.
func (r *Response) Lmax() int { return sh.ZLforN(len(r.shells[0])) }

// Shell returns a copy of the zonal coefficients of shell i.
func (r *Response) Shell(i int) []float64 {
	out := make([]float64, len(r.shells[i]))
	copy(out, r.shells[i])
	return out
}

// RH returns the rotational harmonic form of shell i.
func (r *Response) RH(i int) []float64 {
	return sh.ToRH(r.shells[i])
}

// Load reads a response file. See Parse for the format.
func Load(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening response file: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse reads whitespace-separated numbers, one shell per line, in order of
// increasing even degree. Blank lines and text after '#' are ignored.
func Parse(rd io.Reader) (*Response, error) {
	var rows [][]float64
	scanner := bufio.NewScanner(rd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(rows...)
}

// Save writes r in the format read by Parse.
func Save(path string, r *Response) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating response directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating response file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, row := range r.shells {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
	return w.Flush()
}
