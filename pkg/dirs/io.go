package dirs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Load reads a direction set from a text file. See Parse for the format.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening directions file: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse reads one direction per line. A line holds either two columns
// (azimuth and elevation in radians) or three columns (a Cartesian vector,
// normalised on load). Blank lines and text after '#' are ignored. Every data
// line must use the same column count.
func Parse(r io.Reader) (Set, error) {
	var (
		s       Set
		columns int
	)
	scanner := bufio.NewScanner(r)
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
		if columns == 0 {
			columns = len(fields)
			if columns != 2 && columns != 3 {
				return nil, fmt.Errorf("line %d: expected 2 (az el) or 3 (x y z) columns, got %d", lineNo, columns)
			}
		} else if len(fields) != columns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", lineNo, columns, len(fields))
		}

		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			values[i] = v
		}

		if columns == 2 {
			s = append(s, FromAzEl(values[0], values[1]))
			continue
		}
		d := Direction{values[0], values[1], values[2]}
		if d.Norm() == 0 {
			return nil, fmt.Errorf("line %d: zero-length direction", lineNo)
		}
		s = append(s, d.Normalize())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes s as azimuth/elevation pairs, one per line.
func Save(path string, s Set) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directions directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating directions file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, d := range s {
		az, el := d.AzEl()
		fmt.Fprintf(w, "%.10g %.10g\n", az, el)
	}
	return w.Flush()
}
