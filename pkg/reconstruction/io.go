package reconstruction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dwicsd/internal/models"
)

// ReadSignalVolume loads a signal volume from a text file.
func ReadSignalVolume(path string) (*models.SignalVolume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal file: %w", err)
	}
	defer f.Close()
	return ParseSignalVolume(f)
}

// ParseSignalVolume reads one voxel per line, each line holding the signal
// samples in acquisition order. Lines starting with '#' are comments, except
// for an optional "# dims W H D" header giving the grid; without it the
// voxels form a W×1×1 row. Every voxel must have the same number of samples.
func ParseSignalVolume(r io.Reader) (*models.SignalVolume, error) {
	vol := &models.SignalVolume{}
	dims := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	voxels := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Fields(strings.TrimPrefix(line, "#"))
			if len(fields) > 0 && fields[0] == "dims" {
				if err := parseDims(fields[1:], vol); err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				dims = true
			}
			continue
		}

		values, err := parseFloats(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if voxels == 0 {
			vol.NumDirections = len(values)
		} else if len(values) != vol.NumDirections {
			return nil, fmt.Errorf("line %d: %d samples, expected %d", lineNo, len(values), vol.NumDirections)
		}
		vol.Data = append(vol.Data, values...)
		voxels++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading signals: %w", err)
	}
	if voxels == 0 {
		return nil, fmt.Errorf("no voxels found")
	}

	if !dims {
		vol.Width, vol.Height, vol.Depth = voxels, 1, 1
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return vol, nil
}

func parseDims(fields []string, vol *models.SignalVolume) error {
	if len(fields) != 3 {
		return fmt.Errorf("dims header needs 3 values, got %d", len(fields))
	}
	var d [3]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 {
			return fmt.Errorf("invalid dimension %q", f)
		}
		d[i] = v
	}
	vol.Width, vol.Height, vol.Depth = d[0], d[1], d[2]
	return nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadMask loads a mask with one 0/1 entry per voxel, whitespace separated.
func ReadMask(path string, numVoxels int) ([]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask: %w", err)
	}
	var mask []bool
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		for _, f := range strings.Fields(line) {
			switch f {
			case "0":
				mask = append(mask, false)
			case "1":
				mask = append(mask, true)
			default:
				return nil, fmt.Errorf("invalid mask value %q", f)
			}
		}
	}
	if len(mask) != numVoxels {
		return nil, fmt.Errorf("mask has %d entries, expected %d", len(mask), numVoxels)
	}
	return mask, nil
}

// WriteFODVolume saves the coefficients of fod as text: a dims and an lmax
// header, then one line per voxel. Voxels outside the mask or whose solve
// failed are written as zeros.
func WriteFODVolume(path string, fod *models.FODVolume) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# dims %d %d %d\n", fod.Width, fod.Height, fod.Depth)
	fmt.Fprintf(w, "# lmax %d\n", fod.Lmax)
	buf := make([]byte, 0, 32)
	for i := 0; i < fod.NumVoxels(); i++ {
		for j, c := range fod.Coefficients(i) {
			if j > 0 {
				w.WriteByte(' ')
			}
			buf = strconv.AppendFloat(buf[:0], c, 'g', 10, 64)
			w.Write(buf)
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}
	return f.Close()
}
