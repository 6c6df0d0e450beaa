package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
)

// Viewer renders slices of a scalar volume as grey-level images. Values are
// scaled so that the largest value in the volume maps to white; negative
// values are clamped to black.
type Viewer struct {
	// volumeData holds one value per voxel in x-fastest order
	volumeData []float64

	width  int
	height int
	depth  int

	// scale maps volume values to [0, 1]
	scale float64
}

// NewViewer creates a viewer over a scalar volume.
func NewViewer(volumeData []float64, width, height, depth int) *Viewer {
	scale := 0.0
	if len(volumeData) > 0 {
		if m := floats.Max(volumeData); m > 0 && !math.IsInf(m, 1) {
			scale = 1 / m
		}
	}
	return &Viewer{
		volumeData: volumeData,
		width:      width,
		height:     height,
		depth:      depth,
		scale:      scale,
	}
}

func (v *Viewer) grey(idx int) color.Gray16 {
	if idx >= len(v.volumeData) {
		return color.Gray16{}
	}
	value := v.volumeData[idx] * v.scale
	if math.IsNaN(value) {
		return color.Gray16{}
	}
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.grey(z*v.width*v.height+y*v.width+position))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.grey(z*v.width*v.height+position*v.width+x))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.grey(position*v.width*v.height+y*v.width+x))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
