package models

import "testing"

func TestSignalVolume(t *testing.T) {
	v := &SignalVolume{
		Data:          make([]float64, 2*3*4*5),
		Width:         2,
		Height:        3,
		Depth:         4,
		NumDirections: 5,
	}
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if v.NumVoxels() != 24 {
		t.Errorf("NumVoxels() = %d, want 24", v.NumVoxels())
	}

	i := VoxelIndex(1, 2, 3, 2, 3)
	if i != 23 {
		t.Errorf("VoxelIndex(1, 2, 3) = %d, want 23", i)
	}
	v.Data[i*5+4] = 7
	if s := v.Signal(i); len(s) != 5 || s[4] != 7 {
		t.Errorf("Signal(%d) = %v, expected last value 7", i, s)
	}
	if !v.InMask(i) {
		t.Errorf("voxel should be processed without a mask")
	}

	v.Mask = make([]bool, 24)
	if v.InMask(i) {
		t.Errorf("masked-out voxel reported as processed")
	}

	v.Mask = make([]bool, 3)
	if err := v.Validate(); err == nil {
		t.Errorf("expected error for short mask")
	}
	v.Mask = nil
	v.Data = v.Data[:10]
	if err := v.Validate(); err == nil {
		t.Errorf("expected error for short data")
	}
}

func TestFODVolume(t *testing.T) {
	v := NewFODVolume(2, 2, 1, 4, 15)
	if len(v.Data) != 60 {
		t.Fatalf("len(Data) = %d, want 60", len(v.Data))
	}
	v.Coefficients(3)[0] = 1
	if v.Data[45] != 1 {
		t.Errorf("Coefficients(3) does not alias Data")
	}
	if len(v.Failed) != 4 || len(v.Iterations) != 4 {
		t.Errorf("per-voxel slices not sized to the grid")
	}
}
