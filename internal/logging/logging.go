// Package logging holds the process-wide verbosity mode. Output itself goes
// through fmt and log as everywhere else; this package only decides whether
// it is wanted.
package logging

import (
	"fmt"
	"runtime"
)

type Flag int

const (
	Nil Flag = iota
	Performance
	Debug
)

// Mode is read by every package that reports progress, so it does not need
// to be threaded through each call.
var Mode Flag = Nil

// Enabled reports whether output at level f should be produced.
func Enabled(f Flag) bool { return f != Nil && Mode >= f }

// Debugf prints when Mode is Debug.
func Debugf(format string, args ...any) {
	if Enabled(Debug) {
		fmt.Printf(format, args...)
	}
}

// Perff prints when Mode is Performance or Debug.
func Perff(format string, args ...any) {
	if Enabled(Performance) {
		fmt.Printf(format, args...)
	}
}

// MemString returns a string containing statistics on the current memory
// usage of the process.
func MemString() string {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf(
		"Alloc - %d MB; Sys - %d MB; Integrated - %d MB",
		ms.Alloc>>20, ms.Sys>>20, ms.TotalAlloc>>20,
	)
}
