package engine

import "errors"

// ErrDependencyMissing marks a complex computation whose required
// upstream event was not produced for the cycle. The computation is
// skipped; the run continues.
var ErrDependencyMissing = errors.New("required upstream event missing")

// ErrValueAbsent marks a computation whose channel values were absent
// after alignment where it needed them. Absence is never coerced to
// zero; the computation is skipped for the cycle.
var ErrValueAbsent = errors.New("channel value absent")

// skippable reports whether an error is a local per-computation skip
// rather than a cycle-fatal failure.
func skippable(err error) bool {
	return errors.Is(err, ErrDependencyMissing) || errors.Is(err, ErrValueAbsent)
}
