// Package utils contains process-level helpers shared by the gateway packages
package utils

import (
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/mattn/go-isatty"
)

// IsTTY returns true if program is running with TTY
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// SortedKeys returns the map keys in ascending order
func SortedKeys[T any](val map[string]T) []string {
	res := make([]string, 0, len(val))

	for k := range val {
		res = append(res, k)
	}

	sort.Strings(res)

	return res
}

// NextRetry returns a cooldown duration before next attempt using
// a simple exponential backoff
func NextRetry(step int) time.Duration {
	if step == 0 {
		return 250 * time.Millisecond
	}

	left := math.Pow(2, float64(step))
	right := 2 * left

	secs := left + (right-left)*rand.Float64() // nolint:gosec
	return time.Duration(secs) * time.Second
}
