// Package fingerprint derives a heuristic device identifier from browser
// environment signals. The identifier is not a security credential: two
// devices may collide, and the same device may drift when its signals change.
package fingerprint

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// CanvasUnavailable replaces the canvas sample when it cannot be produced.
const CanvasUnavailable = "canvas-unavailable"

// FallbackPrefix marks identifiers produced without hashing.
const FallbackPrefix = "fallback-"

// CanvasSampler renders the canvas probe and returns its serialized output.
type CanvasSampler func() (string, error)

// Signals is the environment a fingerprint is computed from.
type Signals struct {
	UserAgent      string
	Language       string
	ScreenWidth    int
	ScreenHeight   int
	ColorDepth     int
	TimezoneOffset int
	Canvas         CanvasSampler
}

var (
	now    = time.Now
	random = func() uint64 { return rand.Uint64() }
	digest = hash
)

// Generate returns the fingerprint for s. It never panics and never returns
// an empty string; if hashing cannot complete it returns a
// "fallback-<millis>-<random>" identifier instead.
func Generate(s Signals) (id string) {
	defer func() {
		if r := recover(); r != nil || id == "" {
			id = fallback()
		}
	}()

	components := []string{
		s.UserAgent,
		s.Language,
		fmt.Sprintf("%dx%dx%d", s.ScreenWidth, s.ScreenHeight, s.ColorDepth),
		strconv.Itoa(s.TimezoneOffset),
		sampleCanvas(s.Canvas),
	}

	return digest(strings.Join(components, "|"))
}

func sampleCanvas(sampler CanvasSampler) (sample string) {
	if sampler == nil {
		return CanvasUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			sample = CanvasUnavailable
		}
	}()

	out, err := sampler()
	if err != nil {
		return CanvasUnavailable
	}
	return out
}

// hash folds the UTF-16 code units of s with h = h*31 + c in 32-bit
// wrapping arithmetic and renders |h| in base 36.
func hash(s string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(unit)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 36)
}

func fallback() string {
	return FallbackPrefix +
		strconv.FormatInt(now().UnixMilli(), 10) + "-" +
		strconv.FormatUint(random(), 36)
}

// IsFallback reports whether id was produced by the fallback path.
func IsFallback(id string) bool {
	return strings.HasPrefix(id, FallbackPrefix)
}
