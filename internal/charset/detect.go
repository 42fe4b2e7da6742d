package charset

import (
	"github.com/gogs/chardet"
)

// DefaultMinConfidence is the chardet score (0-100) a guess needs before it
// is trusted over the fallback. Short CJK names rarely score above it, while
// a Latin misreading of them often scores in the twenties.
const DefaultMinConfidence = 70

// Detector guesses the charset of a raw byte sequence. An empty label means
// detection produced no usable candidate.
type Detector interface {
	Detect(raw []byte) (label string, confidence float64)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(raw []byte) (string, float64)

func (f DetectorFunc) Detect(raw []byte) (string, float64) { return f(raw) }

// StatisticalDetector wraps the chardet text detector. Pure ASCII input is
// reported as "ascii" without running the recognizers, matching what most
// detectors report and keeping short names stable.
type StatisticalDetector struct {
	// MinConfidence is the lowest chardet score accepted; weaker guesses are
	// reported as no result. Zero selects DefaultMinConfidence.
	MinConfidence int
}

func (d StatisticalDetector) Detect(raw []byte) (string, float64) {
	if isASCII(raw) {
		return LabelASCII, 1
	}
	results, err := chardet.NewTextDetector().DetectAll(raw)
	if err != nil || len(results) == 0 {
		return "", 0
	}
	best := results[0]
	if best.Confidence < d.minConfidence() {
		return "", float64(best.Confidence) / 100
	}
	return best.Charset, float64(best.Confidence) / 100
}

func (d StatisticalDetector) minConfidence() int {
	if d.MinConfidence <= 0 {
		return DefaultMinConfidence
	}
	return d.MinConfidence
}

func isASCII(raw []byte) bool {
	for _, b := range raw {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
