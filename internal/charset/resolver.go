package charset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rezip/internal/faults"
	"rezip/internal/logging"
)

// DefaultFallback is used when detection yields no confident label. Short
// Shift_JIS names are the common case that statistical detectors miss.
const DefaultFallback = "Shift_JIS"

// comparisonLabels are decoded side by side in debug output for names that
// are neither ASCII nor UTF-8.
var comparisonLabels = []string{"GB18030", "ISO-2022-JP"}

// Resolution is the outcome of resolving one raw name.
type Resolution struct {
	Text       string
	Label      string
	Confidence float64
	Fallback   bool
}

// Resolver decodes raw entry names.
type Resolver struct {
	detector Detector
	fallback string
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDetector replaces the statistical detector.
func WithDetector(d Detector) Option {
	return func(r *Resolver) {
		if d != nil {
			r.detector = d
		}
	}
}

// WithMinConfidence sets the chardet score the statistical detector needs
// before its guess wins over the fallback. It has no effect on a detector
// installed with WithDetector.
func WithMinConfidence(score int) Option {
	return func(r *Resolver) {
		if _, ok := r.detector.(StatisticalDetector); ok {
			r.detector = StatisticalDetector{MinConfidence: score}
		}
	}
}

// WithLogger sets the logger used for fallback notices and debug comparisons.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver builds a Resolver that falls back to the given label. The
// fallback must map to a decoder.
func NewResolver(fallback string, opts ...Option) (*Resolver, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallback
	}
	if _, _, err := Lookup(fallback); err != nil {
		return nil, fmt.Errorf("fallback encoding: %w", err)
	}
	r := &Resolver{
		detector: StatisticalDetector{},
		fallback: fallback,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	return r, nil
}

// Fallback returns the configured fallback label.
func (r *Resolver) Fallback() string {
	return r.fallback
}

// Resolve detects the charset of raw and decodes it. It fails only when the
// detected label has no decoder or the decoder cannot be run.
func (r *Resolver) Resolve(raw []byte) (Resolution, error) {
	label, confidence := r.detector.Detect(raw)
	res := Resolution{Label: label, Confidence: confidence}
	if strings.TrimSpace(label) == "" {
		logging.WarnWithContext(r.logger, "charset detection gave no confident result; using fallback", "charset_fallback",
			logging.String("fallback", r.fallback),
			logging.Float64("confidence", confidence),
			logging.String("raw", lossy(raw)),
			logging.String(logging.FieldErrorHint, "set rezip.fallback_encoding if names decode incorrectly"),
			logging.String(logging.FieldImpact, "entry name decoded with fallback encoding"),
		)
		res.Label = r.fallback
		res.Fallback = true
	}

	enc, name, err := Lookup(res.Label)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w (confidence %.2f)", err, confidence)
	}

	text, err := decodeIgnoring(enc.NewDecoder(), raw)
	if err != nil {
		return Resolution{}, faults.Wrap(faults.ErrDecodeFailed, "resolve", "decode", fmt.Sprintf("charset %s confidence %.2f", res.Label, confidence), err)
	}
	res.Text = text

	if name != LabelUTF8 && r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logComparison(raw, res)
	}
	return res, nil
}

func (r *Resolver) logComparison(raw []byte, res Resolution) {
	attrs := []logging.Attr{
		logging.String("charset", res.Label),
		logging.Float64("confidence", res.Confidence),
		logging.String("raw", lossy(raw)),
		logging.String("decoded", res.Text),
	}
	labels := append(append([]string{}, comparisonLabels...), r.fallback)
	for _, label := range labels {
		attrs = append(attrs, logging.String(strings.ToLower(label), decodeOrPlaceholder(label, raw)))
	}
	r.logger.Debug("entry name charset comparison", logging.Args(attrs...)...)
}

func decodeOrPlaceholder(label string, raw []byte) string {
	enc, _, err := Lookup(label)
	if err != nil {
		return "?"
	}
	text, err := decodeIgnoring(enc.NewDecoder(), raw)
	if err != nil {
		return "?"
	}
	return text
}
