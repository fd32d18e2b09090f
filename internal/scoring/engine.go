package scoring

import (
	"strings"

	"go.uber.org/zap"
)

// MaxHeuristicScore is the upper bound of a raw heuristic score
const MaxHeuristicScore = 70

// Engine runs the detector set. The zero value is not usable; call NewEngine.
type Engine struct {
	detectors []detector
	logger    *zap.Logger
}

// NewEngine creates an engine using the built-in detectors.
// A nil logger is replaced with a no-op logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		detectors: defaultDetectors,
		logger:    logger,
	}
}

// ComputeHeuristics scores body and header with the built-in detectors
func ComputeHeuristics(body string, header EmailHeader) HeuristicResult {
	return defaultEngine.Compute(body, header)
}

var defaultEngine = NewEngine(nil)

// Compute runs every detector in order against the same input. Detectors share a
// single running total that is floored at zero after each contribution; the final
// total is clamped to [0, MaxHeuristicScore].
func (e *Engine) Compute(body string, header EmailHeader) HeuristicResult {
	in := input{
		body:      body,
		lowerBody: strings.ToLower(body),
		header:    header,
	}

	result := HeuristicResult{
		Details:            []string{},
		SuspiciousElements: []string{},
	}

	total := 0
	for _, d := range e.detectors {
		sig, ok := e.runDetector(d, in, total)
		if !ok {
			continue
		}
		total = max(0, total+sig.delta)
		result.Details = append(result.Details, sig.findings...)
		result.SuspiciousElements = append(result.SuspiciousElements, sig.suspicious...)
	}

	result.Score = clamp(total, 0, MaxHeuristicScore)
	return result
}

// runDetector isolates a detector so that a panic costs only its own contribution
func (e *Engine) runDetector(d detector, in input, running int) (sig signal, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Detector failed, ignoring its contribution",
				zap.String("detector", d.name),
				zap.Any("panic", r))
			sig, ok = signal{}, false
		}
	}()
	return d.run(in, running), true
}

func clamp(v, lo, hi int) int {
	return min(hi, max(lo, v))
}
