package summarizer

import (
	"fmt"

	"github.com/fyrsmithlabs/compressd/internal/critical"
)

// ForStrategy returns the summarizer implementing the named strategy.
func ForStrategy(s Strategy, cfg Config, detector *critical.Detector) (Summarizer, error) {
	switch s {
	case StrategyExtractive:
		return NewExtractive(cfg, detector), nil
	case StrategyAbstractive:
		return NewAbstractive(cfg, detector), nil
	case StrategyHybrid:
		return NewHybrid(cfg, detector), nil
	case StrategyCritical:
		return NewCriticalPreserving(cfg, detector), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}
