package postprocessors

import (
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/quality"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("quality", buildQuality)
}

// buildQuality creates the quality gate from generic config.
// Supported config keys:
//   - min_length, max_length (int): inclusive length bounds (default: 30, 8000)
//   - min_alnum_ratio (float): noise threshold (default: 0.30)
//   - min_unique_word_ratio (float): repetition threshold (default: 0.5)
//   - near_duplicate (float): word-set Jaccard treated as a repeat (default: 0.95)
func buildQuality(cfg map[string]any) (driven.ChunkProcessor, error) {
	var opts []quality.Option

	if cfg != nil {
		minLen := getIntFromConfig(cfg, "min_length")
		maxLen := getIntFromConfig(cfg, "max_length")
		if maxLen > 0 {
			opts = append(opts, quality.WithLengthBounds(minLen, maxLen))
		}
		if r, ok := getFloatFromConfig(cfg, "min_alnum_ratio"); ok {
			opts = append(opts, quality.WithMinAlnumRatio(r))
		}
		if r, ok := getFloatFromConfig(cfg, "min_unique_word_ratio"); ok {
			opts = append(opts, quality.WithMinUniqueWordRatio(r))
		}
		if j, ok := getFloatFromConfig(cfg, "near_duplicate"); ok {
			opts = append(opts, quality.WithNearDuplicate(j))
		}
	}

	return quality.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// getFloatFromConfig extracts a float, widening integers.
func getFloatFromConfig(cfg map[string]any, key string) (float64, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
