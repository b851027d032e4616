package triage

import "sort"

// saturationHalfScale is the raw-contribution total at which the
// compressed score reaches 5.0 (half scale). The saturation keeps a
// single moderate signal from reaching the top of the scale while letting
// co-occurring signals or rule weights push toward it.
const saturationHalfScale = 4.0

type codeKey struct {
	source Source
	code   string
}

// Score computes the continuous risk score in [0,10] from the normalized
// signal set plus the triggered-rule weight sum.
//
// Per signal, contribution = severity x confidence. Repeated mentions of
// the same code from the same source do not additively inflate risk: only
// the maximum contribution per (source, code) counts. Contributions are
// summed across distinct codes and compressed through a strictly
// increasing saturating function, so the result is idempotent and
// monotone in its inputs. Zero-confidence signals and entirely absent
// modalities contribute nothing and never suppress other modalities.
func Score(signals []Signal, ruleWeight float64) float64 {
	best := make(map[codeKey]float64, len(signals))
	for i := range signals {
		s := &signals[i]
		c := s.Severity * s.Confidence
		if c <= 0 {
			continue
		}
		key := codeKey{s.Source, s.Code}
		if c > best[key] {
			best[key] = c
		}
	}

	// Float addition is not associative, so sum in a fixed key order to
	// keep identical signal sets bit-identical across runs.
	keys := make([]codeKey, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].code < keys[j].code
	})

	raw := ruleWeight
	for _, k := range keys {
		raw += best[k]
	}
	if raw <= 0 {
		return 0
	}

	score := 10 * raw / (raw + saturationHalfScale)
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
