// Package confidence implements the stability-weighted merge rule used when
// a fresh generation lands on a fingerprint that already has history.
package confidence

// Merge combines an entry's existing confidence with a new generation's
// self-reported confidence using an exponentially-weighted update:
//
//	merged = existing*(1-w) + incoming*w, w = 1/(1+usageCount)
//
// Early generations move the score quickly; a heavily-reused entry's score
// stabilizes. The result is clamped to [0,1], so no sequence of merges can
// push the score out of range.
func Merge(existing, incoming float64, usageCount int64) float64 {
	if usageCount < 0 {
		usageCount = 0
	}
	w := 1.0 / (1.0 + float64(usageCount))
	return Clamp(existing*(1.0-w) + incoming*w)
}

// Clamp bounds a confidence value to [0,1]. NaN is treated as zero so a
// misbehaving generator can never poison a stored score.
func Clamp(c float64) float64 {
	if c != c { // NaN
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
