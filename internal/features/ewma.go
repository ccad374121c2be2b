package features

// EWMA returns the exponentially weighted moving average with the given span.
//
// alpha = 2 / (span + 1). Weights are adjusted: the value at bar t is
//
//	sum_k (1-alpha)^k * x[t-k] / sum_k (1-alpha)^k
//
// over all bars seen so far, so the average is defined from the first bar.
// Only past and current bars contribute. A span < 1 yields all NaN.
func EWMA(values []float64, span float64) []float64 {
	out := make([]float64, len(values))
	if span < 1 {
		fillNaN(out)
		return out
	}
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (span + 1.0)
	decay := 1.0 - alpha

	avg := values[0]
	oldWeight := 1.0
	out[0] = avg

	for i := 1; i < len(values); i++ {
		cur := values[i]
		oldWeight *= decay
		if avg != cur {
			avg = (oldWeight*avg + cur) / (oldWeight + 1.0)
		}
		oldWeight += 1.0
		out[i] = avg
	}
	return out
}
