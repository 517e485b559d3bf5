package sample

// DownsampleSamples downsamples a slice of samples to a maximum number of points.
// Uses simple decimation to reduce the number of points for display.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// Returns the destination slice (may be dst if reused, or a new slice if dst was too small).
// If len(samples) <= maxPoints, copies all samples to dst (or allocates if dst is nil/too small).
func DownsampleSamples(dst []Sample, samples []Sample, maxPoints int) []Sample {
	return decimate(dst, samples, maxPoints)
}

// DownsampleValues downsamples a slice of values, such as rates of change, the
// same way DownsampleSamples does.
func DownsampleValues(dst []float64, values []float64, maxPoints int) []float64 {
	return decimate(dst, values, maxPoints)
}

func decimate[T any](dst []T, src []T, maxPoints int) []T {
	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		// dst too small, allocate new
		result := make([]T, len(src))
		copy(result, src)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0] // Reset length but keep capacity
	} else {
		dst = make([]T, 0, maxPoints)
	}

	// Calculate step size for decimation
	step := float64(len(src)) / float64(maxPoints)

	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(src) {
			dst = append(dst, src[idx])
		}
	}

	return dst
}
