package audio

// Upsample8To24 converts 8 kHz samples to 24 kHz by linear interpolation,
// emitting three output samples per input sample. The final source sample
// has no successor and is held flat.
func Upsample8To24(samples []int16) []int16 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]int16, 0, len(samples)*3)
	for i := 0; i < len(samples)-1; i++ {
		a := int32(samples[i])
		b := int32(samples[i+1])
		out = append(out,
			samples[i],
			int16(div3Round(2*a+b)),
			int16(div3Round(a+2*b)),
		)
	}
	last := samples[len(samples)-1]
	out = append(out, last, last, last)
	return out
}

// Downsample24To8 converts 24 kHz samples to 8 kHz by keeping every third
// sample starting at index 0. A trailing partial triple is discarded.
func Downsample24To8(samples []int16) []int16 {
	n := len(samples) / 3
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = samples[3*i]
	}
	return out
}

func div3Round(v int32) int32 {
	if v >= 0 {
		return (v + 1) / 3
	}
	return (v - 1) / 3
}
