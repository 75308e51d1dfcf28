package audio

import "encoding/binary"

// PCM16 bytes on the wire are little-endian regardless of host order.

// PCM16BytesToSamples converts little-endian PCM16 bytes to samples.
// A trailing odd byte is dropped.
func PCM16BytesToSamples(data []byte) []int16 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// SamplesToPCM16Bytes converts samples to little-endian PCM16 bytes.
func SamplesToPCM16Bytes(samples []int16) []byte {
	if len(samples) == 0 {
		return nil
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
