package audio

// MulawToPCM24 converts a telephony frame (mu-law 8 kHz) to the realtime
// peer's format (PCM16 24 kHz little-endian).
func MulawToPCM24(data []byte) []byte {
	return SamplesToPCM16Bytes(Upsample8To24(DecodeMulaw(data)))
}

// PCM24ToMulaw converts a realtime audio delta (PCM16 24 kHz little-endian)
// to a telephony frame (mu-law 8 kHz).
func PCM24ToMulaw(data []byte) []byte {
	return EncodeMulaw(Downsample24To8(PCM16BytesToSamples(data)))
}
