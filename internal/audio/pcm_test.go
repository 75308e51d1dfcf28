package audio

import (
	"reflect"
	"testing"
)

func TestPCM16ByteOrder(t *testing.T) {
	got := SamplesToPCM16Bytes([]int16{1, -2, 256})
	want := []byte{0x01, 0x00, 0xFE, 0xFF, 0x00, 0x01}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SamplesToPCM16Bytes = %v, want %v", got, want)
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	got := PCM16BytesToSamples(SamplesToPCM16Bytes(in))
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("bytes->samples round trip = %v, want %v", got, in)
	}
}

func TestPCM16OddTrailingByteDropped(t *testing.T) {
	got := PCM16BytesToSamples([]byte{0x01, 0x00, 0xFF})
	want := []int16{1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PCM16BytesToSamples = %v, want %v", got, want)
	}
}

func TestTranscodeFrameSizes(t *testing.T) {
	// A 20 ms telephony frame is 160 mu-law bytes; toward the realtime
	// peer that becomes 480 samples of PCM16.
	frame := make([]byte, 160)
	for i := range frame {
		frame[i] = 0xFF
	}
	pcm := MulawToPCM24(frame)
	if len(pcm) != 480*2 {
		t.Fatalf("MulawToPCM24 length = %d, want %d", len(pcm), 480*2)
	}
	back := PCM24ToMulaw(pcm)
	if len(back) != 160 {
		t.Fatalf("PCM24ToMulaw length = %d, want 160", len(back))
	}
	for i, b := range back {
		if b != 0xFF {
			t.Fatalf("silence byte %d = %#02x, want 0xff", i, b)
		}
	}
}
