package recorder

import (
	"encoding/binary"
	"math"
	"time"
)

// FloorDB is the level mapped to 0.
const FloorDB = -60.0

// silenceDB is reported for an all-zero buffer.
const silenceDB = -160.0

// NormalizeLevel maps [FloorDB, 0] dB linearly to [0, 1], clamped.
func NormalizeLevel(db float64) float64 {
	v := (db - FloorDB) / -FloorDB
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// rmsDB estimates the level of little-endian 16-bit PCM samples in dBFS.
func rmsDB(buf []byte) float64 {
	n := len(buf) / 2
	if n == 0 {
		return silenceDB
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(buf[2*i:])))
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return silenceDB
	}
	return 20 * math.Log10(rms/32768)
}

// FileName returns the name for a capture started at t, e.g.
// toukan_2025-03-01T10-00-00.000Z.m4a.
func FileName(t time.Time) string {
	return "toukan_" + t.UTC().Format("2006-01-02T15-04-05.000Z") + ".m4a"
}
