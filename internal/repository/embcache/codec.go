package embcache

import (
	"encoding/binary"
	"fmt"
	"math"
)

// codecV1 tags entries as little-endian float32 vectors. Entries with another
// tag are treated as misses and overwritten.
const codecV1 byte = 1

func encodeVector(v []float32) []byte {
	buf := make([]byte, 1+len(v)*4)
	buf[0] = codecV1
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[1+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || data[0] != codecV1 {
		return nil, fmt.Errorf("unknown embedding cache format")
	}
	body := data[1:]
	if len(body) == 0 || len(body)%4 != 0 {
		return nil, fmt.Errorf("embedding cache entry has %d payload bytes", len(body))
	}
	vec := make([]float32, len(body)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return vec, nil
}
