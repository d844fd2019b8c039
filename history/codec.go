package history

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// codec packs a batch of values: XOR against the previous value, then zstd.
// Sensor batches are smooth, so most XOR words are mostly zero bytes.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{encoder: encoder, decoder: decoder}, nil
}

func (c *codec) encodeValues(values []float64) []byte {
	if len(values) == 0 {
		return nil
	}
	raw := make([]byte, 8*len(values))
	var prev uint64
	for i, v := range values {
		bits := math.Float64bits(v)
		binary.LittleEndian.PutUint64(raw[8*i:], bits^prev)
		prev = bits
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

func (c *codec) decodeValues(data []byte, count int) ([]float64, error) {
	if count == 0 {
		return []float64{}, nil
	}
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress values: %w", err)
	}
	if len(raw) != 8*count {
		return nil, fmt.Errorf("decompress values: got %d bytes for %d values", len(raw), count)
	}
	values := make([]float64, count)
	r := bytes.NewReader(raw)
	var prev uint64
	for i := range values {
		var x uint64
		if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
			return nil, err
		}
		prev ^= x
		values[i] = math.Float64frombits(prev)
	}
	return values, nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
