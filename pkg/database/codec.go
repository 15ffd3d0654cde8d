package database

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Little-endian blob layouts used by the SQLite table and the buffer store.

// EncodeComplex packs complex64 values as interleaved float32 pairs.
func EncodeComplex(values []complex64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[8*i:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(buf[8*i+4:], math.Float32bits(imag(v)))
	}
	return buf
}

// DecodeComplex is the inverse of EncodeComplex.
func DecodeComplex(buf []byte) ([]complex64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("complex blob length %d is not a multiple of 8", len(buf))
	}
	out := make([]complex64, len(buf)/8)
	for i := range out {
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[8*i:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[8*i+4:]))
		out[i] = complex(re, im)
	}
	return out, nil
}

// EncodeFloat32 packs float32 values.
func EncodeFloat32(values []float32) []byte {
	if values == nil {
		return nil
	}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeFloat32 is the inverse of EncodeFloat32. A nil blob decodes to nil.
func DecodeFloat32(buf []byte) ([]float32, error) {
	if buf == nil {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("float blob length %d is not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}

// EncodeBool packs one byte per flag.
func EncodeBool(values []bool) []byte {
	if values == nil {
		return nil
	}
	buf := make([]byte, len(values))
	for i, v := range values {
		if v {
			buf[i] = 1
		}
	}
	return buf
}

// DecodeBool is the inverse of EncodeBool.
func DecodeBool(buf []byte) []bool {
	if buf == nil {
		return nil
	}
	out := make([]bool, len(buf))
	for i, b := range buf {
		out[i] = b != 0
	}
	return out
}

// EncodeFloat64 packs float64 values.
func EncodeFloat64(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 is the inverse of EncodeFloat64.
func DecodeFloat64(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("double blob length %d is not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}
