package bufstore

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/bisegni/visdata/pkg/database"
)

// Blob layout, little endian:
//
//	magic "VCUB" | version u8 | flags u8 | nRow u32 | nChan u32 | nPol u32 | payload
//
// The payload is database.EncodeComplex of the cube data, snappy
// compressed when flagSnappy is set.
const (
	cubeMagic   = "VCUB"
	cubeVersion = 1
	headerSize  = 4 + 1 + 1 + 3*4

	flagSnappy = 1 << 0
)

// EncodeCube serialises a cube.
func EncodeCube(c *database.Cube[complex64], compress bool) []byte {
	payload := database.EncodeComplex(c.Data)
	var flags byte
	if compress {
		payload = snappy.Encode(nil, payload)
		flags |= flagSnappy
	}
	buf := make([]byte, headerSize, headerSize+len(payload))
	copy(buf, cubeMagic)
	buf[4] = cubeVersion
	buf[5] = flags
	binary.LittleEndian.PutUint32(buf[6:], uint32(c.NRow))
	binary.LittleEndian.PutUint32(buf[10:], uint32(c.NChan))
	binary.LittleEndian.PutUint32(buf[14:], uint32(c.NPol))
	return append(buf, payload...)
}

// DecodeCube is the inverse of EncodeCube.
func DecodeCube(buf []byte) (*database.Cube[complex64], error) {
	if len(buf) < headerSize || string(buf[:4]) != cubeMagic {
		return nil, fmt.Errorf("not a cube blob")
	}
	if buf[4] != cubeVersion {
		return nil, fmt.Errorf("unsupported cube blob version %d", buf[4])
	}
	flags := buf[5]
	nRow := int(binary.LittleEndian.Uint32(buf[6:]))
	nChan := int(binary.LittleEndian.Uint32(buf[10:]))
	nPol := int(binary.LittleEndian.Uint32(buf[14:]))

	payload := buf[headerSize:]
	if flags&flagSnappy != 0 {
		var err error
		payload, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress cube: %w", err)
		}
	}
	data, err := database.DecodeComplex(payload)
	if err != nil {
		return nil, err
	}
	if len(data) != nRow*nChan*nPol {
		return nil, fmt.Errorf("cube blob holds %d elements, header says %dx%dx%d", len(data), nRow, nChan, nPol)
	}
	return &database.Cube[complex64]{NRow: nRow, NChan: nChan, NPol: nPol, Data: data}, nil
}
