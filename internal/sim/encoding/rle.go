// Package encoding compacts per-cell layers for transport to observers.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrCorrupt = errors.New("encoding: corrupt run-length data")

// EncodeRLE packs palette ids as base64 of (id, run) uvarint pairs.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		id := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == id {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(id))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. It refuses to expand past limit ids when
// limit is positive.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var out []uint16
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint at %d", ErrCorrupt, i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 || run == 0 {
			return nil, fmt.Errorf("%w: bad run at %d", ErrCorrupt, i)
		}
		i += n
		if id > 0xFFFF {
			return nil, fmt.Errorf("%w: id too large: %d", ErrCorrupt, id)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("%w: more than %d ids", ErrCorrupt, limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(id))
		}
	}
	return out, nil
}
