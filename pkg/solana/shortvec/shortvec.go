package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxEncodedSize is the largest number of bytes a compact-u16 may occupy.
const maxEncodedSize = 3

// EncodeLen encodes the specified len into the writer.
//
// If len > math.MaxUint16, an error is returned.
func EncodeLen(w io.Writer, len int) (n int, err error) {
	if len < 0 || len > math.MaxUint16 {
		return 0, errors.Errorf("len exceeds %d", math.MaxUint16)
	}

	written := 0
	valBuf := make([]byte, 1)

	for {
		valBuf[0] = byte(len & 0x7f)
		len >>= 7
		if len == 0 {
			n, err := w.Write(valBuf)
			written += n

			return written, err
		}

		valBuf[0] |= 0x80
		n, err := w.Write(valBuf)
		written += n
		if err != nil {
			return written, err
		}
	}
}

// DecodeLen decodes a shortvec encoded len from the reader. Encodings longer
// than necessary, or that overflow a uint16, are rejected.
func DecodeLen(r io.Reader) (val int, err error) {
	valBuf := make([]byte, 1)

	for offset := 0; offset < maxEncodedSize; offset++ {
		if _, err := io.ReadFull(r, valBuf); err != nil {
			return 0, err
		}

		val |= int(valBuf[0]&0x7f) << (offset * 7)

		if valBuf[0]&0x80 == 0 {
			if offset > 0 && valBuf[0] == 0 {
				return 0, errors.New("non-canonical encoding")
			}
			if val > math.MaxUint16 {
				return 0, errors.Errorf("value exceeds %d", math.MaxUint16)
			}
			return val, nil
		}
	}

	return 0, errors.Errorf("invalid size (max %d)", maxEncodedSize)
}
