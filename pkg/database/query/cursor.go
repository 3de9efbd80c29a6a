package query

import (
	"encoding/binary"
)

// Cursor is an opaque position within a paged result set, encoding the id of
// the last record seen.
type Cursor []byte

var EmptyCursor = Cursor{}

func ToCursor(id uint64) Cursor {
	b := make(Cursor, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// ToUint64 decodes the record id. Malformed cursors decode to zero.
func (c Cursor) ToUint64() uint64 {
	if len(c) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(c)
}
