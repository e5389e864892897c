package queue

import (
	"encoding/binary"
	"hash/crc32"
)

// Stored record: bodyLen(4B BE) | body | crc32c(body)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames a body with a length prefix and trailing checksum.
func EncodeRecord(body []byte) []byte {
	out := make([]byte, 0, 4+len(body)+4)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(body)))
	out = append(out, lb[:]...)
	out = append(out, body...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(body, castagnoli))
	out = append(out, cb[:]...)
	return out
}

// DecodeRecord validates the frame and checksum and returns a copy of the
// body. The second return is false for truncated or corrupt records.
func DecodeRecord(b []byte) ([]byte, bool) {
	if len(b) < 8 {
		return nil, false
	}
	blen := binary.BigEndian.Uint32(b[:4])
	if int(4+blen+4) != len(b) {
		return nil, false
	}
	body := b[4 : 4+blen]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return nil, false
	}
	return append([]byte(nil), body...), true
}
