package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const sessionFormatVersionCurrent = 1

// ErrCorrupt is returned by Decode for blobs that are truncated or carry an unknown
// format version.
var ErrCorrupt = errors.New("corrupt session record")

// Encode serializes s into the compact binary form stored by [RedisStore].
// The session id is not part of the blob; it is the storage key.
//
// Layout (big endian): version u8 | len u8 | user id | len u8 | ip | created i64 | expires i64.
// Timestamps are Unix nanoseconds, with 0 standing for the zero time.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	var buf bytes.Buffer
	buf.Grow(2 + len(s.UserID) + 1 + len(s.IPAddress) + 16)

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if len(s.IPAddress) > 255 {
		return nil, errors.New("ip address too long")
	}
	buf.WriteByte(byte(len(s.IPAddress)))
	buf.WriteString(s.IPAddress)

	if err := binary.Write(&buf, binary.BigEndian, unixNano(s.CreatedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(s.ExpiresAt)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. The returned session has an empty ID.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != sessionFormatVersionCurrent {
		return nil, ErrCorrupt
	}

	s := &Session{}

	userID, err := readShortString(reader)
	if err != nil {
		return nil, err
	}
	s.UserID = userID

	ip, err := readShortString(reader)
	if err != nil {
		return nil, err
	}
	s.IPAddress = ip

	var created, expires int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, ErrCorrupt
	}
	if reader.Len() != 0 {
		return nil, ErrCorrupt
	}
	s.CreatedAt = fromUnixNano(created)
	s.ExpiresAt = fromUnixNano(expires)

	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", ErrCorrupt
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrCorrupt
	}
	return string(b), nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
