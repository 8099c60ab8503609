package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
)

// Key tags. Integers sort before strings.
const (
	tagInt    byte = 0x01
	tagString byte = 0x02
)

// EncodeKey encodes a string or integral number into an order-preserving
// byte key.
func EncodeKey(v any) ([]byte, error) {
	switch k := v.(type) {
	case string:
		return append([]byte{tagString}, k...), nil
	case int:
		return encodeInt(int64(k)), nil
	case int32:
		return encodeInt(int64(k)), nil
	case int64:
		return encodeInt(k), nil
	case float64:
		// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if math.IsInf(k, 0) || math.IsNaN(k) || k != math.Trunc(k) || k >= math.MaxInt64 || k < math.MinInt64 {
			return nil, fmt.Errorf("%w: %v is not an integer", kerrors.ErrInvalidKey, k)
		}
		return encodeInt(int64(k)), nil
	case json.Number:
		if i, err := k.Int64(); err == nil {
			return encodeInt(i), nil
		}
		f, err := k.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidKey, k)
		}
		return EncodeKey(f)
	case nil:
		return nil, fmt.Errorf("%w: missing", kerrors.ErrInvalidKey)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", kerrors.ErrInvalidKey, v)
	}
}

func encodeInt(i int64) []byte {
	buf := make([]byte, 9)
	buf[0] = tagInt
	binary.BigEndian.PutUint64(buf[1:], uint64(i)^(1<<63))
	return buf
}

// DecodeKey reverses EncodeKey, returning an int64 or a string.
func DecodeKey(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", kerrors.ErrInvalidKey)
	}
	switch b[0] {
	case tagString:
		return string(b[1:]), nil
	case tagInt:
		if len(b) != 9 {
			return nil, fmt.Errorf("%w: truncated integer", kerrors.ErrInvalidKey)
		}
		return int64(binary.BigEndian.Uint64(b[1:]) ^ (1 << 63)), nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %#x", kerrors.ErrInvalidKey, b[0])
	}
}

// indexPrefix is the length-prefixed encoded index value. Entries are
// prefix || encoded primary key, so a prefix scan finds exact matches only.
func indexPrefix(value []byte) []byte {
	buf := make([]byte, 4, 4+len(value))
	binary.BigEndian.PutUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func indexEntry(value, pk []byte) []byte {
	return append(indexPrefix(value), pk...)
}
