package firehose

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ipfs/go-cid"
)

// decoder reads a sequence of DAG-CBOR values out of a byte slice. AT
// Protocol firehose frames and the records inside commit blocks are
// strict (definite-length) DAG-CBOR, so this decoder rejects indefinite-
// length items rather than supporting the full CBOR spec — exactly the
// subset spec §9's "minimal tagged structure for the payload shapes the
// system cares about" calls for.
type decoder struct {
	data []byte
	pos  int
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

// linkTag is the CBOR tag DAG-CBOR uses to wrap an IPLD link (a CID) as a
// byte string: tag(42, multibase-prefixed CID bytes).
const linkTag = 42

func (d *decoder) decodeValue() (interface{}, error) {
	b, err := d.readByte()
	if err != nil {
		return nil, err
	}

	major := b >> 5
	info := b & 0x1f

	switch major {
	case 0: // unsigned int
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		return n, nil
	case 1: // negative int
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		return -1 - int64(n), nil
	case 2: // byte string
		return d.readBytes(info)
	case 3: // text string
		raw, err := d.readBytes(info)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case 4: // array
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case 5: // map
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, n)
		for i := uint64(0); i < n; i++ {
			k, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("firehose: cbor map key is not a string: %T", k)
			}
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case 6: // tag
		tag, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		inner, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		if tag == linkTag {
			raw, ok := inner.([]byte)
			if !ok || len(raw) == 0 || raw[0] != 0 {
				return nil, fmt.Errorf("firehose: malformed CID link tag")
			}
			c, err := cid.Cast(raw[1:])
			if err != nil {
				return nil, fmt.Errorf("firehose: cast CID: %w", err)
			}
			return c, nil
		}
		return inner, nil
	case 7: // simple/float
		switch info {
		case 20:
			return false, nil
		case 21:
			return true, nil
		case 22, 23:
			return nil, nil
		case 25:
			raw, err := d.readN(2)
			if err != nil {
				return nil, err
			}
			return float64(math.Float32frombits(uint32(binary.BigEndian.Uint16(raw)) << 16)), nil
		case 26:
			raw, err := d.readN(4)
			if err != nil {
				return nil, err
			}
			return float64(math.Float32frombits(binary.BigEndian.Uint32(raw))), nil
		case 27:
			raw, err := d.readN(8)
			if err != nil {
				return nil, err
			}
			return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
		default:
			return nil, fmt.Errorf("firehose: unsupported simple value %d", info)
		}
	default:
		return nil, fmt.Errorf("firehose: unsupported cbor major type %d", major)
	}
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("firehose: unexpected end of cbor data")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, fmt.Errorf("firehose: unexpected end of cbor data")
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// readUint decodes the argument following a major-type byte whose low 5
// bits are info. Indefinite length (info == 31) is rejected.
func (d *decoder) readUint(info byte) (uint64, error) {
	switch {
	case info < 24:
		return uint64(info), nil
	case info == 24:
		b, err := d.readByte()
		return uint64(b), err
	case info == 25:
		b, err := d.readN(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(b)), nil
	case info == 26:
		b, err := d.readN(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(b)), nil
	case info == 27:
		b, err := d.readN(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		return 0, fmt.Errorf("firehose: indefinite-length items are not supported")
	}
}

func (d *decoder) readBytes(info byte) ([]byte, error) {
	n, err := d.readUint(info)
	if err != nil {
		return nil, err
	}
	return d.readN(int(n))
}
