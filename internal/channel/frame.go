package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/advect/internal/ir"
)

// Frame layout, big-endian:
//
//	0  magic      uint32
//	4  version    uint16
//	6  kind       uint8
//	7  flags      uint8 (reserved, zero)
//	8  from       uint32
//	12 to         uint32
//	16 domain     int64
//	24 time step  int64
//	32 length     uint64
//	40 payload    [length]byte
const (
	FrameMagic     uint32 = 0x41445643 // "ADVC"
	FrameHeaderLen        = 40
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrBadMagic        = errors.New("frame: bad magic")
	ErrBadVersion      = errors.New("frame: unsupported version")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

// DefaultLimits allows domain payloads up to 256 MiB.
func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 256 << 20}
}

// WriteMessage encodes msg as one frame.
func WriteMessage(w io.Writer, msg ir.Message, limits Limits) error {
	if uint64(len(msg.Data)) > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	if _, err := w.Write(encodeHeader(msg)); err != nil {
		return err
	}
	if len(msg.Data) > 0 {
		if _, err := w.Write(msg.Data); err != nil {
			return err
		}
	}
	return nil
}

// ReadMessage decodes one frame. A clean end of stream before the first
// header byte returns io.EOF.
func ReadMessage(r io.Reader, limits Limits) (ir.Message, error) {
	var hdr [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return ir.Message{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ir.Message{}, ErrShortHeader
		}
		return ir.Message{}, err
	}

	msg, length, err := decodeHeader(hdr[:])
	if err != nil {
		return ir.Message{}, err
	}
	if length > limits.MaxPayloadBytes {
		return ir.Message{}, ErrPayloadTooLarge
	}
	if length > 0 {
		msg.Data = make(ir.Payload, length)
		if _, err := io.ReadFull(r, msg.Data); err != nil {
			return ir.Message{}, fmt.Errorf("frame: read payload: %w", err)
		}
	}
	return msg, nil
}

func encodeHeader(msg ir.Message) []byte {
	buf := make([]byte, FrameHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], FrameMagic)
	binary.BigEndian.PutUint16(buf[4:6], ir.WireVersion)
	buf[6] = uint8(msg.Kind)
	buf[7] = 0
	binary.BigEndian.PutUint32(buf[8:12], uint32(msg.From))
	binary.BigEndian.PutUint32(buf[12:16], uint32(msg.To))
	binary.BigEndian.PutUint64(buf[16:24], uint64(int64(msg.Key.Domain)))
	binary.BigEndian.PutUint64(buf[24:32], uint64(int64(msg.Key.TimeStep)))
	binary.BigEndian.PutUint64(buf[32:40], uint64(len(msg.Data)))
	return buf
}

func decodeHeader(b []byte) (ir.Message, uint64, error) {
	if len(b) < FrameHeaderLen {
		return ir.Message{}, 0, ErrShortHeader
	}
	if binary.BigEndian.Uint32(b[0:4]) != FrameMagic {
		return ir.Message{}, 0, ErrBadMagic
	}
	if v := binary.BigEndian.Uint16(b[4:6]); v != ir.WireVersion {
		return ir.Message{}, 0, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	kind := ir.Kind(b[6])
	if kind < ir.KindDone || kind > ir.KindHello {
		return ir.Message{}, 0, fmt.Errorf("frame: unknown kind %d", b[6])
	}
	msg := ir.Message{
		Kind: kind,
		From: int(binary.BigEndian.Uint32(b[8:12])),
		To:   int(binary.BigEndian.Uint32(b[12:16])),
		Key: ir.DomainKey{
			Domain:   int(int64(binary.BigEndian.Uint64(b[16:24]))),
			TimeStep: int(int64(binary.BigEndian.Uint64(b[24:32]))),
		},
	}
	return msg, binary.BigEndian.Uint64(b[32:40]), nil
}
