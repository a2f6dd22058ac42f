// Package d4 implements the IEEE 1284.4 ("D4") packet-multiplexing
// transport: frame encode/decode, channel credit accounting, and the
// channel-0 command protocol. Grounded on original_source/ez_reset/d4.py.
package d4

import (
	"encoding/binary"

	"github.com/CiRIP/ez-reset/errkind"
)

// headerLen is the fixed 6-byte D4 frame header: psid, ssid, length(u16),
// credit, control.
const headerLen = 6

// Control bit flags.
const (
	ControlEndOfData = 0x02
)

// Packet is one immutable D4 frame: psid/ssid identify the channel,
// credit piggybacks flow-control tokens to the peer, control carries the
// end-of-data flag, and payload is the frame body.
type Packet struct {
	PSID    byte
	SSID    byte
	Credit  byte
	Control byte
	Payload []byte
}

// Encode serializes p into wire format: psid|ssid|length:u16|credit|control|payload,
// where length includes the 6-byte header.
func (p Packet) Encode() ([]byte, error) {
	length := headerLen + len(p.Payload)
	if length > 0xFFFF {
		return nil, errkind.ProtocolErr("payload too large for a D4 frame", nil)
	}
	buf := make([]byte, length)
	buf[0] = p.PSID
	buf[1] = p.SSID
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	buf[4] = p.Credit
	buf[5] = p.Control
	copy(buf[6:], p.Payload)
	return buf, nil
}

// DecodeHeader parses the 6-byte header and returns the partially filled
// Packet plus the payload length still to be read.
func DecodeHeader(header []byte) (Packet, int, error) {
	if len(header) != headerLen {
		return Packet{}, 0, errkind.FormatErr("D4 header must be 6 bytes", nil)
	}
	length := binary.BigEndian.Uint16(header[2:4])
	if int(length) < headerLen {
		return Packet{}, 0, errkind.FormatErr("D4 frame length shorter than header", nil)
	}
	p := Packet{
		PSID:    header[0],
		SSID:    header[1],
		Credit:  header[4],
		Control: header[5],
	}
	return p, int(length) - headerLen, nil
}
