package control

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CiRIP/ez-reset/errkind"
	"github.com/CiRIP/ez-reset/transport"
)

var end4Log = logrus.WithField("component", "control.end4")

// exitPacketMode2 re-enters 1284.4 packet mode escape, then the device is
// driven into proprietary END4 mode by streaming idle bytes equal to the
// DDS value advertised in its 1284 ID string.
var exitPacketMode2 = []byte("\x00\x00\x00\x1b\x01@EJL 1284.4\n@EJL\t\t\t\t\t\n")

const ddsChunkSize = 0x8000
const end4ReadChunk = 1024
const end4ResponsePrefix = "END4"

// END4Backend is the ControlBackend variant for devices that speak
// Epson's proprietary END4 framing directly over the print data line,
// without full 1284.4 channel multiplexing. Grounded on
// original_source/ez_reset/end4.py's END4ControlBackend.
type END4Backend struct {
	transport transport.Transport
}

// OpenEND4Backend identifies the device, re-enters packet mode, and primes
// END4 mode by streaming DDS idle bytes in 32 KiB chunks.
func OpenEND4Backend(t transport.Transport) (*END4Backend, error) {
	if t.Closed() {
		return nil, errkind.BackendErr("BiDi device is closed", nil)
	}

	id, err := t.Identify()
	if err != nil {
		return nil, err
	}
	fields := ParseIdentifier(id)
	ddsStr, ok := fields["DDS"]
	if !ok {
		return nil, errkind.BackendErr("1284 ID string missing DDS field", nil)
	}
	dds, err := strconv.ParseInt(ddsStr, 16, 64)
	if err != nil {
		return nil, errkind.BackendErr("DDS field is not hex", err)
	}

	if err := t.Write(exitPacketMode2); err != nil {
		return nil, err
	}

	idle := make([]byte, ddsChunkSize)
	for i := range idle {
		idle[i] = 0x11
	}
	for dds > 0 {
		if err := t.Write(idle); err != nil {
			return nil, err
		}
		dds -= ddsChunkSize
	}

	return &END4Backend{transport: t}, nil
}

// Send drains stale input, frames command in the END4 wire format, and
// reads 1 KiB chunks until one begins with "END4". The tenth byte of that
// chunk carries the total reply length (header plus payload); bytes past
// it are padding left over from the fixed-size USB read and are trimmed
// off, not returned.
func (b *END4Backend) Send(command []byte) ([]byte, error) {
	if err := b.transport.Drain(); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 13+len(command))
	frame = append(frame, []byte(end4ResponsePrefix)...)
	frame = append(frame, 0x02, 0x01, 0x00, 0x00, 0x00)
	frame = append(frame, byte(len(command)+14))
	frame = append(frame, 0x00, 0x00, 0x02, 0x00)
	frame = append(frame, command...)

	end4Log.WithField("n", len(frame)).Debug("send")
	if err := b.transport.Write(frame); err != nil {
		return nil, err
	}

	var response []byte
	for {
		chunk := make([]byte, end4ReadChunk)
		if err := b.transport.Read(chunk); err != nil {
			return nil, err
		}
		response = chunk
		if len(response) >= len(end4ResponsePrefix) && string(response[:len(end4ResponsePrefix)]) == end4ResponsePrefix {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if len(response) < 10 {
		return nil, errkind.BackendErr("END4 reply shorter than its own header", nil)
	}
	totalLen := int(response[9])
	if totalLen < 10 || totalLen > len(response) {
		return nil, errkind.BackendErr("received incomplete END4 packet", nil)
	}

	return response[10:totalLen], nil
}

func (b *END4Backend) Identify() (string, error) {
	return b.transport.Identify()
}

func (b *END4Backend) Close() error {
	return nil
}
