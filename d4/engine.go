package d4

import (
	"encoding/binary"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CiRIP/ez-reset/errkind"
	"github.com/CiRIP/ez-reset/transport"
)

var log = logrus.WithField("component", "d4")

// command opcodes, per the IEEE 1284.4 control-channel command table.
type command byte

const (
	cmdInit          command = 0
	cmdOpenChannel   command = 1
	cmdCloseChannel  command = 2
	cmdCredit        command = 3
	cmdCreditRequest command = 4
	cmdExit          command = 8
	cmdGetSocketID   command = 9
)

// modeEscape switches the printer from whatever mode it's in into 1284.4
// packet mode.
var modeEscape = []byte("\x00\x00\x00\x1b\x01@EJL 1284.4\n@EJL\n@EJL\n")

// protocol error codes, the fourth response byte when the first byte is
// 0x7F.
var errorCodes = map[byte]string{
	0x80: "Malformed packet",
	0x81: "No credit",
	0x82: "Reply without command",
	0x83: "Packet too big",
	0x84: "Channel not open",
	0x85: "Unknown result",
	0x86: "Credit overflow",
	0x87: "Bad command/reply",
}

const controlChannelPSID = 0x00

// creditWaitInterval is the pause between CreditRequest polls while a
// channel write is blocked on tx credit.
var creditWaitInterval = 100 * time.Millisecond

func sleepCreditWait() { time.Sleep(creditWaitInterval) }

// Engine owns the transport and the psid -> Channel table. Construction
// performs the mode-escape handshake and the Init command exactly once.
type Engine struct {
	transport transport.Transport
	channels  map[byte]*Channel
}

// New performs mode-escape negotiation and the Init handshake over t, and
// returns a ready Engine with the control channel (psid 0) installed.
func New(t transport.Transport) (*Engine, error) {
	e := &Engine{
		transport: t,
		channels:  map[byte]*Channel{},
	}
	control := newChannel(e, controlChannelPSID)
	control.psid = controlChannelPSID
	control.txCredits = 1
	control.open = true
	e.channels[controlChannelPSID] = control

	if err := t.Drain(); err != nil {
		return nil, err
	}

	if err := t.Write(modeEscape); err != nil {
		return nil, err
	}
	discard := make([]byte, 8)
	if err := t.Read(discard); err != nil {
		return nil, err
	}

	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) controlChannel() *Channel { return e.channels[controlChannelPSID] }

// command sends opcode+payload as a channel-0 packet and returns the
// response payload with the 2-byte opcode/status prefix stripped.
func (e *Engine) command(op command, payload []byte) ([]byte, error) {
	control := e.controlChannel()
	if op != cmdInit && op != cmdExit && control.txCredits < 1 {
		return nil, errkind.ProtocolErr("no tx credit on control channel", nil)
	}

	req := make([]byte, 0, len(payload)+1)
	req = append(req, byte(op))
	req = append(req, payload...)

	log.WithField("op", op).Debug("command")

	packet := Packet{PSID: controlChannelPSID, SSID: controlChannelPSID, Credit: 1, Control: 0, Payload: req}
	if err := e.writePacket(control, packet); err != nil {
		return nil, err
	}

	res, err := e.readPacket(control)
	if err != nil {
		return nil, err
	}
	if res.PSID != controlChannelPSID {
		return nil, errkind.ProtocolErr("control channel reply carried wrong psid", nil)
	}
	if len(res.Payload) < 2 {
		return nil, errkind.ProtocolErr("control channel reply too short", nil)
	}

	if res.Payload[0] == 0x7F {
		code := byte(0)
		if len(res.Payload) > 3 {
			code = res.Payload[3]
		}
		msg, ok := errorCodes[code]
		if !ok {
			msg = "unknown error code"
		}
		log.WithField("code", code).Error(msg)
	}

	if res.Payload[0] != byte(op)|0x80 {
		return nil, errkind.ProtocolErr("reply opcode mismatch", nil)
	}
	if res.Payload[1] != 0 {
		return nil, errkind.ProtocolErr("reply status byte non-zero", nil)
	}
	return res.Payload[2:], nil
}

func (e *Engine) init() error {
	resp, err := e.command(cmdInit, []byte{0x10})
	if err != nil {
		return err
	}
	if len(resp) != 1 || resp[0] != 0x10 {
		return errkind.ProtocolErr("Init handshake reply mismatch", nil)
	}
	return nil
}

// Exit sends the Exit command. A transport that's already broken may
// skip this best-effort call.
func (e *Engine) Exit() error {
	_, err := e.command(cmdExit, nil)
	return err
}

// getSocketID resolves name to a socket id via GetSocketID.
func (e *Engine) getSocketID(name string) (byte, error) {
	resp, err := e.command(cmdGetSocketID, []byte(name))
	if err != nil {
		return 0, err
	}
	if len(resp) < 1 {
		return 0, errkind.ProtocolErr("GetSocketID reply empty", nil)
	}
	return resp[0], nil
}

// Channel resolves name to a socket id and returns an unopened Channel for
// it.
func (e *Engine) Channel(name string) (*Channel, error) {
	ssid, err := e.getSocketID(name)
	if err != nil {
		return nil, err
	}
	return newChannel(e, ssid), nil
}

// openChannel issues OpenChannel for c. psid assignment is treated as
// server-driven: the client always requests psid = ssid and stores
// whatever the response actually carries.
func (e *Engine) openChannel(c *Channel) error {
	req := make([]byte, 10)
	req[0] = c.ssid // psid = ssid, server may reassign
	req[1] = c.ssid
	binary.BigEndian.PutUint16(req[2:4], 0xFFFF)
	binary.BigEndian.PutUint16(req[4:6], 0xFFFF)
	binary.BigEndian.PutUint16(req[6:8], 0x0000)
	binary.BigEndian.PutUint16(req[8:10], 0x0000)

	resp, err := e.command(cmdOpenChannel, req)
	if err != nil {
		return err
	}
	if len(resp) != 8 {
		return errkind.ProtocolErr("OpenChannel reply malformed", nil)
	}
	psid := resp[0]
	ssid := resp[1]
	mtu := binary.BigEndian.Uint16(resp[2:4])
	credit := binary.BigEndian.Uint16(resp[6:8])

	if ssid != c.ssid {
		return errkind.ProtocolErr("OpenChannel reply ssid mismatch", nil)
	}

	c.psid = psid
	c.mtu = mtu
	c.txCredits = int(credit)
	e.channels[psid] = c
	return nil
}

// closeChannel issues CloseChannel for c and removes it from the table.
// Inbound packets that race with the close are logged and dropped by
// readNextPacket rather than validated against channel state.
func (e *Engine) closeChannel(c *Channel) error {
	req := []byte{c.psid, c.ssid}
	if _, err := e.command(cmdCloseChannel, req); err != nil {
		return err
	}
	delete(e.channels, c.psid)
	return nil
}

// credit issues the Credit command, advertising amount additional
// receive credits to the peer.
func (e *Engine) credit(c *Channel, amount uint16) error {
	req := make([]byte, 4)
	req[0] = c.psid
	req[1] = c.ssid
	binary.BigEndian.PutUint16(req[2:4], amount)
	_, err := e.command(cmdCredit, req)
	return err
}

// creditRequest issues CreditRequest and applies the grant to c's tx
// credits, returning the amount granted.
func (e *Engine) creditRequest(c *Channel, amount uint16) (int, error) {
	req := make([]byte, 4)
	req[0] = c.psid
	req[1] = c.ssid
	binary.BigEndian.PutUint16(req[2:4], amount)

	resp, err := e.command(cmdCreditRequest, req)
	if err != nil {
		return 0, err
	}
	if len(resp) != 4 {
		return 0, errkind.ProtocolErr("CreditRequest reply malformed", nil)
	}
	granted := binary.BigEndian.Uint16(resp[2:4])
	c.txCredits += int(granted)
	return int(granted), nil
}

// writePacket encodes and writes packet, decrementing the sending
// channel's tx credits by one.
func (e *Engine) writePacket(c *Channel, packet Packet) error {
	wire, err := packet.Encode()
	if err != nil {
		return err
	}
	log.WithField("bytes", len(wire)).Debug("write packet")
	if err := e.transport.Write(wire); err != nil {
		return err
	}
	c.txCredits--
	return nil
}

// readNextPacket reads one frame off the transport and demultiplexes it
// into the owning channel's queue. An unknown psid is logged and
// discarded.
func (e *Engine) readNextPacket() error {
	header := make([]byte, headerLen)
	if err := e.transport.Read(header); err != nil {
		return err
	}
	packet, payloadLen, err := DecodeHeader(header)
	if err != nil {
		return err
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if err := e.transport.Read(payload); err != nil {
			return err
		}
	}
	packet.Payload = payload

	c, ok := e.channels[packet.PSID]
	if !ok {
		log.WithField("psid", packet.PSID).Warn("received packet for closed socket id")
		return nil
	}
	c.enqueue(packet)
	return nil
}

// readPacket drives readNextPacket until c's queue is non-empty, then
// pops the head.
func (e *Engine) readPacket(c *Channel) (Packet, error) {
	for {
		if p, ok := c.popQueued(); ok {
			return p, nil
		}
		if err := e.readNextPacket(); err != nil {
			return Packet{}, err
		}
	}
}
