// Package printer implements the command layer built on top of a
// control.Backend: factory commands with their integrity-coded action
// bytes, EEPROM read/write, waste-ink counters, and status retrieval.
// Grounded on original_source/ez_reset/printer.py's Printer class.
package printer

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/CiRIP/ez-reset/control"
	"github.com/CiRIP/ez-reset/devices"
	"github.com/CiRIP/ez-reset/errkind"
	"github.com/CiRIP/ez-reset/status"
)

var statusPrefix = []byte("@BDC ST2\r\n")
var eepromPrefix = []byte("@BDC PS\r\n")

// Printer is the high-level facade a CLI or GUI drives: one
// control.Backend and the device profile resolved for whatever model is
// attached to it.
type Printer struct {
	backend control.Backend
	device  devices.Device
}

// New returns a Printer that issues commands over backend using device's
// EEPROM layout and factory-command identity.
func New(backend control.Backend, device devices.Device) *Printer {
	return &Printer{backend: backend, device: device}
}

// SendCommand frames command with its little-endian length-prefixed
// payload and sends it through the control backend. Grounded on
// printer.py's send_command.
func (p *Printer) SendCommand(command []byte, payload []byte) ([]byte, error) {
	frame := make([]byte, 0, len(command)+2+len(payload))
	frame = append(frame, command...)
	length := make([]byte, 2)
	binary.LittleEndian.PutUint16(length, uint16(len(payload)))
	frame = append(frame, length...)
	frame = append(frame, payload...)
	return p.backend.Send(frame)
}

// actionCode builds the three-byte integrity triplet a factory command's
// action byte is wrapped in: the action, its bitwise complement, and the
// action rotated right by one bit within a byte.
func actionCode(action byte) [3]byte {
	return [3]byte{
		action,
		action ^ 0xFF,
		((action >> 1) & 0x7F) | ((action << 7) & 0x80),
	}
}

// SendFactoryCommand issues the "||" vendor command: the device's
// factory model bytes, the action-code triplet for action, then
// whatever extra payload the operation needs.
func (p *Printer) SendFactoryCommand(action byte, payload []byte) ([]byte, error) {
	code := actionCode(action)
	body := make([]byte, 0, len(p.device.Model)+3+len(payload))
	body = append(body, p.device.Model...)
	body = append(body, code[:]...)
	body = append(body, payload...)
	return p.SendCommand([]byte("||"), body)
}

// GetStatus sends the "st" command and decodes the TLV status payload
// that follows the "@BDC ST2\r\n" prefix.
func (p *Printer) GetStatus() (status.Status, error) {
	response, err := p.SendCommand([]byte("st"), []byte{0x01})
	if err != nil {
		return status.Status{}, err
	}
	if !bytes.HasPrefix(response, statusPrefix) {
		return status.Status{}, errkind.FormatErr("unexpected status response prefix", nil)
	}
	return status.Decode(response[len(statusPrefix):])
}

// GetSerial returns the printer's serial number, a thin wrapper over
// GetStatus present in printer.py (get_serial).
func (p *Printer) GetSerial() (string, error) {
	s, err := p.GetStatus()
	if err != nil {
		return "", err
	}
	return s.Serial, nil
}

// ReadEEPROM reads one byte at addr via factory action 0x41. The reply's
// ASCII-hex nibbles at byte offset 16 (two bytes wide) carry the value.
func (p *Printer) ReadEEPROM(addr uint16) (byte, error) {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, addr)
	response, err := p.SendFactoryCommand(0x41, payload)
	if err != nil {
		return 0, err
	}
	if !bytes.HasPrefix(response, eepromPrefix) {
		return 0, errkind.FormatErr("unexpected EEPROM response prefix", nil)
	}
	if len(response) < 18 {
		return 0, errkind.FormatErr("EEPROM response shorter than its hex field", nil)
	}
	v, err := hexByte(response[16:18])
	if err != nil {
		return 0, errkind.FormatErr("EEPROM value is not ASCII hex", err)
	}
	return v, nil
}

// ReadEEPROMRange reads size consecutive EEPROM bytes starting at addr
// in a single factory action 0x51 call, decoding size*2 ASCII-hex
// nibbles starting at byte offset 16.
func (p *Printer) ReadEEPROMRange(addr uint16, size byte) ([]byte, error) {
	payload := make([]byte, 3)
	binary.LittleEndian.PutUint16(payload[0:2], addr)
	payload[2] = size
	response, err := p.SendFactoryCommand(0x51, payload)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(response, eepromPrefix) {
		return nil, errkind.FormatErr("unexpected EEPROM response prefix", nil)
	}
	want := int(size) * 2
	if len(response) < 16+want {
		return nil, errkind.FormatErr("EEPROM range response shorter than its hex field", nil)
	}
	out, err := hex.DecodeString(string(response[16 : 16+want]))
	if err != nil {
		return nil, errkind.FormatErr("EEPROM range value is not ASCII hex", err)
	}
	return out, nil
}

// ReadEEPROMMultiple reads each of addresses with ReadEEPROM and
// concatenates the results in order.
func (p *Printer) ReadEEPROMMultiple(addresses []uint16) ([]byte, error) {
	out := make([]byte, 0, len(addresses))
	for _, addr := range addresses {
		v, err := p.ReadEEPROM(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// WriteEEPROM writes value at addr via factory action 0x42, authenticated
// by the device's keyword bytes.
func (p *Printer) WriteEEPROM(addr uint16, value byte) error {
	payload := make([]byte, 0, 3+len(p.device.Key))
	addrBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(addrBytes, addr)
	payload = append(payload, addrBytes...)
	payload = append(payload, value)
	payload = append(payload, p.device.Key...)
	_, err := p.SendFactoryCommand(0x42, payload)
	return err
}

// GetWaste reads every counter's addresses and interprets them as a
// little-endian unsigned integer, paired with the counter's configured
// maximum.
func (p *Printer) GetWaste() ([]Waste, error) {
	out := make([]Waste, 0, len(p.device.Counters))
	for _, counter := range p.device.Counters {
		raw, err := p.ReadEEPROMMultiple(counter.Addresses)
		if err != nil {
			return nil, err
		}
		out = append(out, Waste{Value: littleEndianUint(raw), Max: counter.Max})
	}
	return out, nil
}

// Waste is one waste-ink counter's current value paired with its
// maximum before the printer refuses to print.
type Waste struct {
	Value int
	Max   int
}

// ResetWaste writes every (address, value) pair in the device's reset
// map. Order doesn't matter for correctness; a failure partway through is
// propagated and the remaining writes do not execute.
func (p *Printer) ResetWaste() error {
	for addr, value := range p.device.Reset {
		if err := p.WriteEEPROM(addr, value); err != nil {
			return err
		}
	}
	return nil
}

// Clean issues a cleaning cycle at the given level via factory action
// 0x84.
func (p *Printer) Clean(level byte) error {
	_, err := p.SendFactoryCommand(0x84, []byte{level})
	return err
}

// PowerOff issues factory action 0x20.
func (p *Printer) PowerOff() error {
	_, err := p.SendFactoryCommand(0x20, nil)
	return err
}

// Restart issues factory action 0x21.
func (p *Printer) Restart() error {
	_, err := p.SendFactoryCommand(0x21, nil)
	return err
}

// Identify delegates to the control backend and parses the
// semicolon-separated IEEE 1284 ID string into a map.
func (p *Printer) Identify() (map[string]string, error) {
	id, err := p.backend.Identify()
	if err != nil {
		return nil, err
	}
	return control.ParseIdentifier(id), nil
}

func hexByte(b []byte) (byte, error) {
	decoded, err := hex.DecodeString(string(b))
	if err != nil {
		return 0, err
	}
	if len(decoded) != 1 {
		return 0, errkind.FormatErr("hex field did not decode to exactly one byte", nil)
	}
	return decoded[0], nil
}

func littleEndianUint(b []byte) int {
	var v int
	for i, by := range b {
		v |= int(by) << (8 * i)
	}
	return v
}
