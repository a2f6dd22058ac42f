package printer

import (
	"testing"

	"github.com/CiRIP/ez-reset/devices"
)

// scriptedBackend is a control.Backend test double that records every
// command it was sent and replies from a queue of canned responses.
type scriptedBackend struct {
	id      string
	sent    [][]byte
	replies [][]byte
}

func (b *scriptedBackend) Send(command []byte) ([]byte, error) {
	b.sent = append(b.sent, append([]byte(nil), command...))
	if len(b.replies) == 0 {
		return nil, nil
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return reply, nil
}

func (b *scriptedBackend) Identify() (string, error) { return b.id, nil }
func (b *scriptedBackend) Close() error               { return nil }

func testDevice() devices.Device {
	return devices.Device{
		Model: []byte{0x00, 0x00, 0x0b},
		Key:   []byte{0x53, 0x53},
		Counters: []devices.Counter{
			{Addresses: []uint16{0x1a, 0x1b}, Max: 46080},
		},
		Reset: map[uint16]byte{0x10: 0x00, 0x11: 0x00},
	}
}

// TestActionCodeLaw checks the action/complement/rotated-action triplet
// a factory command's action byte is encoded as.
func TestActionCodeLaw(t *testing.T) {
	cases := []struct {
		action byte
		third  byte
	}{
		{0x41, 0xA0},
		{0x42, 0x21},
	}
	for _, c := range cases {
		code := actionCode(c.action)
		if code[0] != c.action {
			t.Errorf("actionCode(%#x)[0] = %#x, want %#x", c.action, code[0], c.action)
		}
		if code[1] != c.action^0xFF {
			t.Errorf("actionCode(%#x)[1] = %#x, want %#x", c.action, code[1], c.action^0xFF)
		}
		if code[2] != c.third {
			t.Errorf("actionCode(%#x)[2] = %#x, want %#x", c.action, code[2], c.third)
		}
	}
}

// TestReadEEPROM checks that a reply with hex "7F" at offset 16 decodes
// to 127.
func TestReadEEPROM(t *testing.T) {
	// eepromPrefix is 9 bytes; the hex field starts at absolute offset 16,
	// so exactly 7 filler bytes sit between the prefix and the hex field.
	reply := append([]byte("@BDC PS\r\n"), []byte("0000000")...)
	reply = append(reply, []byte("7F")...)
	backend := &scriptedBackend{id: "MFG:Epson;MDL:XP-900;", replies: [][]byte{reply}}

	p := New(backend, testDevice())
	v, err := p.ReadEEPROM(0x10)
	if err != nil {
		t.Fatalf("ReadEEPROM: %v", err)
	}
	if v != 127 {
		t.Fatalf("ReadEEPROM() = %d, want 127", v)
	}
}

// TestResetWasteSequence checks two factory commands with action 0x42
// and little-endian address payloads, each trailed by the device key.
func TestResetWasteSequence(t *testing.T) {
	backend := &scriptedBackend{
		id:      "MFG:Epson;MDL:XP-900;",
		replies: [][]byte{{}, {}},
	}
	p := New(backend, testDevice())

	if err := p.ResetWaste(); err != nil {
		t.Fatalf("ResetWaste: %v", err)
	}
	if len(backend.sent) != 2 {
		t.Fatalf("len(sent) = %d, want 2", len(backend.sent))
	}

	want := map[string]bool{
		string(factoryWriteCommand(testDevice(), 0x10, 0x00)): true,
		string(factoryWriteCommand(testDevice(), 0x11, 0x00)): true,
	}
	for _, cmd := range backend.sent {
		if !want[string(cmd)] {
			t.Errorf("unexpected command %x", cmd)
		}
	}
}

// TestResetWasteIdempotence checks that running ResetWaste twice sends
// every reset write both times, with no memoized skip.
func TestResetWasteIdempotence(t *testing.T) {
	backend := &scriptedBackend{
		id:      "MFG:Epson;MDL:XP-900;",
		replies: [][]byte{{}, {}, {}, {}},
	}
	p := New(backend, testDevice())

	if err := p.ResetWaste(); err != nil {
		t.Fatalf("ResetWaste (1st): %v", err)
	}
	if err := p.ResetWaste(); err != nil {
		t.Fatalf("ResetWaste (2nd): %v", err)
	}
	if len(backend.sent) != 2*len(testDevice().Reset) {
		t.Fatalf("len(sent) = %d, want %d", len(backend.sent), 2*len(testDevice().Reset))
	}
}

// factoryWriteCommand reconstructs the exact wire bytes WriteEEPROM(addr,
// value) sends, for comparison against what ResetWaste actually sent.
func factoryWriteCommand(d devices.Device, addr uint16, value byte) []byte {
	code := actionCode(0x42)
	payload := append([]byte{}, d.Model...)
	payload = append(payload, code[:]...)
	payload = append(payload, byte(addr), byte(addr>>8), value)
	payload = append(payload, d.Key...)

	frame := []byte("||")
	frame = append(frame, byte(len(payload)), byte(len(payload)>>8))
	frame = append(frame, payload...)
	return frame
}
