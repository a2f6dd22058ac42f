package d4

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/CiRIP/ez-reset/transport"
)

// queueControlReply appends a complete channel-0 D4 frame carrying payload
// (opcode|0x80, status 0, then whatever trailing bytes the command needs)
// to ft's read queue.
func queueControlReply(ft *transport.Fake, credit byte, payload []byte) {
	frame := make([]byte, headerLen+len(payload))
	frame[0] = controlChannelPSID
	frame[1] = controlChannelPSID
	binary.BigEndian.PutUint16(frame[2:4], uint16(headerLen+len(payload)))
	frame[4] = credit
	frame[5] = 0
	copy(frame[6:], payload)
	ft.QueueRead(frame)
}

func newHandshakingFake(t *testing.T) *transport.Fake {
	t.Helper()
	ft := transport.NewFake("MFG:Epson;MDL:XP-900;DES:Epson XP-900;CMD:ESCPL2;")
	ft.QueueRead([]byte{1, 2, 3, 4, 5, 6, 7, 8}) // mode-escape reply, discarded
	queueControlReply(ft, 1, []byte{0x80, 0x00, 0x10})
	return ft
}

// TestInitHandshake is scenario S1: after construction channel 0 is
// present with non-negative tx credits.
func TestInitHandshake(t *testing.T) {
	ft := newHandshakingFake(t)
	e, err := New(ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	control := e.controlChannel()
	if control == nil {
		t.Fatal("expected control channel to be present")
	}
	if control.txCredits < 0 {
		t.Fatalf("tx credits went negative: %d", control.txCredits)
	}
}

// TestOpenAndCloseChannel is scenario S2: channel("EPSON-CTRL") issues
// GetSocketID then OpenChannel; Close issues CloseChannel and the channel
// table returns to its pre-open state.
func TestOpenAndCloseChannel(t *testing.T) {
	ft := newHandshakingFake(t)
	e, err := New(ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const ssid = 0x05
	queueControlReply(ft, 1, []byte{0x89, 0x00, ssid}) // GetSocketID reply

	openResp := make([]byte, 8)
	openResp[0] = 0x07 // server-assigned psid
	openResp[1] = ssid
	binary.BigEndian.PutUint16(openResp[2:4], 64) // mtu
	binary.BigEndian.PutUint16(openResp[4:6], 0)  // max credit (unused)
	binary.BigEndian.PutUint16(openResp[6:8], 2)  // initial tx credit
	queueControlReply(ft, 1, append([]byte{0x81, 0x00}, openResp...))

	queueControlReply(ft, 1, []byte{0x83, 0x00}) // Credit reply (no payload)

	ch, err := e.Channel("EPSON-CTRL")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if err := ch.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ch.PSID() != 0x07 {
		t.Fatalf("psid = %d, want 7", ch.PSID())
	}
	if _, ok := e.channels[0x07]; !ok {
		t.Fatal("opened channel missing from engine table")
	}

	queueControlReply(ft, 1, []byte{0x82, 0x00}) // CloseChannel reply
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := e.channels[0x07]; ok {
		t.Fatal("closed channel still present in engine table")
	}
}

// TestCreditExhaustionBlocksOnCreditRequest is scenario S3: with
// tx_credits = 0, a channel write blocks on CreditRequest until the
// scripted transport grants credit, after which the write completes.
func TestCreditExhaustionBlocksOnCreditRequest(t *testing.T) {
	orig := creditWaitInterval
	creditWaitInterval = time.Millisecond
	defer func() { creditWaitInterval = orig }()

	ft := newHandshakingFake(t)
	e, err := New(ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const ssid = 0x05
	queueControlReply(ft, 1, []byte{0x89, 0x00, ssid})
	openResp := make([]byte, 8)
	openResp[0] = ssid
	openResp[1] = ssid
	binary.BigEndian.PutUint16(openResp[2:4], 64)
	binary.BigEndian.PutUint16(openResp[4:6], 0)
	binary.BigEndian.PutUint16(openResp[6:8], 0) // zero initial tx credits
	queueControlReply(ft, 1, append([]byte{0x81, 0x00}, openResp...))
	queueControlReply(ft, 1, []byte{0x83, 0x00}) // Credit reply

	ch, err := e.Channel("EPSON-CTRL")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if err := ch.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ch.txCredits != 0 {
		t.Fatalf("expected zero initial tx credits, got %d", ch.txCredits)
	}

	// First CreditRequest grants 0 (still exhausted), second grants 3.
	queueControlReply(ft, 1, append([]byte{0x84, 0x00}, []byte{ssid, ssid, 0, 0}...))
	queueControlReply(ft, 1, append([]byte{0x84, 0x00}, []byte{ssid, ssid, 0, 3}...))

	if err := ch.Write([]byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ch.txCredits != 2 {
		t.Fatalf("tx credits after write = %d, want 2 (granted 3 - 1 sent)", ch.txCredits)
	}
}
