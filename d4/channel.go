package d4

import "github.com/CiRIP/ez-reset/errkind"

// Channel owns one logical D4 conversation.
// psid/mtu are zero until OpenChannel completes.
type Channel struct {
	engine *Engine

	ssid byte
	psid byte
	open bool
	mtu  uint16

	txCredits int

	rxCredits    int
	rxCreditsMax int

	rxQueue []Packet
}

const defaultRxCreditsMax = 1

func newChannel(e *Engine, ssid byte) *Channel {
	return &Channel{engine: e, ssid: ssid, rxCreditsMax: defaultRxCreditsMax}
}

// SSID returns the channel's secondary socket id.
func (c *Channel) SSID() byte { return c.ssid }

// PSID returns the channel's primary socket id, valid only once Open has
// completed.
func (c *Channel) PSID() byte { return c.psid }

// MTU returns the negotiated maximum D4 frame size, valid only once Open
// has completed.
func (c *Channel) MTU() uint16 { return c.mtu }

// Open performs OpenChannel and grants this channel's full rxCreditsMax
// credits to the peer so it can reply immediately.
func (c *Channel) Open() error {
	if err := c.engine.openChannel(c); err != nil {
		return err
	}
	if err := c.engine.credit(c, uint16(c.rxCreditsMax)); err != nil {
		return err
	}
	c.rxCredits += c.rxCreditsMax
	c.open = true
	return nil
}

// Close performs CloseChannel and removes the channel from the engine's
// table.
func (c *Channel) Close() error {
	if !c.open {
		return nil
	}
	err := c.engine.closeChannel(c)
	c.open = false
	return err
}

func (c *Channel) ensureCredit() error {
	if c.txCredits >= 1 {
		return nil
	}
	for {
		granted, err := c.engine.creditRequest(c, 0xFFFF)
		if err != nil {
			return err
		}
		if granted >= 1 {
			return nil
		}
		sleepCreditWait()
	}
}

// Write fragments data into mtu-6-byte chunks and sends each as its own
// packet with the end-of-data control bit set on every fragment (the
// protocol profile this engine implements always marks every fragment
// end-of-data). A zero-length write still emits one packet.
func (c *Channel) Write(data []byte) error {
	if c.mtu < headerLen+1 {
		return errkind.ProtocolErr("channel has no usable MTU; open it first", nil)
	}
	fragmentSize := int(c.mtu) - headerLen

	for first := true; first || len(data) > 0; first = false {
		chunk := data
		if len(chunk) > fragmentSize {
			chunk = chunk[:fragmentSize]
		}
		data = data[len(chunk):]

		credit := c.rxCreditsMax - c.rxCredits
		if credit > 0xFF {
			credit = 0xFF
		}
		if credit < 0 {
			credit = 0
		}

		if err := c.ensureCredit(); err != nil {
			return err
		}

		packet := Packet{
			PSID:    c.psid,
			SSID:    c.ssid,
			Credit:  byte(credit),
			Control: ControlEndOfData,
			Payload: chunk,
		}
		if err := c.engine.writePacket(c, packet); err != nil {
			return err
		}
		c.rxCredits += credit
	}
	return nil
}

// Read returns the next queued packet, replenishing advertised credit
// first if the piggybacked amount in writes wouldn't have kept up.
func (c *Channel) Read() (Packet, error) {
	credit := c.rxCreditsMax - c.rxCredits
	if credit > 0xFF {
		if err := c.engine.credit(c, uint16(credit)); err != nil {
			return Packet{}, err
		}
		c.rxCredits += credit
	}
	return c.engine.readPacket(c)
}

func (c *Channel) enqueue(p Packet) {
	c.txCredits += int(p.Credit)
	c.rxCredits--
	c.rxQueue = append(c.rxQueue, p)
}

func (c *Channel) popQueued() (Packet, bool) {
	if len(c.rxQueue) == 0 {
		return Packet{}, false
	}
	p := c.rxQueue[0]
	c.rxQueue = c.rxQueue[1:]
	return p, true
}
