package control

import (
	"github.com/CiRIP/ez-reset/d4"
	"github.com/CiRIP/ez-reset/transport"
)

// controlSocketName is the named D4 socket that carries vendor control
// commands on Epson D4 implementations.
const controlSocketName = "EPSON-CTRL"

// D4Backend is the ControlBackend variant for devices that speak full
// IEEE 1284.4 framing: it opens the engine, resolves and opens the
// EPSON-CTRL channel, and sends/receives over it. Grounded on
// original_source/ez_reset/d4.py's D4ControlBackend.
type D4Backend struct {
	transport transport.Transport
	engine    *d4.Engine
	channel   *d4.Channel
}

// OpenD4Backend performs the D4 handshake over t and opens the
// EPSON-CTRL channel.
func OpenD4Backend(t transport.Transport) (*D4Backend, error) {
	engine, err := d4.New(t)
	if err != nil {
		return nil, err
	}
	ch, err := engine.Channel(controlSocketName)
	if err != nil {
		return nil, err
	}
	if err := ch.Open(); err != nil {
		return nil, err
	}
	return &D4Backend{transport: t, engine: engine, channel: ch}, nil
}

func (b *D4Backend) Send(command []byte) ([]byte, error) {
	if err := b.channel.Write(command); err != nil {
		return nil, err
	}
	res, err := b.channel.Read()
	if err != nil {
		return nil, err
	}
	return res.Payload, nil
}

func (b *D4Backend) Identify() (string, error) {
	return b.transport.Identify()
}

func (b *D4Backend) Close() error {
	return b.channel.Close()
}
