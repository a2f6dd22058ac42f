package transport

import (
	"syscall"

	"github.com/CiRIP/ez-reset/errkind"
)

// ErrClosed is returned by Read/Write once Close has been called, by
// Drain of a closed USBLPTransport or SerialTransport, and by
// USBLPTransport.Identify once closed; Fake.Read also returns it when its
// scripted replies run out. Mirrors goserial's sentinel of the same name.
var ErrClosed = errkind.TransportErr("port already closed", syscall.EBADF)
