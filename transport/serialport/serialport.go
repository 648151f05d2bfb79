//go:build linux

// Package serialport is a host-side RPC transport over a Linux tty: the
// port is put into raw non-blocking mode so Receive never stalls the
// framer's pump loop. It implements rpc.CommInterface.
package serialport

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"embedcore-go/status"
)

var log = logrus.WithField("mod", "serialport")

var baudFlags = map[uint32]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// Port is an open serial device.
type Port struct {
	fd   int
	path string
}

// Open configures path as a raw 8N1 port at the given baud rate.
func Open(path string, baud uint32) (*Port, error) {
	speed, ok := baudFlags[baud]
	if !ok {
		return nil, status.ArgInvalid
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		log.Warnf("open %s: %v", path, err)
		return nil, status.ErrGeneric
	}

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		_ = unix.Close(fd)
		return nil, status.ErrGeneric
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD | speed
	t.Ispeed = speed
	t.Ospeed = speed
	// Non-blocking reads: return immediately with whatever is buffered.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		_ = unix.Close(fd)
		return nil, status.ErrGeneric
	}
	return &Port{fd: fd, path: path}, nil
}

// Transmit writes data, returning the number of bytes accepted by the tty.
func (p *Port) Transmit(data []byte) uint32 {
	n, err := unix.Write(p.fd, data)
	if err != nil || n < 0 {
		if err != unix.EAGAIN {
			log.Warnf("write %s: %v", p.path, err)
		}
		return 0
	}
	return uint32(n)
}

// Receive fills out with buffered bytes; 0 means nothing available now.
func (p *Port) Receive(out []byte) uint32 {
	n, err := unix.Read(p.fd, out)
	if err != nil || n < 0 {
		if err != unix.EAGAIN {
			log.Warnf("read %s: %v", p.path, err)
		}
		return 0
	}
	return uint32(n)
}

// Close releases the device.
func (p *Port) Close() error {
	if err := unix.Close(p.fd); err != nil {
		return status.ErrGeneric
	}
	return nil
}
