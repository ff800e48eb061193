// Package rawsocket implements dhcp4.Socket over an AF_PACKET raw
// socket, listening for broadcast traffic the way a packet sniffer
// does, except here it both reads and writes complete Ethernet frames
// so the client can speak DHCP before an IP address (and therefore a
// normal UDP socket) exists on the interface.
package rawsocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"

	"grimm.is/dhcp4c/internal/clock"
	"grimm.is/dhcp4c/internal/dhcp4"
	"grimm.is/dhcp4c/internal/logging"
)

const (
	ethTypeIPv4 = 0x0800
	udpProtocol = 17

	dhcpServerPort = 67
	dhcpClientPort = 68

	// readPollInterval bounds how long a single ReadFrom blocks so Get can
	// notice context cancellation and interface-down in bounded time.
	readPollInterval = 1 * time.Second
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

var _ dhcp4.Socket = (*Adapter)(nil)

// Adapter is the production dhcp4.Socket: one AF_PACKET conn per interface.
type Adapter struct {
	clock clock.Clock
	log   *logging.Logger

	conn   *packet.Conn
	iface  *net.Interface
	hwaddr net.HardwareAddr
}

// NewAdapter returns an unopened Adapter. clk defaults to the real clock
// if nil.
func NewAdapter(clk clock.Clock, log *logging.Logger) *Adapter {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if log == nil {
		log = logging.Default()
	}
	return &Adapter{clock: clk, log: log.WithComponent("rawsocket")}
}

// Open binds a raw socket to ifaceName, listening for IPv4 frames.
func (a *Adapter) Open(ctx context.Context, ifaceName string) error {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return fmt.Errorf("rawsocket: interface %s: %w", ifaceName, err)
	}

	conn, err := packet.Listen(ifi, packet.Raw, ethTypeIPv4, nil)
	if err != nil {
		return fmt.Errorf("rawsocket: listen on %s: %w", ifaceName, err)
	}

	if filter, ferr := bootpBPFFilter(); ferr != nil {
		a.log.Warn("failed to assemble kernel BPF filter, filtering in userspace only", "err", ferr)
	} else if serr := conn.SetBPF(filter); serr != nil {
		a.log.Warn("kernel rejected BPF filter, filtering in userspace only", "err", serr)
	}

	a.conn = conn
	a.iface = ifi
	a.hwaddr = ifi.HardwareAddr
	return nil
}

// Close releases the raw socket.
func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// Get blocks until a BOOTREPLY frame destined for the DHCP client port
// arrives, ctx is cancelled, or the link goes down.
func (a *Adapter) Get(ctx context.Context) (*dhcp4.ReceivedDHCPMessage, error) {
	buf := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_ = a.conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, _, err := a.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, unix.ENETDOWN) {
				return nil, &dhcp4.NetDownError{Err: err}
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return nil, err
		}

		msg, perr := parseBootpFrame(buf[:n])
		if perr != nil {
			a.log.Debug("discarding unparseable frame", "err", perr)
			continue
		}
		return msg, nil
	}
}

// Put encodes msg as a DHCP packet and wraps it in an Ethernet/IPv4/UDP
// frame addressed per its Broadcast/ServerHW fields.
func (a *Adapter) Put(ctx context.Context, msg *dhcp4.SentDHCPMessage) error {
	pkt, err := toWireMessage(msg, a.hwaddr)
	if err != nil {
		return err
	}

	frame, dstMAC, err := encapsulate(pkt, a.hwaddr, msg)
	if err != nil {
		return err
	}

	_, err = a.conn.WriteTo(frame, &packet.Addr{HardwareAddr: dstMAC})
	if err != nil {
		if errors.Is(err, unix.ENETDOWN) {
			return &dhcp4.NetDownError{Err: err}
		}
		return fmt.Errorf("rawsocket: write: %w", err)
	}
	return nil
}
