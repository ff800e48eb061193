package dhcp4

import (
	"context"
	"net"
)

// MessageType mirrors the DHCP message type option (option 53) values the
// core cares about. The socket adapter is responsible for translating to
// and from the wire encoding (github.com/insomniacslk/dhcp/dhcpv4's
// MessageType in the reference adapter).
type MessageType uint8

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeDiscover
	MessageTypeOffer
	MessageTypeRequest
	MessageTypeDecline
	MessageTypeAck
	MessageTypeNak
	MessageTypeRelease
	MessageTypeInform
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeDiscover:
		return "DISCOVER"
	case MessageTypeOffer:
		return "OFFER"
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeDecline:
		return "DECLINE"
	case MessageTypeAck:
		return "ACK"
	case MessageTypeNak:
		return "NAK"
	case MessageTypeRelease:
		return "RELEASE"
	case MessageTypeInform:
		return "INFORM"
	default:
		return "UNKNOWN"
	}
}

// ReceivedDHCPMessage is what the socket adapter hands the receiver loop
// for every frame it decodes off the wire.
type ReceivedDHCPMessage struct {
	Type         MessageType
	Xid          uint32
	Options      map[int][]byte
	YourIPAddr   net.IP
	ServerID     net.IP
	EthSrc       net.HardwareAddr
	SubnetMask   net.IPMask
	Router       []net.IP
	DNS          []net.IP
	DomainName   string
	LeaseTime    Seconds
	RenewalTime  Seconds
	RebindTime   Seconds
}

// Seconds is an option duration expressed in whole seconds, as DHCP options
// 51/58/59 encode them on the wire.
type Seconds uint32

// SentDHCPMessage is what the sender loop hands the socket adapter to
// encode and transmit. Broadcast selects link-layer broadcast (SELECTING,
// REBINDING, REBOOTING) vs. unicast to ServerID/ServerHW (RENEWING, and
// RELEASE).
type SentDHCPMessage struct {
	Type      MessageType
	Xid       uint32
	Secs      uint16
	Broadcast bool
	ClientIP  net.IP // ciaddr; set for RENEWING requests and for RELEASE
	ServerID  net.IP
	ServerHW  net.HardwareAddr
	RequestedIP net.IP
	ParameterList []int
}

// Socket is the raw DHCP transport the core consumes, per spec section 6.
// It owns both wire transport and DHCP message construction: the core
// never builds a dhcpv4.DHCPv4 (or equivalent) itself, only the abstract
// Sent/ReceivedDHCPMessage types above.
type Socket interface {
	Open(ctx context.Context, iface string) error
	Close() error

	// Get blocks until a frame is available, ctx is cancelled, or the
	// socket errors (including ENETDOWN, surfaced as *NetDownError).
	Get(ctx context.Context) (*ReceivedDHCPMessage, error)
	// Put encodes and transmits msg. May fail with *NetDownError.
	Put(ctx context.Context, msg *SentDHCPMessage) error

	// Message builders. parameterList is the set of option codes for the
	// parameter request list (option 55).
	Discover(parameterList []int) *SentDHCPMessage
	RequestForOffer(parameterList []int, offer *ReceivedDHCPMessage) *SentDHCPMessage
	RequestForLease(parameterList []int, lease *Lease, state State) *SentDHCPMessage
	Release(lease *Lease) *SentDHCPMessage
}

// NetDownError wraps ENETDOWN: the affected loop terminates cleanly on
// this error without treating it as a protocol-level failure.
type NetDownError struct {
	Err error
}

func (e *NetDownError) Error() string { return "dhcp4: network is down: " + e.Err.Error() }
func (e *NetDownError) Unwrap() error { return e.Err }
