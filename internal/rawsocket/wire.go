package rawsocket

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"golang.org/x/net/bpf"

	"grimm.is/dhcp4c/internal/dhcp4"
)

func xidToTransactionID(x uint32) dhcpv4.TransactionID {
	var t dhcpv4.TransactionID
	binary.BigEndian.PutUint32(t[:], x)
	return t
}

func transactionIDToXid(t dhcpv4.TransactionID) uint32 {
	return binary.BigEndian.Uint32(t[:])
}

func intsToOptionCodes(codes []int) []dhcpv4.OptionCode {
	out := make([]dhcpv4.OptionCode, len(codes))
	for i, c := range codes {
		out[i] = dhcpv4.GenericOptionCode(c)
	}
	return out
}

// toWireMessage builds the dhcpv4.DHCPv4 the core's abstract
// SentDHCPMessage describes. This is the one place in the client that
// constructs a real DHCP packet, per the dhcp4.Socket contract.
func toWireMessage(msg *dhcp4.SentDHCPMessage, hwaddr net.HardwareAddr) (*dhcpv4.DHCPv4, error) {
	var msgType dhcpv4.MessageType
	switch msg.Type {
	case dhcp4.MessageTypeDiscover:
		msgType = dhcpv4.MessageTypeDiscover
	case dhcp4.MessageTypeRequest:
		msgType = dhcpv4.MessageTypeRequest
	case dhcp4.MessageTypeRelease:
		msgType = dhcpv4.MessageTypeRelease
	default:
		return nil, fmt.Errorf("rawsocket: unsupported outbound message type %s", msg.Type)
	}

	opts := []dhcpv4.Modifier{
		dhcpv4.WithTransactionID(xidToTransactionID(msg.Xid)),
		dhcpv4.WithHwAddr(hwaddr),
		dhcpv4.WithMessageType(msgType),
	}
	if len(msg.ParameterList) > 0 {
		opts = append(opts, dhcpv4.WithOption(dhcpv4.OptParameterRequestList(intsToOptionCodes(msg.ParameterList)...)))
	}
	if msg.Broadcast {
		opts = append(opts, dhcpv4.WithBroadcast(true))
	}
	if msg.RequestedIP != nil {
		opts = append(opts, dhcpv4.WithOption(dhcpv4.OptRequestedIPAddress(msg.RequestedIP)))
	}
	if msg.ServerID != nil {
		opts = append(opts, dhcpv4.WithOption(dhcpv4.OptServerIdentifier(msg.ServerID)))
	}

	pkt, err := dhcpv4.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("rawsocket: building %s: %w", msg.Type, err)
	}
	pkt.NumSeconds = msg.Secs
	if msg.ClientIP != nil {
		pkt.ClientIPAddr = msg.ClientIP
	}
	return pkt, nil
}

// parseBootpFrame extracts a DHCP message from a raw Ethernet frame,
// discarding anything that isn't an IPv4/UDP/bootpc BOOTREPLY. Unlike a
// packet sniffer that only needs the payload, this adapter also keeps
// the Ethernet source (the server's MAC) to populate
// ReceivedDHCPMessage.EthSrc.
func parseBootpFrame(frame []byte) (*dhcp4.ReceivedDHCPMessage, error) {
	const minFrame = 14 + 20 + 8
	if len(frame) < minFrame {
		return nil, fmt.Errorf("rawsocket: frame too short")
	}

	ethSrc := net.HardwareAddr(append([]byte(nil), frame[6:12]...))
	if binary.BigEndian.Uint16(frame[12:14]) != ethTypeIPv4 {
		return nil, fmt.Errorf("rawsocket: not ipv4")
	}

	ipOffset := 14
	ihl := int(frame[ipOffset]&0x0F) * 4
	if ihl < 20 || len(frame) < ipOffset+ihl+8 {
		return nil, fmt.Errorf("rawsocket: malformed ip header")
	}
	if frame[ipOffset+9] != udpProtocol {
		return nil, fmt.Errorf("rawsocket: not udp")
	}

	udpOffset := ipOffset + ihl
	if binary.BigEndian.Uint16(frame[udpOffset+2:udpOffset+4]) != dhcpClientPort {
		return nil, fmt.Errorf("rawsocket: not addressed to bootpc")
	}

	payloadOffset := udpOffset + 8
	if payloadOffset >= len(frame) {
		return nil, fmt.Errorf("rawsocket: no dhcp payload")
	}

	pkt, err := dhcpv4.FromBytes(frame[payloadOffset:])
	if err != nil {
		return nil, fmt.Errorf("rawsocket: parsing dhcp payload: %w", err)
	}
	if pkt.OpCode != dhcpv4.OpcodeBootReply {
		return nil, fmt.Errorf("rawsocket: not a boot reply")
	}

	return toReceivedMessage(pkt, ethSrc), nil
}

func toReceivedMessage(pkt *dhcpv4.DHCPv4, ethSrc net.HardwareAddr) *dhcp4.ReceivedDHCPMessage {
	msg := &dhcp4.ReceivedDHCPMessage{
		Xid:        transactionIDToXid(pkt.TransactionID),
		YourIPAddr: pkt.YourIPAddr,
		EthSrc:     ethSrc,
		Options:    make(map[int][]byte),
	}

	if t := pkt.Options.Get(dhcpv4.OptionDHCPMessageType); len(t) == 1 {
		switch dhcpv4.MessageType(t[0]) {
		case dhcpv4.MessageTypeOffer:
			msg.Type = dhcp4.MessageTypeOffer
		case dhcpv4.MessageTypeAck:
			msg.Type = dhcp4.MessageTypeAck
		case dhcpv4.MessageTypeNak:
			msg.Type = dhcp4.MessageTypeNak
		}
	}

	type optCopy struct {
		code dhcpv4.OptionCode
		set  func([]byte)
	}
	for _, oc := range []optCopy{
		{dhcpv4.OptionServerIdentifier, func(v []byte) {
			if len(v) == 4 {
				msg.ServerID = net.IP(v)
			}
		}},
		{dhcpv4.OptionSubnetMask, func(v []byte) {
			if len(v) == 4 {
				msg.SubnetMask = net.IPMask(v)
			}
		}},
		{dhcpv4.OptionRouter, func(v []byte) {
			for i := 0; i+4 <= len(v); i += 4 {
				msg.Router = append(msg.Router, net.IP(v[i:i+4]))
			}
		}},
		{dhcpv4.OptionDomainNameServer, func(v []byte) {
			for i := 0; i+4 <= len(v); i += 4 {
				msg.DNS = append(msg.DNS, net.IP(v[i:i+4]))
			}
		}},
		{dhcpv4.OptionDomainName, func(v []byte) {
			if len(v) > 0 {
				msg.DomainName = string(v)
			}
		}},
		{dhcpv4.OptionIPAddressLeaseTime, func(v []byte) {
			if len(v) == 4 {
				msg.LeaseTime = dhcp4.Seconds(binary.BigEndian.Uint32(v))
			}
		}},
		{dhcpv4.OptionRenewTimeValue, func(v []byte) {
			if len(v) == 4 {
				msg.RenewalTime = dhcp4.Seconds(binary.BigEndian.Uint32(v))
			}
		}},
		{dhcpv4.OptionRebindingTimeValue, func(v []byte) {
			if len(v) == 4 {
				msg.RebindTime = dhcp4.Seconds(binary.BigEndian.Uint32(v))
			}
		}},
	} {
		if v := pkt.Options.Get(oc.code); v != nil {
			oc.set(v)
			msg.Options[oc.code.Code()] = v
		}
	}

	return msg
}

// encapsulate wraps a DHCP packet in an Ethernet/IPv4/UDP frame. Raw
// AF_PACKET sockets bypass the kernel's own IP stack entirely, so every
// header below IP, including checksums, has to be built by hand.
func encapsulate(pkt *dhcpv4.DHCPv4, srcMAC net.HardwareAddr, msg *dhcp4.SentDHCPMessage) ([]byte, net.HardwareAddr, error) {
	payload := pkt.ToBytes()

	dstMAC := broadcastMAC
	dstIP := net.IPv4bcast
	if !msg.Broadcast && msg.ServerHW != nil {
		dstMAC = msg.ServerHW
		dstIP = msg.ServerID
	}

	srcIP := net.IPv4zero
	if msg.ClientIP != nil {
		srcIP = msg.ClientIP
	}

	udpHeader := udpHeaderBytes(srcIP, dstIP, dhcpClientPort, dhcpServerPort, payload)
	ipHeader := ipv4HeaderBytes(srcIP, dstIP, len(udpHeader)+len(payload))
	eth := ethernetHeaderBytes(srcMAC, dstMAC, ethTypeIPv4)

	frame := make([]byte, 0, len(eth)+len(ipHeader)+len(udpHeader)+len(payload))
	frame = append(frame, eth...)
	frame = append(frame, ipHeader...)
	frame = append(frame, udpHeader...)
	frame = append(frame, payload...)
	return frame, dstMAC, nil
}

func ethernetHeaderBytes(src, dst net.HardwareAddr, ethType uint16) []byte {
	h := make([]byte, 14)
	copy(h[0:6], dst)
	copy(h[6:12], src)
	binary.BigEndian.PutUint16(h[12:14], ethType)
	return h
}

func ipv4HeaderBytes(src, dst net.IP, payloadLen int) []byte {
	h := make([]byte, 20)
	h[0] = 0x45 // version 4, IHL 5 (no options)
	h[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(h[2:4], uint16(20+payloadLen))
	binary.BigEndian.PutUint16(h[4:6], 0) // identification
	binary.BigEndian.PutUint16(h[6:8], 0) // flags/fragment offset
	h[8] = 64                             // TTL
	h[9] = udpProtocol
	binary.BigEndian.PutUint16(h[10:12], 0) // checksum, filled below
	copy(h[12:16], src.To4())
	copy(h[16:20], dst.To4())
	binary.BigEndian.PutUint16(h[10:12], internetChecksum(h))
	return h
}

func udpHeaderBytes(src, dst net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	h := make([]byte, 8)
	binary.BigEndian.PutUint16(h[0:2], srcPort)
	binary.BigEndian.PutUint16(h[2:4], dstPort)
	binary.BigEndian.PutUint16(h[4:6], uint16(8+len(payload)))
	binary.BigEndian.PutUint16(h[6:8], 0) // checksum; 0 is a valid "unused" value for IPv4 UDP

	pseudo := make([]byte, 12+len(h)+len(payload))
	copy(pseudo[0:4], src.To4())
	copy(pseudo[4:8], dst.To4())
	pseudo[9] = udpProtocol
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(8+len(payload)))
	copy(pseudo[12:], h)
	copy(pseudo[12+len(h):], payload)

	sum := internetChecksum(pseudo)
	if sum == 0 {
		sum = 0xffff
	}
	binary.BigEndian.PutUint16(h[6:8], sum)
	return h
}

func internetChecksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// bootpBPFFilter assembles a classic BPF program accepting only UDP
// datagrams destined for port 68 (bootpc), so the kernel drops everything
// else before it reaches this process. It is a best-effort optimization
// layered on top of the authoritative userspace filtering in
// parseBootpFrame: if SetBPF fails (older kernel, permission), the
// adapter still behaves correctly, just less efficiently.
func bootpBPFFilter() ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble([]bpf.Instruction{
		// Load EtherType; reject anything but IPv4.
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ethTypeIPv4, SkipFalse: 6},
		// Load IP protocol; reject anything but UDP.
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: udpProtocol, SkipFalse: 4},
		// IHL is the low nibble of byte 14, in 32-bit words; index into
		// the UDP header at 14+IHL*4.
		bpf.LoadMemShift{Off: 14},
		bpf.LoadIndirect{Off: 14 + 2, Size: 2}, // dst port, 2 bytes after UDP header start
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: dhcpClientPort, SkipFalse: 1},
		bpf.RetConstant{Val: 1500},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}
