package rawsocket

import "grimm.is/dhcp4c/internal/dhcp4"

// Discover builds a broadcast DISCOVER.
func (a *Adapter) Discover(parameterList []int) *dhcp4.SentDHCPMessage {
	return &dhcp4.SentDHCPMessage{
		Type:          dhcp4.MessageTypeDiscover,
		Broadcast:     true,
		ParameterList: parameterList,
	}
}

// RequestForOffer builds the broadcast REQUEST that follows an OFFER in
// SELECTING: ciaddr unset, requested IP and server identifier carried as
// options per RFC 2131 section 4.3.2.
func (a *Adapter) RequestForOffer(parameterList []int, offer *dhcp4.ReceivedDHCPMessage) *dhcp4.SentDHCPMessage {
	return &dhcp4.SentDHCPMessage{
		Type:          dhcp4.MessageTypeRequest,
		Broadcast:     true,
		ServerID:      offer.ServerID,
		RequestedIP:   offer.YourIPAddr,
		ParameterList: parameterList,
	}
}

// RequestForLease builds the REQUEST that carries a previously-acquired
// lease back to the network, shaped by which state is issuing it:
//
//   - RENEWING: unicast directly to the lease's server, ciaddr set, no
//     requested-IP option (the client already has the address).
//   - REBOOTING / REBINDING: broadcast, ciaddr unset, requested-IP option
//     carries the address being reclaimed.
func (a *Adapter) RequestForLease(parameterList []int, lease *dhcp4.Lease, state dhcp4.State) *dhcp4.SentDHCPMessage {
	msg := &dhcp4.SentDHCPMessage{
		Type:          dhcp4.MessageTypeRequest,
		ParameterList: parameterList,
	}
	switch state {
	case dhcp4.Renewing:
		msg.Broadcast = false
		msg.ClientIP = lease.YourIPAddr
		msg.ServerID = lease.ServerID
		msg.ServerHW = lease.ServerHWAddr
	default: // Rebooting, Rebinding
		msg.Broadcast = true
		msg.RequestedIP = lease.YourIPAddr
	}
	return msg
}

// Release builds a unicast RELEASE to the lease's server.
func (a *Adapter) Release(lease *dhcp4.Lease) *dhcp4.SentDHCPMessage {
	return &dhcp4.SentDHCPMessage{
		Type:     dhcp4.MessageTypeRelease,
		ClientIP: lease.YourIPAddr,
		ServerID: lease.ServerID,
		ServerHW: lease.ServerHWAddr,
	}
}
