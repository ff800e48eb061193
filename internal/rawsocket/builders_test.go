package rawsocket

import (
	"net"
	"testing"

	"grimm.is/dhcp4c/internal/dhcp4"
)

func TestAdapterDiscoverIsBroadcast(t *testing.T) {
	a := &Adapter{}
	msg := a.Discover([]int{1, 3, 6})
	if msg.Type != dhcp4.MessageTypeDiscover {
		t.Fatalf("Type = %v, want DISCOVER", msg.Type)
	}
	if !msg.Broadcast {
		t.Fatal("DISCOVER must be broadcast")
	}
	if len(msg.ParameterList) != 3 {
		t.Fatalf("ParameterList = %v, want 3 entries", msg.ParameterList)
	}
}

func TestAdapterRequestForOfferCarriesOfferFields(t *testing.T) {
	a := &Adapter{}
	offer := &dhcp4.ReceivedDHCPMessage{
		ServerID:   net.ParseIP("192.0.2.1"),
		YourIPAddr: net.ParseIP("192.0.2.10"),
	}
	msg := a.RequestForOffer([]int{1}, offer)
	if msg.Type != dhcp4.MessageTypeRequest {
		t.Fatalf("Type = %v, want REQUEST", msg.Type)
	}
	if !msg.Broadcast {
		t.Fatal("a SELECTING REQUEST must be broadcast")
	}
	if !msg.ServerID.Equal(offer.ServerID) {
		t.Fatalf("ServerID = %v, want %v", msg.ServerID, offer.ServerID)
	}
	if !msg.RequestedIP.Equal(offer.YourIPAddr) {
		t.Fatalf("RequestedIP = %v, want %v", msg.RequestedIP, offer.YourIPAddr)
	}
}

func testLeaseForBuilder() *dhcp4.Lease {
	return &dhcp4.Lease{
		YourIPAddr:   net.ParseIP("192.0.2.10"),
		ServerID:     net.ParseIP("192.0.2.1"),
		ServerHWAddr: net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
	}
}

func TestAdapterRequestForLeaseRenewingIsUnicast(t *testing.T) {
	a := &Adapter{}
	lease := testLeaseForBuilder()
	msg := a.RequestForLease(nil, lease, dhcp4.Renewing)

	if msg.Broadcast {
		t.Fatal("RENEWING request must not be broadcast")
	}
	if !msg.ClientIP.Equal(lease.YourIPAddr) {
		t.Fatalf("ClientIP = %v, want %v", msg.ClientIP, lease.YourIPAddr)
	}
	if !msg.ServerID.Equal(lease.ServerID) {
		t.Fatalf("ServerID = %v, want %v", msg.ServerID, lease.ServerID)
	}
	if msg.ServerHW.String() != lease.ServerHWAddr.String() {
		t.Fatalf("ServerHW = %v, want %v", msg.ServerHW, lease.ServerHWAddr)
	}
	if msg.RequestedIP != nil {
		t.Fatal("a RENEWING request must not carry a requested-IP option, ciaddr already identifies the client")
	}
}

func TestAdapterRequestForLeaseRebindingAndRebootingAreBroadcast(t *testing.T) {
	a := &Adapter{}
	lease := testLeaseForBuilder()

	for _, st := range []dhcp4.State{dhcp4.Rebinding, dhcp4.Rebooting} {
		msg := a.RequestForLease(nil, lease, st)
		if !msg.Broadcast {
			t.Fatalf("%s request must be broadcast", st)
		}
		if msg.ClientIP != nil {
			t.Fatalf("%s request must not set ciaddr", st)
		}
		if !msg.RequestedIP.Equal(lease.YourIPAddr) {
			t.Fatalf("%s RequestedIP = %v, want %v", st, msg.RequestedIP, lease.YourIPAddr)
		}
	}
}

func TestAdapterReleaseCarriesLeaseIdentity(t *testing.T) {
	a := &Adapter{}
	lease := testLeaseForBuilder()
	msg := a.Release(lease)

	if msg.Type != dhcp4.MessageTypeRelease {
		t.Fatalf("Type = %v, want RELEASE", msg.Type)
	}
	if !msg.ClientIP.Equal(lease.YourIPAddr) {
		t.Fatalf("ClientIP = %v, want %v", msg.ClientIP, lease.YourIPAddr)
	}
	if !msg.ServerID.Equal(lease.ServerID) {
		t.Fatalf("ServerID = %v, want %v", msg.ServerID, lease.ServerID)
	}
}
