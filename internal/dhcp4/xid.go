package dhcp4

import (
	"crypto/rand"
	"encoding/binary"
)

const xidRandomMask uint32 = 0x00FFFFFF

// issuingStates is the closed set of states that are allowed to mint an
// outbound request and therefore appear encoded in a xid's high byte.
var issuingStates = map[State]bool{
	Selecting:  true,
	Requesting: true,
	Rebooting:  true,
	Renewing:   true,
	Rebinding:  true,
}

// Xid is a per-session transaction-ID allocator. The low 24 bits are random
// and fixed for the allocator's lifetime; for_state encodes the issuing
// state in the high byte so a reply can be matched back to the state that
// produced the request it answers (distinguishing, e.g., a renewal ACK from
// a rebinding ACK that happen to share the same random suffix).
type Xid struct {
	random uint32
}

// NewXid draws a fresh 24-bit random part.
func NewXid() (*Xid, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return &Xid{random: binary.BigEndian.Uint32(b[:]) & xidRandomMask}, nil
}

// ForState returns the 32-bit transaction ID to use for a message issued
// from state s: (state_code << 24) | random_part.
func (x *Xid) ForState(s State) uint32 {
	return (uint32(s) << 24) | (x.random & xidRandomMask)
}

// Matches reports whether a received xid shares this allocator's random
// suffix, i.e. it is a reply to some request this session issued.
func (x *Xid) Matches(received uint32) bool {
	return received&xidRandomMask == x.random
}

// RequestState recovers the issuing state encoded in a received xid's high
// byte. ok is false if the high byte does not decode to a known issuing
// state; callers must log and discard in that case rather than guess.
func RequestState(received uint32) (s State, ok bool) {
	code := State(received >> 24)
	if !issuingStates[code] {
		return 0, false
	}
	return code, true
}
