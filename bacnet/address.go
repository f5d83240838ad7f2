package bacnet

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxMACLen is the maximum length of a datalink MAC address. BACnet/IP uses 6
// bytes (IPv4 + UDP port), MS/TP uses 1.
const MaxMACLen = 7

const (
	// LocalNetwork is the network number of the directly attached network.
	LocalNetwork uint16 = 0
	// GlobalBroadcastNetwork addresses every network.
	GlobalBroadcastNetwork uint16 = 0xFFFF
)

// Address is a BACnet station address.
//
// MAC is the datalink address of the station itself (local network) or of the
// router leading to it (remote network). Net and Adr identify the station on a
// remote network; Net == LocalNetwork means the station is directly attached.
type Address struct {
	MACLen uint8
	MAC    [MaxMACLen]byte
	Net    uint16
	AdrLen uint8
	Adr    [MaxMACLen]byte
}

// NewLocalAddress returns the address of a station on the local network.
func NewLocalAddress(mac []byte) (Address, error) {
	var a Address
	if len(mac) > MaxMACLen {
		return a, fmt.Errorf("%w: MAC length %d", ErrInvalidAddressLength, len(mac))
	}
	a.MACLen = uint8(len(mac)) //nolint:gosec // bounded by MaxMACLen
	copy(a.MAC[:], mac)

	return a, nil
}

// NewRemoteAddress returns the address of station adr on network net, reached
// through the router with datalink address routerMAC.
func NewRemoteAddress(routerMAC []byte, net uint16, adr []byte) (Address, error) {
	a, err := NewLocalAddress(routerMAC)
	if err != nil {
		return a, err
	}
	if len(adr) > MaxMACLen {
		return a, fmt.Errorf("%w: remote address length %d", ErrInvalidAddressLength, len(adr))
	}
	a.Net = net
	a.AdrLen = uint8(len(adr)) //nolint:gosec // bounded by MaxMACLen
	copy(a.Adr[:], adr)

	return a, nil
}

// MACBytes returns the used part of the MAC.
func (a *Address) MACBytes() []byte {
	return a.MAC[:a.MACLen]
}

// AdrBytes returns the used part of the remote station address.
func (a *Address) AdrBytes() []byte {
	return a.Adr[:a.AdrLen]
}

// IsRemote reports whether the address refers to a station behind a router.
func (a *Address) IsRemote() bool {
	return a.Net != LocalNetwork
}

// IsBroadcast reports whether the address is a local, remote or global broadcast.
func (a *Address) IsBroadcast() bool {
	if a.Net == GlobalBroadcastNetwork {
		return true
	}
	if a.Net != LocalNetwork {
		return a.AdrLen == 0
	}

	return a.MACLen == 0
}

// Equal reports whether a and b identify the same station.
func (a *Address) Equal(b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.MACLen != b.MACLen || a.Net != b.Net {
		return false
	}
	if a.MAC != b.MAC && string(a.MACBytes()) != string(b.MACBytes()) {
		return false
	}
	if a.Net == LocalNetwork {
		return true
	}

	return a.AdrLen == b.AdrLen && string(a.AdrBytes()) == string(b.AdrBytes())
}

// String returns "mac" for local stations and "mac@net:adr" for remote ones,
// with MAC and remote address in hex.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(hex.EncodeToString(a.MACBytes()))
	if a.Net != LocalNetwork {
		fmt.Fprintf(&sb, "@%d:%s", a.Net, hex.EncodeToString(a.AdrBytes()))
	}

	return sb.String()
}
