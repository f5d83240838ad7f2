package bip

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/arloliu/go-bacnet/bacnet"
)

// macLength is the length of a B/IP MAC: IPv4 address followed by UDP port.
const macLength = 6

// MACFromUDPAddr returns the B/IP MAC of a UDP address.
func MACFromUDPAddr(addr *net.UDPAddr) ([macLength]byte, error) {
	var mac [macLength]byte
	if addr == nil {
		return mac, ErrNotIPv4
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return mac, fmt.Errorf("%w: %s", ErrNotIPv4, addr)
	}
	copy(mac[:4], ip4)
	binary.BigEndian.PutUint16(mac[4:], uint16(addr.Port)) //nolint:gosec // valid UDP port

	return mac, nil
}

// AddressFromUDPAddr returns the local BACnet address of the station at addr.
func AddressFromUDPAddr(addr *net.UDPAddr) (bacnet.Address, error) {
	mac, err := MACFromUDPAddr(addr)
	if err != nil {
		return bacnet.Address{}, err
	}

	return bacnet.NewLocalAddress(mac[:])
}

// UDPAddrFromMAC returns the UDP address of a B/IP MAC.
func UDPAddrFromMAC(mac []byte) (*net.UDPAddr, error) {
	if len(mac) != macLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidMAC, len(mac))
	}

	return &net.UDPAddr{
		IP:   net.IPv4(mac[0], mac[1], mac[2], mac[3]),
		Port: int(binary.BigEndian.Uint16(mac[4:])),
	}, nil
}

// ParseAddress parses "host:port" (port defaults to 47808) into a local BACnet address.
func ParseAddress(s string) (bacnet.Address, error) {
	udpAddr, err := resolve(s)
	if err != nil {
		return bacnet.Address{}, err
	}

	return AddressFromUDPAddr(udpAddr)
}

func resolve(s string) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(s); err != nil {
		s = net.JoinHostPort(s, fmt.Sprint(DefaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", s)
	if err != nil {
		return nil, fmt.Errorf("bip: resolve %q: %w", s, err)
	}

	return addr, nil
}
