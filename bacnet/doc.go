// Package bacnet defines the protocol types shared by the go-bacnet packages:
// BACnet addresses, NPDU control information, PDU types, confirmed service
// choices and the minimal APDU header codecs required by the transaction layer.
//
// Service specific encoding and decoding (ReadPropertyMultiple, AtomicReadFile,
// ...) is outside the scope of this package; only the fixed headers needed to
// correlate a confirmed request with its reply are handled here, plus a
// ReadProperty request encoder used by the command line tools.
//
// # Addresses
//
// [Address] is a fixed-size value: it never allocates and can be copied and
// compared freely. A local station is identified by its datalink MAC alone; a
// remote station additionally carries the network number and the MAC on that
// remote network.
package bacnet
