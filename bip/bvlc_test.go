package bip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendHeader(t *testing.T) {
	b, err := AppendHeader(nil, FunctionOriginalUnicastNPDU, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x0A, 0x00, 0x0E}, b)

	origin := []byte{10, 0, 0, 1, 0xBA, 0xC0}
	b, err = AppendHeader(nil, FunctionForwardedNPDU, origin, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x04, 0x00, 0x0C, 10, 0, 0, 1, 0xBA, 0xC0}, b)

	_, err = AppendHeader(nil, FunctionForwardedNPDU, origin[:4], 2)
	require.ErrorIs(t, err, ErrInvalidMAC)

	_, err = AppendHeader(nil, FunctionOriginalBroadcastNPDU, nil, MaxFrameLength)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeBVLC(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		fn      Function
		payload []byte
		origin  [macLength]byte
		err     bool
	}{
		{
			name:    "unicast",
			frame:   []byte{0x81, 0x0A, 0x00, 0x06, 0x01, 0x04},
			fn:      FunctionOriginalUnicastNPDU,
			payload: []byte{0x01, 0x04},
		},
		{
			name:    "broadcast with trailing bytes",
			frame:   []byte{0x81, 0x0B, 0x00, 0x06, 0x01, 0x00, 0xFF},
			fn:      FunctionOriginalBroadcastNPDU,
			payload: []byte{0x01, 0x00},
		},
		{
			name:    "forwarded",
			frame:   []byte{0x81, 0x04, 0x00, 0x0C, 192, 168, 1, 9, 0xBA, 0xC0, 0x01, 0x00},
			fn:      FunctionForwardedNPDU,
			payload: []byte{0x01, 0x00},
			origin:  [macLength]byte{192, 168, 1, 9, 0xBA, 0xC0},
		},
		{
			name:    "result without payload",
			frame:   []byte{0x81, 0x00, 0x00, 0x06, 0x00, 0x00},
			fn:      FunctionResult,
			payload: []byte{0x00, 0x00},
		},
		{name: "short", frame: []byte{0x81, 0x0A, 0x00}, err: true},
		{name: "wrong type", frame: []byte{0x82, 0x0A, 0x00, 0x04}, err: true},
		{name: "length beyond frame", frame: []byte{0x81, 0x0A, 0x00, 0x08, 0x01}, err: true},
		{name: "length below header", frame: []byte{0x81, 0x0A, 0x00, 0x03}, err: true},
		{name: "forwarded without origin", frame: []byte{0x81, 0x04, 0x00, 0x06, 0x01, 0x00}, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, payload, err := DecodeBVLC(tt.frame)
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidBVLC)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fn, hdr.Function)
			assert.Equal(t, tt.payload, payload)
			assert.Equal(t, tt.origin, hdr.Origin)
		})
	}
}

func TestFunction_String(t *testing.T) {
	assert.Equal(t, "Original-Unicast-NPDU", FunctionOriginalUnicastNPDU.String())
	assert.Equal(t, "Forwarded-NPDU", FunctionForwardedNPDU.String())
	assert.Equal(t, "Function(0x2A)", Function(0x2A).String())
}

func TestFunction_DeliversNPDU(t *testing.T) {
	tests := []struct {
		fn   Function
		want bool
	}{
		{FunctionOriginalUnicastNPDU, true},
		{FunctionOriginalBroadcastNPDU, true},
		{FunctionForwardedNPDU, true},
		{FunctionDistributeBroadcast, false},
		{FunctionResult, false},
		{FunctionRegisterForeignDevice, false},
		{FunctionSecureBVLL, false},
	}

	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn.deliversNPDU())
		})
	}
}
