package bacnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendNPDU_Local(t *testing.T) {
	data := NewNPDUData(true, PriorityNormal)
	dest, _ := NewLocalAddress([]byte{10, 0, 0, 2, 0xBA, 0xC0})

	b := AppendNPDU(nil, &dest, nil, &data)
	assert.Equal(t, []byte{0x01, 0x04}, b)

	h, err := DecodeNPDU(b)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len)
	assert.False(t, h.HasDest)
	assert.False(t, h.HasSrc)
	assert.True(t, h.Data.DataExpectingReply)
	assert.Equal(t, PriorityNormal, h.Data.Priority)
}

func TestAppendNPDU_RemoteDestination(t *testing.T) {
	data := NewNPDUData(true, PriorityUrgent)
	dest, _ := NewRemoteAddress([]byte{10, 0, 0, 1, 0xBA, 0xC0}, 0x07D1, []byte{0x05})

	b := AppendNPDU(nil, &dest, nil, &data)
	assert.Equal(t, []byte{0x01, 0x25, 0x07, 0xD1, 0x01, 0x05, 0xFF}, b)

	h, err := DecodeNPDU(append(b, 0x00, 0x05, 0x01, 0x0C))
	require.NoError(t, err)
	assert.Equal(t, len(b), h.Len)
	assert.True(t, h.HasDest)
	assert.Equal(t, uint16(0x07D1), h.Dest.Net)
	assert.Equal(t, []byte{0x05}, h.Dest.AdrBytes())
	assert.Equal(t, uint8(DefaultHopCount), h.Data.HopCount)
	assert.Equal(t, PriorityUrgent, h.Data.Priority)
}

func TestAppendNPDU_SourceAndNetworkMessage(t *testing.T) {
	data := NPDUData{
		NetworkLayerMessage: true,
		NetworkMessageType:  0x80,
		VendorID:            260,
		HopCount:            10,
	}
	dest := Address{Net: GlobalBroadcastNetwork}
	src, _ := NewRemoteAddress(nil, 5, []byte{0x01, 0x02})

	b := AppendNPDU(nil, &dest, &src, &data)
	h, err := DecodeNPDU(b)
	require.NoError(t, err)

	assert.Equal(t, len(b), h.Len)
	assert.True(t, h.HasDest)
	assert.Equal(t, GlobalBroadcastNetwork, h.Dest.Net)
	assert.Zero(t, h.Dest.AdrLen)
	assert.True(t, h.HasSrc)
	assert.Equal(t, uint16(5), h.Src.Net)
	assert.Equal(t, []byte{0x01, 0x02}, h.Src.AdrBytes())
	assert.Equal(t, uint8(10), h.Data.HopCount)
	assert.True(t, h.Data.NetworkLayerMessage)
	assert.Equal(t, uint8(0x80), h.Data.NetworkMessageType)
	assert.Equal(t, uint16(260), h.Data.VendorID)
}

func TestDecodeNPDU_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"empty", nil, ErrShortBuffer},
		{"bad version", []byte{0x02, 0x00}, ErrInvalidVersion},
		{"truncated dest", []byte{0x01, 0x20, 0x00}, ErrShortBuffer},
		{"dest too long", []byte{0x01, 0x20, 0x00, 0x01, 0x08}, ErrInvalidAddressLength},
		{"missing hop count", []byte{0x01, 0x20, 0x00, 0x01, 0x00}, ErrShortBuffer},
		{"missing message type", []byte{0x01, 0x80}, ErrShortBuffer},
		{"missing vendor id", []byte{0x01, 0x80, 0x90, 0x01}, ErrShortBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNPDU(tt.in)
			require.ErrorIs(t, err, tt.err)
		})
	}
}
