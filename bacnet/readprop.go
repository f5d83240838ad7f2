package bacnet

import "encoding/binary"

// ObjectType is a BACnet object type.
type ObjectType uint16

const (
	ObjectAnalogInput  ObjectType = 0
	ObjectAnalogOutput ObjectType = 1
	ObjectAnalogValue  ObjectType = 2
	ObjectBinaryInput  ObjectType = 3
	ObjectBinaryOutput ObjectType = 4
	ObjectBinaryValue  ObjectType = 5
	ObjectDevice       ObjectType = 8
	ObjectFile         ObjectType = 10
)

// MaxObjectInstance is the largest 22-bit object instance number.
const MaxObjectInstance = 0x3FFFFF

// PropertyID is a BACnet property identifier.
type PropertyID uint32

const (
	PropertyObjectIdentifier PropertyID = 75
	PropertyObjectName       PropertyID = 77
	PropertyPresentValue     PropertyID = 85
	PropertyApduTimeout      PropertyID = 11
	PropertyNumberOfRetries  PropertyID = 73
)

// ObjectID packs an object type and instance into the 32-bit object identifier.
func ObjectID(t ObjectType, instance uint32) uint32 {
	return uint32(t)<<22 | instance&MaxObjectInstance
}

// AppendReadPropertyRequest appends the service data of a ReadProperty request
// to b. A negative arrayIndex omits the optional array index.
func AppendReadPropertyRequest(b []byte, t ObjectType, instance uint32, prop PropertyID, arrayIndex int64) []byte {
	// context tag 0, length 4: object identifier
	b = append(b, 0x0C)
	b = binary.BigEndian.AppendUint32(b, ObjectID(t, instance))
	b = AppendContextUnsigned(b, 1, uint32(prop))
	if arrayIndex >= 0 {
		b = AppendContextUnsigned(b, 2, uint32(arrayIndex)) //nolint:gosec // array indexes are 32-bit
	}

	return b
}
