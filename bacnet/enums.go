package bacnet

import "fmt"

// PDUType is the APDU type carried in the upper nibble of the first APDU octet.
type PDUType uint8

const (
	PDUTypeConfirmedRequest   PDUType = 0x00
	PDUTypeUnconfirmedRequest PDUType = 0x10
	PDUTypeSimpleAck          PDUType = 0x20
	PDUTypeComplexAck         PDUType = 0x30
	PDUTypeSegmentAck         PDUType = 0x40
	PDUTypeError              PDUType = 0x50
	PDUTypeReject             PDUType = 0x60
	PDUTypeAbort              PDUType = 0x70
)

// PDUTypeOf extracts the PDU type from the first octet of an APDU.
func PDUTypeOf(b byte) PDUType {
	return PDUType(b & 0xF0)
}

func (t PDUType) String() string {
	switch t {
	case PDUTypeConfirmedRequest:
		return "Confirmed-Request"
	case PDUTypeUnconfirmedRequest:
		return "Unconfirmed-Request"
	case PDUTypeSimpleAck:
		return "SimpleACK"
	case PDUTypeComplexAck:
		return "ComplexACK"
	case PDUTypeSegmentAck:
		return "SegmentACK"
	case PDUTypeError:
		return "Error"
	case PDUTypeReject:
		return "Reject"
	case PDUTypeAbort:
		return "Abort"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// Confirmed request PCI flags (first APDU octet).
const (
	pciSegmented          = 0x08
	pciMoreFollows        = 0x04
	pciSegmentedAccepted  = 0x02
	pciAbortFromServer    = 0x01
	pciMaxSegmentsShift   = 4
	pciMaxAPDUMask        = 0x0F
	confirmedHeaderLength = 4
)

// ConfirmedService is a confirmed service choice.
type ConfirmedService uint8

const (
	ServiceAcknowledgeAlarm           ConfirmedService = 0
	ServiceConfirmedCOVNotification   ConfirmedService = 1
	ServiceConfirmedEventNotification ConfirmedService = 2
	ServiceGetAlarmSummary            ConfirmedService = 3
	ServiceGetEnrollmentSummary       ConfirmedService = 4
	ServiceSubscribeCOV               ConfirmedService = 5
	ServiceAtomicReadFile             ConfirmedService = 6
	ServiceAtomicWriteFile            ConfirmedService = 7
	ServiceAddListElement             ConfirmedService = 8
	ServiceRemoveListElement          ConfirmedService = 9
	ServiceCreateObject               ConfirmedService = 10
	ServiceDeleteObject               ConfirmedService = 11
	ServiceReadProperty               ConfirmedService = 12
	ServiceReadPropertyMultiple       ConfirmedService = 14
	ServiceWriteProperty              ConfirmedService = 15
	ServiceWritePropertyMultiple      ConfirmedService = 16
	ServiceDeviceCommunicationControl ConfirmedService = 17
	ServiceConfirmedPrivateTransfer   ConfirmedService = 18
	ServiceConfirmedTextMessage       ConfirmedService = 19
	ServiceReinitializeDevice         ConfirmedService = 20
	ServiceReadRange                  ConfirmedService = 26
	ServiceSubscribeCOVProperty       ConfirmedService = 28
	ServiceGetEventInformation        ConfirmedService = 29
)

var confirmedServiceNames = map[ConfirmedService]string{
	ServiceAcknowledgeAlarm:           "AcknowledgeAlarm",
	ServiceConfirmedCOVNotification:   "ConfirmedCOVNotification",
	ServiceConfirmedEventNotification: "ConfirmedEventNotification",
	ServiceGetAlarmSummary:            "GetAlarmSummary",
	ServiceGetEnrollmentSummary:       "GetEnrollmentSummary",
	ServiceSubscribeCOV:               "SubscribeCOV",
	ServiceAtomicReadFile:             "AtomicReadFile",
	ServiceAtomicWriteFile:            "AtomicWriteFile",
	ServiceAddListElement:             "AddListElement",
	ServiceRemoveListElement:          "RemoveListElement",
	ServiceCreateObject:               "CreateObject",
	ServiceDeleteObject:               "DeleteObject",
	ServiceReadProperty:               "ReadProperty",
	ServiceReadPropertyMultiple:       "ReadPropertyMultiple",
	ServiceWriteProperty:              "WriteProperty",
	ServiceWritePropertyMultiple:      "WritePropertyMultiple",
	ServiceDeviceCommunicationControl: "DeviceCommunicationControl",
	ServiceConfirmedPrivateTransfer:   "ConfirmedPrivateTransfer",
	ServiceConfirmedTextMessage:       "ConfirmedTextMessage",
	ServiceReinitializeDevice:         "ReinitializeDevice",
	ServiceReadRange:                  "ReadRange",
	ServiceSubscribeCOVProperty:       "SubscribeCOVProperty",
	ServiceGetEventInformation:        "GetEventInformation",
}

func (s ConfirmedService) String() string {
	if name, ok := confirmedServiceNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// Priority is the network priority carried in the NPDU control octet.
type Priority uint8

const (
	PriorityNormal     Priority = 0
	PriorityUrgent     Priority = 1
	PriorityCritical   Priority = 2
	PriorityLifeSafety Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "Normal"
	case PriorityUrgent:
		return "Urgent"
	case PriorityCritical:
		return "Critical"
	case PriorityLifeSafety:
		return "LifeSafety"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// RejectReason is carried by a Reject PDU.
type RejectReason uint8

const (
	RejectOther                    RejectReason = 0
	RejectBufferOverflow           RejectReason = 1
	RejectInconsistentParameters   RejectReason = 2
	RejectInvalidParameterDataType RejectReason = 3
	RejectInvalidTag               RejectReason = 4
	RejectMissingRequiredParameter RejectReason = 5
	RejectParameterOutOfRange      RejectReason = 6
	RejectTooManyArguments         RejectReason = 7
	RejectUndefinedEnumeration     RejectReason = 8
	RejectUnrecognizedService      RejectReason = 9
)

// AbortReason is carried by an Abort PDU.
type AbortReason uint8

const (
	AbortOther                         AbortReason = 0
	AbortBufferOverflow                AbortReason = 1
	AbortInvalidAPDUInThisState        AbortReason = 2
	AbortPreemptedByHigherPriorityTask AbortReason = 3
	AbortSegmentationNotSupported      AbortReason = 4
	AbortSecurityError                 AbortReason = 5
	AbortInsufficientSecurity          AbortReason = 6
	AbortWindowSizeOutOfRange          AbortReason = 7
	AbortApplicationExceededReplyTime  AbortReason = 8
	AbortOutOfResources                AbortReason = 9
	AbortTSMTimeout                    AbortReason = 10
	AbortAPDUTooLong                   AbortReason = 11
)

// maxAPDUSizes maps the 4-bit "max APDU length accepted" code to octets.
var maxAPDUSizes = [...]int{50, 128, 206, 480, 1024, 1476}

// MaxAPDULength is the largest APDU a BACnet/IP station can carry.
const MaxAPDULength = 1476

// EncodeMaxAPDU returns the largest 4-bit code whose size does not exceed n.
func EncodeMaxAPDU(n int) uint8 {
	code := 0
	for i, size := range maxAPDUSizes {
		if size <= n {
			code = i
		}
	}

	return uint8(code) //nolint:gosec // index of a 6 element table
}

// DecodeMaxAPDU converts a 4-bit "max APDU length accepted" code to octets.
// Reserved codes decode to 50, the minimum every device must accept.
func DecodeMaxAPDU(code uint8) int {
	if int(code) < len(maxAPDUSizes) {
		return maxAPDUSizes[code]
	}

	return maxAPDUSizes[0]
}
