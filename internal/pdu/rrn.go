// Package pdu builds on internal/wire to assemble and parse whole PDU
// frames: the RRN id space, frame emission, and the byte-stream receive
// state machine (spec section 4.E).
package pdu

// RRN is the request/response/notification identifier carried in every PDU
// header. The id space is partitioned into three disjoint, contiguous
// ranges so that a receiver can classify an id without a lookup table.
type RRN uint32

const (
	rangeRequest      RRN = 0x1000
	rangeResponse     RRN = 0x2000
	rangeNotification RRN = 0x3000
	rangeEnd          RRN = 0x4000

	// responseOffset is the fixed distance between a request id and its
	// single expected response id.
	responseOffset RRN = rangeResponse - rangeRequest
)

// Request ids.
const (
	ReqConnect       RRN = rangeRequest + iota // no payload
	ReqXfer                                    // generic address transfer: read/write/memset
	ReqCoprocRead                              // coprocessor register read
	ReqCoprocWrite                             // coprocessor register write
	ReqBranchTo                                // branch to an address and begin execution
	ReqCodeModLoad                             // begin a code-module load (LoadRequest)
	ReqInputBufWrite                           // chunk of code-module input (binary or stdin-style bytes)
	ReqCodeModExec                             // start executing a previously loaded code module
)

// Response ids. Each has a fixed offset from its request id.
const (
	RespConnect       = ReqConnect + responseOffset
	RespXfer          = ReqXfer + responseOffset
	RespCoprocRead    = ReqCoprocRead + responseOffset
	RespCoprocWrite   = ReqCoprocWrite + responseOffset
	RespBranchTo      = ReqBranchTo + responseOffset
	RespCodeModLoad   = ReqCodeModLoad + responseOffset
	RespInputBufWrite = ReqInputBufWrite + responseOffset
	RespCodeModExec   = ReqCodeModExec + responseOffset
)

// Notification ids.
const (
	NotifyBeacon RRN = rangeNotification + iota
	NotifyLogMsg
	NotifyOutBufWrite
	NotifyIrqChange
	NotifyCodeModExecFinished
)

// IsRequest reports whether id falls in the request sub-range.
func (id RRN) IsRequest() bool { return id >= rangeRequest && id < rangeResponse }

// IsResponse reports whether id falls in the response sub-range.
func (id RRN) IsResponse() bool { return id >= rangeResponse && id < rangeNotification }

// IsNotification reports whether id falls in the notification sub-range.
func (id RRN) IsNotification() bool { return id >= rangeNotification && id < rangeEnd }

// ExpectedResponse returns the single response id a request elicits.
func (id RRN) ExpectedResponse() RRN { return id + responseOffset }

func (id RRN) String() string {
	switch id {
	case ReqConnect:
		return "ReqConnect"
	case ReqXfer:
		return "ReqXfer"
	case ReqCoprocRead:
		return "ReqCoprocRead"
	case ReqCoprocWrite:
		return "ReqCoprocWrite"
	case ReqBranchTo:
		return "ReqBranchTo"
	case ReqCodeModLoad:
		return "ReqCodeModLoad"
	case ReqInputBufWrite:
		return "ReqInputBufWrite"
	case ReqCodeModExec:
		return "ReqCodeModExec"
	case RespConnect:
		return "RespConnect"
	case RespXfer:
		return "RespXfer"
	case RespCoprocRead:
		return "RespCoprocRead"
	case RespCoprocWrite:
		return "RespCoprocWrite"
	case RespBranchTo:
		return "RespBranchTo"
	case RespCodeModLoad:
		return "RespCodeModLoad"
	case RespInputBufWrite:
		return "RespInputBufWrite"
	case RespCodeModExec:
		return "RespCodeModExec"
	case NotifyBeacon:
		return "NotifyBeacon"
	case NotifyLogMsg:
		return "NotifyLogMsg"
	case NotifyOutBufWrite:
		return "NotifyOutBufWrite"
	case NotifyIrqChange:
		return "NotifyIrqChange"
	case NotifyCodeModExecFinished:
		return "NotifyCodeModExecFinished"
	default:
		return "Unknown"
	}
}
