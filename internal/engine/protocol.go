package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/PSPReverse/libpspproxy/pkg/pspaddr"
)

// ConnectResponsePayload is the fixed 20-byte ConnectResponse body (spec
// section 6 "Handshake").
type ConnectResponsePayload struct {
	CbPduMax       uint32
	PspAddrScratch uint32
	CbScratch      uint32
	CSysSockets    uint32
	CCcdsPerSocket uint32
}

func decodeConnectResponse(buf []byte) (ConnectResponsePayload, error) {
	if len(buf) < 20 {
		return ConnectResponsePayload{}, fmt.Errorf("engine: short ConnectResponse payload: %d bytes", len(buf))
	}
	return ConnectResponsePayload{
		CbPduMax:       binary.LittleEndian.Uint32(buf[0:4]),
		PspAddrScratch: binary.LittleEndian.Uint32(buf[4:8]),
		CbScratch:      binary.LittleEndian.Uint32(buf[8:12]),
		CSysSockets:    binary.LittleEndian.Uint32(buf[12:16]),
		CCcdsPerSocket: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// xferRequestHeaderSize is the fixed portion of a generic address transfer
// request, ahead of any write data.
const xferRequestHeaderSize = 20

func encodeXferRequest(addr pspaddr.Address, flags pspaddr.TransferFlags, stride uint8, cbXfer uint32, writeData []byte) []byte {
	buf := make([]byte, xferRequestHeaderSize+len(writeData))
	buf[0] = byte(addr.Space)
	buf[1] = byte(flags)
	buf[2] = stride
	buf[3] = byte(addr.Cache)
	binary.LittleEndian.PutUint32(buf[4:8], addr.CCD)
	binary.LittleEndian.PutUint64(buf[8:16], addr.Value)
	binary.LittleEndian.PutUint32(buf[16:20], cbXfer)
	copy(buf[xferRequestHeaderSize:], writeData)
	return buf
}

// coprocReqSize is the fixed size of both CoprocRead and CoprocWrite
// requests; CoprocWrite always carries a full 8-byte value slot, of which
// only cbVal bytes are meaningful, to keep the two requests the same shape.
const coprocReqSize = 20

func encodeCoprocRead(ccd, reg uint32, cbVal uint32) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], ccd)
	binary.LittleEndian.PutUint32(buf[4:8], reg)
	binary.LittleEndian.PutUint32(buf[8:12], cbVal)
	return buf
}

func encodeCoprocWrite(ccd, reg uint32, cbVal uint32, value uint64) []byte {
	buf := make([]byte, coprocReqSize)
	binary.LittleEndian.PutUint32(buf[0:4], ccd)
	binary.LittleEndian.PutUint32(buf[4:8], reg)
	binary.LittleEndian.PutUint32(buf[8:12], cbVal)
	binary.LittleEndian.PutUint64(buf[12:20], value)
	return buf
}

func encodeBranchTo(ccd uint32, addr uint64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], ccd)
	binary.LittleEndian.PutUint64(buf[4:12], addr)
	return buf
}

func encodeCodeModLoad(ccd uint32, cbTotal uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], ccd)
	binary.LittleEndian.PutUint32(buf[4:8], cbTotal)
	return buf
}

func encodeInputBufWrite(ccd uint32, idInBuf uint32, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint32(buf[0:4], ccd)
	binary.LittleEndian.PutUint32(buf[4:8], idInBuf)
	copy(buf[8:], data)
	return buf
}

func encodeCodeModExec(ccd uint32, entry uint64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], ccd)
	binary.LittleEndian.PutUint64(buf[4:12], entry)
	return buf
}

// OutBufWriteHeader is the small sub-header the stub prefixes to an
// OutBufWrite notification payload.
type outBufWriteHeader struct {
	IdOutBuf uint32
}

func decodeOutBufWrite(buf []byte) (outBufWriteHeader, []byte, error) {
	if len(buf) < 4 {
		return outBufWriteHeader{}, nil, fmt.Errorf("engine: short OutBufWrite notification")
	}
	return outBufWriteHeader{IdOutBuf: binary.LittleEndian.Uint32(buf[0:4])}, buf[4:], nil
}

func decodeBeacon(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("engine: short Beacon notification")
	}
	return binary.LittleEndian.Uint32(buf[0:4]), nil
}

func decodeIrqChange(buf []byte) (ccd uint32, irq, firq bool, err error) {
	if len(buf) < 8 {
		return 0, false, false, fmt.Errorf("engine: short IrqChange notification")
	}
	ccd = binary.LittleEndian.Uint32(buf[0:4])
	bits := binary.LittleEndian.Uint32(buf[4:8])
	return ccd, bits&0x1 != 0, bits&0x2 != 0, nil
}

func decodeCodeModExecFinished(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("engine: short CodeModExecFinished notification")
	}
	return binary.LittleEndian.Uint32(buf[0:4]), nil
}
