//go:build linux

package logger

import (
	"syscall"
	"unsafe"
)

// tcGetS is the Linux ioctl request number for reading terminal attributes.
const tcGetS = 0x5401

func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, errno := syscall.Syscall6(
		syscall.SYS_IOCTL,
		fd,
		tcGetS,
		uintptr(unsafe.Pointer(&termios)),
		0, 0, 0,
	)
	return errno == 0
}
