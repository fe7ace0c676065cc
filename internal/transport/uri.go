package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Open dials a Transport from a device URI of the form scheme://details, per
// spec section 6: tcp://host:port, serial://path:baud:databits:parity:
// stopbits, em100tcp://host:port. The historical sev scheme is rejected
// deliberately — it named a local ioctl transport that bypassed the engine
// entirely and is out of scope (spec section 1 non-goals).
func Open(ctx context.Context, uri string) (Transport, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("transport: malformed device uri %q", uri)
	}
	switch scheme {
	case "tcp":
		return DialTCP(ctx, rest)
	case "em100tcp":
		return DialFlashRB(ctx, rest)
	case "serial":
		return openSerialURI(rest)
	case "sev":
		return nil, fmt.Errorf("transport: scheme %q is not supported (local ioctl transport, out of scope)", scheme)
	default:
		return nil, fmt.Errorf("transport: unknown device uri scheme %q", scheme)
	}
}

// openSerialURI parses path:baud:databits:parity:stopbits and configures
// the line accordingly: databits one of 5/6/7/8 (CS5..CS8), parity one of
// n/o/e (none/odd/even), stopbits one of 1/2.
func openSerialURI(rest string) (Transport, error) {
	parts := strings.Split(rest, ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("transport: malformed serial uri details %q, want path:baud:databits:parity:stopbits", rest)
	}
	path, baudStr, databitsStr, parity, stopbitsStr := parts[0], parts[1], parts[2], parts[3], parts[4]

	baud, err := strconv.ParseUint(baudStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid baud %q: %w", baudStr, err)
	}
	switch baud {
	case 9600, 19200, 38400, 57600, 115200:
	default:
		return nil, fmt.Errorf("transport: unsupported baud %d", baud)
	}

	databits, err := strconv.ParseUint(databitsStr, 10, 8)
	if err != nil || databits < 5 || databits > 8 {
		return nil, fmt.Errorf("transport: invalid databits %q, want 5|6|7|8", databitsStr)
	}

	if parity != "n" && parity != "o" && parity != "e" {
		return nil, fmt.Errorf("transport: invalid parity %q, want n|o|e", parity)
	}

	stopbits, err := strconv.ParseUint(stopbitsStr, 10, 8)
	if err != nil || (stopbits != 1 && stopbits != 2) {
		return nil, fmt.Errorf("transport: invalid stopbits %q, want 1|2", stopbitsStr)
	}

	return OpenSerial(path, LineConfig{
		Baud:     uint32(baud),
		DataBits: uint8(databits),
		Parity:   parity[0],
		StopBits: uint8(stopbits),
	})
}
