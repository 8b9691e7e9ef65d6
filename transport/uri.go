package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnsupportedScheme is returned for a link URI that is neither serial nor tcp.
var ErrUnsupportedScheme = errors.New("transport: unsupported link scheme")

// Endpoint is a parsed link URI.
type Endpoint struct {
	Scheme   string // "serial" or "tcp"
	Address  string // device path or host:port
	BaudRate int    // serial only
}

func (e Endpoint) String() string {
	if e.Scheme == "serial" && e.BaudRate > 0 {
		return fmt.Sprintf("serial://%s?baud=%d", e.Address, e.BaudRate)
	}
	return e.Scheme + "://" + e.Address
}

// ParseEndpoint accepts:
//
//	serial:///dev/ttyACM0?baud=115200
//	serial://COM3
//	tcp://localhost:4000
//	/dev/ttyUSB0          (serial, default baud rate)
//	COM3                  (serial, default baud rate)
//	localhost:4000        (tcp)
func ParseEndpoint(raw string) (Endpoint, error) {
	if !strings.Contains(raw, "://") {
		if strings.HasPrefix(raw, "/") || strings.HasPrefix(strings.ToUpper(raw), "COM") {
			return Endpoint{Scheme: "serial", Address: raw, BaudRate: DefaultBaudRate}, nil
		}
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return Endpoint{}, fmt.Errorf("transport: invalid link address %q: %w", raw, err)
		}
		return Endpoint{Scheme: "tcp", Address: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("transport: invalid link uri %q: %w", raw, err)
	}

	switch u.Scheme {
	case "serial":
		ep := Endpoint{Scheme: "serial", Address: u.Host + u.Path, BaudRate: DefaultBaudRate}
		if ep.Address == "" {
			return Endpoint{}, fmt.Errorf("transport: missing device in %q", raw)
		}
		if baud := u.Query().Get("baud"); baud != "" {
			n, err := strconv.Atoi(baud)
			if err != nil || n <= 0 {
				return Endpoint{}, fmt.Errorf("transport: invalid baud rate %q", baud)
			}
			ep.BaudRate = n
		}
		return ep, nil
	case "tcp":
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("transport: missing host in %q", raw)
		}
		return Endpoint{Scheme: "tcp", Address: u.Host}, nil
	default:
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Open parses a link URI and opens the link.
func Open(ctx context.Context, raw string) (Link, error) {
	ep, err := ParseEndpoint(raw)
	if err != nil {
		return nil, err
	}
	return OpenEndpoint(ctx, ep)
}

// OpenEndpoint opens a link to a parsed endpoint.
func OpenEndpoint(ctx context.Context, ep Endpoint) (Link, error) {
	switch ep.Scheme {
	case "serial":
		link, err := OpenSerial(SerialConfig{Path: ep.Address, BaudRate: ep.BaudRate})
		if err != nil {
			return nil, err
		}
		return link, nil
	case "tcp":
		link, err := DialTCP(ctx, ep.Address)
		if err != nil {
			return nil, err
		}
		return link, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, ep.Scheme)
	}
}
