// Package deploy holds the container entrypoint rules: how the listen address
// is derived from the environment at process start, and static checks for
// Dockerfiles that would break that contract.
package deploy

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is used when PORT is not set. It matches the EXPOSE line of the
// image and is documentation only; platforms set PORT.
const DefaultPort = 10000

// DefaultHost binds every interface.
const DefaultHost = "0.0.0.0"

var (
	// ErrUnexpandedPort means PORT still holds a shell placeholder such as
	// "$PORT", so nothing expanded it before the process started.
	ErrUnexpandedPort = errors.New("PORT holds an unexpanded shell variable")
	// ErrInvalidPort means PORT is not a number in 1..65535.
	ErrInvalidPort = errors.New("PORT is not a valid TCP port")
)

// ParsePort validates a raw PORT value, which must be decimal digits only.
// An empty value yields DefaultPort.
func ParsePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPort, nil
	}
	if strings.Contains(raw, "$") {
		return 0, fmt.Errorf("%w: %q", ErrUnexpandedPort, raw)
	}
	if strings.Trim(raw, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
	}
	return port, nil
}

// ResolveListenAddr returns host:port for the HTTP listener. host defaults to
// DefaultHost and rawPort is the PORT value read when the process starts.
func ResolveListenAddr(host, rawPort string) (string, error) {
	port, err := ParsePort(rawPort)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
