package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// checkProxyTimeout bounds the proxy handshake check.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 greeting bytes.
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// CheckProxy verifies that a SOCKS5 proxy listens at address and accepts
// unauthenticated sessions. It performs the method negotiation only; no
// connection to a target is requested.
//
// Design decision: We check the handshake before mirroring because a wrong
// proxy address otherwise shows up as one fetch failure per resource,
// burying the actual cause.
func CheckProxy(ctx context.Context, address string) error {
	if err := ValidateProxyAddress(address); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrProxyTimeout, address)
		}
		return fmt.Errorf("%w: %s: %w", ErrProxyCannotConnect, address, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrProxyCannotConnect, address, err)
	}

	// version, one method, "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrProxyCannotConnect, address, err)
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrProxyTimeout, address)
		}
		return fmt.Errorf("%w: %s: %w", ErrProxyNotSOCKS5, address, err)
	}

	if reply[0] != socks5Version || reply[1] != socks5AuthNone {
		return fmt.Errorf("%w: %s: reply %#x %#x", ErrProxyNotSOCKS5, address, reply[0], reply[1])
	}
	return nil
}
