package detector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// udpReadBuffer is sized well above any single JSON payload the detectors
// send.
const udpReadBuffer = 64 * 1024

// ListenUDP receives detector payloads over UDP and feeds them to the
// sink. Datagrams carry the same line-oriented JSON as the serial link;
// one datagram may hold several lines. Malformed payloads are logged and
// dropped without affecting the listener.
func ListenUDP(ctx context.Context, address string, sink Sink) error {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	monitoring.Logf("detector: UDP listener started on %s", conn.LocalAddr())

	buffer := make([]byte, udpReadBuffer)
	var deadlineErrLogged bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Set read deadline to allow checking context cancellation
			if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
				if !deadlineErrLogged {
					monitoring.Logf("detector: failed to set read deadline: %v", err)
					deadlineErrLogged = true
				}
			}

			n, remote, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // Continue on timeout to check context
				}
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return nil
				}
				monitoring.Logf("detector: UDP read error: %v", err)
				continue
			}

			scan := bufio.NewScanner(bytes.NewReader(buffer[:n]))
			for scan.Scan() {
				line := scan.Text()
				if line == "" {
					continue
				}
				if err := HandleEvent(sink, line); err != nil {
					monitoring.Logf("detector: bad UDP payload from %v: %v", remote, err)
				}
			}
		}
	}
}
