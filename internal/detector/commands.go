package detector

import (
	"fmt"
	"strings"

	"github.com/greenwave-data/junction.control/internal/approach"
)

// Detector command verbs. The protocol is deliberately small: everything
// else the detector does is unsolicited.
const (
	cmdSnapshot = "SNAP"
	cmdPing     = "PING"
	cmdReset    = "RST"
)

// SnapshotCommand formats a snapshot request. The detector echoes the
// request ID and generation back in its snapshot result so the controller
// can match and de-duplicate answers.
func SnapshotCommand(a approach.Approach, requestID string, generation uint64) string {
	return fmt.Sprintf("%s %s %s %d", cmdSnapshot, a, requestID, generation)
}

// PingCommand formats a link probe. The detector answers with a status
// line.
func PingCommand() string {
	return cmdPing
}

// ResetCommand formats a detector reset.
func ResetCommand() string {
	return cmdReset
}

// IsAllowedCommand reports whether a command may be sent through the admin
// send-command endpoint. Only the known verbs pass; anything else is
// rejected before it reaches the port.
func IsAllowedCommand(command string) bool {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case cmdSnapshot, cmdPing, cmdReset:
		return true
	}
	return false
}
