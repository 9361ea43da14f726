package detector

import (
	"github.com/greenwave-data/junction.control/internal/approach"
)

// CommandSender is the slice of Link the Requester needs.
type CommandSender interface {
	SendCommand(string) error
}

// Requester issues snapshot requests over a detector link. It satisfies
// the controller's snapshot request contract: the write returns
// immediately and the result arrives later as a snapshot event.
type Requester struct {
	link CommandSender
}

// NewRequester wraps a link for snapshot requests.
func NewRequester(link CommandSender) *Requester {
	return &Requester{link: link}
}

// RequestSnapshot sends a SNAP command for the given approach.
func (r *Requester) RequestSnapshot(a approach.Approach, requestID string, generation uint64) error {
	return r.link.SendCommand(SnapshotCommand(a, requestID, generation))
}
