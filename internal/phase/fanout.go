package phase

import (
	crand "crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// frameBuffer is the per-subscriber channel depth. A sink that falls more
// than a few frames behind starts losing frames rather than stalling the
// tick loop.
const frameBuffer = 16

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	if _, err := crand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// Subscribe registers a display sink. Every tick delivers one DisplayFrame
// to the returned channel; the ID identifies the channel when
// unsubscribing.
func (c *Controller) Subscribe() (string, chan DisplayFrame) {
	id := randomID()
	ch := make(chan DisplayFrame, frameBuffer)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a display sink channel.
func (c *Controller) Unsubscribe(id string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// publish fans a frame out to every subscriber. Sends never block; a full
// channel drops the frame for that subscriber.
func (c *Controller) publish(frame DisplayFrame) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}
