package detector

import (
	"context"
	"net/http"
	"sync"
)

// DisabledLink is a no-op Link implementation used when no detector is
// attached (for -disable-detector). It allows the daemon and admin routes
// to run without a device; the controller falls back to its timing policy
// for every green. Subscribers are tracked so their channels can be
// deterministically closed on Unsubscribe() or Close(), letting readers
// unblock predictably during shutdown.
type DisabledLink struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledLink() *DisabledLink {
	return &DisabledLink{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledLink) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		d.mu.Unlock()
		return id, ch
	}
	d.subscribers[id] = ch
	d.mu.Unlock()
	return id, ch
}

func (d *DisabledLink) Unsubscribe(id string) {
	d.mu.Lock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}

func (d *DisabledLink) SendCommand(string) error { return nil }

func (d *DisabledLink) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledLink) Close() error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
	return nil
}

func (d *DisabledLink) Initialize() error { return nil }

func (d *DisabledLink) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/detector-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("detector disabled"))
	})
}
