package detector

import (
	"errors"
	"testing"

	"github.com/greenwave-data/junction.control/internal/approach"
)

func TestSnapshotCommandFormat(t *testing.T) {
	got := SnapshotCommand(approach.North, "b32a77", 12)
	want := "SNAP north b32a77 12"
	if got != want {
		t.Errorf("SnapshotCommand = %q, want %q", got, want)
	}
}

func TestPingAndResetCommands(t *testing.T) {
	if got := PingCommand(); got != "PING" {
		t.Errorf("PingCommand = %q, want PING", got)
	}
	if got := ResetCommand(); got != "RST" {
		t.Errorf("ResetCommand = %q, want RST", got)
	}
}

func TestIsAllowedCommand(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"PING", true},
		{"ping", true},
		{"  PING  ", true},
		{"RST", true},
		{"SNAP north b32a77 12", true},
		{"snap east x 1", true},
		{"", false},
		{"   ", false},
		{"REBOOT", false},
		{"PINGPONG", false},
		{"rm -rf /", false},
	}

	for _, tt := range tests {
		if got := IsAllowedCommand(tt.command); got != tt.want {
			t.Errorf("IsAllowedCommand(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendCommand(command string) error {
	f.sent = append(f.sent, command)
	return f.err
}

func TestRequesterSendsSnapshotCommand(t *testing.T) {
	sender := &fakeSender{}
	req := NewRequester(sender)

	if err := req.RequestSnapshot(approach.East, "req-1", 3); err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(sender.sent))
	}
	if sender.sent[0] != "SNAP east req-1 3" {
		t.Errorf("sent %q, want %q", sender.sent[0], "SNAP east req-1 3")
	}
}

func TestRequesterPropagatesLinkError(t *testing.T) {
	wantErr := errors.New("port unplugged")
	req := NewRequester(&fakeSender{err: wantErr})

	if err := req.RequestSnapshot(approach.East, "req-1", 3); !errors.Is(err, wantErr) {
		t.Errorf("RequestSnapshot returned %v, want %v", err, wantErr)
	}
}

func TestRequesterOverMuxWritesToPort(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux(port)
	req := NewRequester(mux)

	if err := req.RequestSnapshot(approach.South, "req-2", 9); err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "SNAP south req-2 9\n" {
		t.Errorf("port saw %q, want %q", got, "SNAP south req-2 9\n")
	}
}
