package detector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// MockPort implements Porter with a synthetic detector behind it: it emits
// periodic count reports for each approach and answers SNAP commands with
// a plausible snapshot result after a short delay. Used for dev mode and
// demos without hardware.
type MockPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mu     sync.Mutex
	rng    *rand.Rand
	closed bool
}

// NewMockPort creates a mock detector port and starts its report
// generator.
func NewMockPort() *MockPort {
	r, w := io.Pipe()
	p := &MockPort{
		reader: r,
		writer: w,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	go p.generate()
	return p
}

// generate emits a count report for one approach at a time, walking the
// rotation so every approach stays fresh.
func (p *MockPort) generate() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	i := 0
	for range ticker.C {
		a := approach.AtIndex(i)
		i++

		p.mu.Lock()
		closed := p.closed
		count := p.rng.Intn(15)
		p.mu.Unlock()
		if closed {
			return
		}

		report := map[string]any{
			"type":     EventTypeCounts,
			"approach": a.String(),
			"count":    count,
			"classes":  p.classSplit(count),
		}
		if err := p.emit(report); err != nil {
			return
		}
	}
}

// classSplit breaks a count into plausible vehicle classes.
func (p *MockPort) classSplit(count int) map[string]int {
	split := make(map[string]int)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < count; i++ {
		class := approach.ValidClasses[p.rng.Intn(len(approach.ValidClasses))]
		split[string(class)]++
	}
	return split
}

// emit writes one JSON line into the pipe.
func (p *MockPort) emit(payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.writer.Write(append(raw, '\n'))
	return err
}

// Read reads synthetic detector output.
func (p *MockPort) Read(buf []byte) (int, error) {
	return p.reader.Read(buf)
}

// Write accepts commands. SNAP commands are answered asynchronously with a
// snapshot result; PING with a status line; everything else is ignored the
// way a lenient device would.
func (p *MockPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("mock detector port closed")
	}
	p.mu.Unlock()

	command := strings.TrimSpace(string(data))
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return len(data), nil
	}

	switch strings.ToUpper(fields[0]) {
	case cmdSnapshot:
		if len(fields) != 4 {
			monitoring.Debugf("detector: mock ignoring malformed snapshot command %q", command)
			break
		}
		a, err := approach.Parse(fields[1])
		if err != nil {
			monitoring.Debugf("detector: mock ignoring snapshot for %q", fields[1])
			break
		}
		generation, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			monitoring.Debugf("detector: mock ignoring bad generation %q", fields[3])
			break
		}
		p.mu.Lock()
		count := p.rng.Intn(15)
		p.mu.Unlock()
		go p.answerSnapshot(fields[2], generation, a, count)

	case cmdPing:
		go func() {
			_ = p.emit(map[string]any{
				"type":  EventTypeStatus,
				"state": "online",
			})
		}()

	case cmdReset:
		// nothing to reset in the mock
	}

	return len(data), nil
}

// answerSnapshot emits a snapshot result after a short detector-like
// delay.
func (p *MockPort) answerSnapshot(requestID string, generation uint64, a approach.Approach, count int) {
	time.Sleep(150 * time.Millisecond)
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	_ = p.emit(map[string]any{
		"type":       EventTypeSnapshot,
		"request_id": requestID,
		"generation": generation,
		"approach":   a.String(),
		"count":      count,
	})
}

// Close shuts the pipe down, unblocking any pending reads.
func (p *MockPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.writer.Close()
	return p.reader.Close()
}

// NewMockMux creates a Mux backed by a synthetic detector.
func NewMockMux() *Mux[*MockPort] {
	return NewMux(NewMockPort())
}

// TestablePort implements Porter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, errors, and
// latency.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadLatency adds a delay to each Read call
	ReadLatency time.Duration

	// WriteLatency adds a delay to each Write call
	WriteLatency time.Duration

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	tp := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

// Read reads from the read buffer, optionally simulating latency and
// errors.
func (t *TestablePort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, errors.New("detector port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.ReadLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.ReadLatency)
		t.mu.Lock()
	}

	// If blocking reads are enabled and buffer is empty, wait for data
	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("detector port closed")
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally simulating latency and
// errors.
func (t *TestablePort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("detector port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	if t.WriteLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.WriteLatency)
		t.mu.Lock()
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// SetReadTimeout implements TimeoutPorter.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal() // Wake up a blocked reader
}

// GetWrittenData returns all data written to the port.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// Reset clears all buffers and resets state.
func (t *TestablePort) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Reset()
	t.WriteBuffer.Reset()
	t.ReadCalls = 0
	t.WriteCalls = 0
	t.Closed = false
	t.ReadError = nil
	t.WriteError = nil
	t.CloseError = nil
	t.ReadLatency = 0
	t.WriteLatency = 0
}

// WaitForWrite blocks until data arrives in the write buffer or the
// timeout expires. Helps tests avoid sleeping.
func (t *TestablePort) WaitForWrite(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		t.mu.Lock()
		data := t.WriteBuffer.String()
		t.mu.Unlock()
		if data != "" {
			return data, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no write within %v", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
