package backchannel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Polling implements Backchannel for workers that hold no persistent
// connection to the runner: it tracks the last time each run checked in
// and a pending-kill flag the worker discovers the next time it polls.
type Polling struct {
	mu       sync.Mutex
	sessions map[string]*pollingSession
}

type pollingSession struct {
	lastPing time.Time
	killed   bool
	logs     map[string]*bytes.Buffer
}

// NewPolling constructs an empty Polling backchannel.
func NewPolling() *Polling {
	return &Polling{sessions: map[string]*pollingSession{}}
}

// Register starts tracking runID, called when the runner hands out an
// Assignment for it.
func (p *Polling) Register(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[runID] = &pollingSession{lastPing: time.Now(), logs: map[string]*bytes.Buffer{}}
}

// Unregister drops runID's session, called once the run finishes.
func (p *Polling) Unregister(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, runID)
}

// AppendLog buffers a chunk of an in-progress log file, called from the
// worker's periodic partial-log upload.
func (p *Polling) AppendLog(runID, name string, chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[runID]
	if !ok {
		return fmt.Errorf("backchannel: no session for run %s", runID)
	}
	buf, ok := s.logs[name]
	if !ok {
		buf = &bytes.Buffer{}
		s.logs[name] = buf
	}
	buf.Write(chunk)
	s.lastPing = time.Now()
	return nil
}

// IsKilled reports whether the worker should abort runID the next time it
// polls; a worker implementation calls this from its own poll loop.
func (p *Polling) IsKilled(runID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[runID]
	return ok && s.killed
}

func (p *Polling) Ping(_ context.Context, runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[runID]
	if !ok {
		return fmt.Errorf("backchannel: no session for run %s", runID)
	}
	s.lastPing = time.Now()
	return nil
}

func (p *Polling) Kill(_ context.Context, runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[runID]
	if !ok {
		return fmt.Errorf("backchannel: no session for run %s", runID)
	}
	s.killed = true
	return nil
}

func (p *Polling) ListLogFiles(_ context.Context, runID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[runID]
	if !ok {
		return nil, fmt.Errorf("backchannel: no session for run %s", runID)
	}
	names := make([]string, 0, len(s.logs))
	for name := range s.logs {
		names = append(names, name)
	}
	return names, nil
}

func (p *Polling) GetLogFile(_ context.Context, runID, name string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[runID]
	if !ok {
		return nil, fmt.Errorf("backchannel: no session for run %s", runID)
	}
	buf, ok := s.logs[name]
	if !ok {
		return nil, fmt.Errorf("backchannel: no log file %q for run %s", name, runID)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

var _ Backchannel = (*Polling)(nil)
