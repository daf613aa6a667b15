// ABOUTME: Append-only progress logs for long-running agent turns
// ABOUTME: The registry hands out per-conversation trackers the web frontend can poll
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/danruili/archlogic/internal/models"
)

// Progress collects timestamped status lines while a turn is being answered
type Progress struct {
	mu     sync.Mutex
	lines  []string
	status models.TurnStatus
	done   bool
}

// Log appends one formatted status line
func (p *Progress) Log(format string, args ...any) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

// Lines returns a copy of the status lines so far
func (p *Progress) Lines() []string {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// SetStatus records the turn's current lifecycle stage
func (p *Progress) SetStatus(status models.TurnStatus) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// Status returns the turn's current lifecycle stage
func (p *Progress) Status() models.TurnStatus {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Finish marks the turn as over
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

// Done reports whether the turn has finished
func (p *Progress) Done() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Registry tracks in-flight progress by conversation token
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Progress
}

// NewRegistry creates an empty progress registry
func NewRegistry() *Registry {
	return &Registry{trackers: map[string]*Progress{}}
}

// Start registers a fresh tracker under the token, replacing any stale one
func (r *Registry) Start(token string) *Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &Progress{}
	r.trackers[token] = p
	return p
}

// Get returns the tracker for a token, or nil when unknown
func (r *Registry) Get(token string) *Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackers[token]
}

// Drop removes a tracker once its logs are no longer needed
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, token)
}
