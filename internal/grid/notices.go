package grid

import (
	"sync"
	"time"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind      NoticeKind
	Text      string
	ExpiresAt time.Time
}

// Notices keeps the latest user notification until it expires. A newer
// notice replaces the current one.
type Notices struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	current *Notice
}

const DefaultNoticeTTL = 3 * time.Second

func NewNotices(ttl time.Duration, now func() time.Time) *Notices {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Notices{ttl: ttl, now: now}
}

func (n *Notices) Post(kind NoticeKind, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = &Notice{Kind: kind, Text: text, ExpiresAt: n.now().Add(n.ttl)}
}

// Current returns the active notice, if it has not expired.
func (n *Notices) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.current = nil
		return Notice{}, false
	}
	return *n.current, true
}
