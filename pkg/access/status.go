package access

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	// StatusConnected is published when a device scans the door code.
	StatusConnected = "connected"
	// StatusUnlocked is published when access is granted.
	StatusUnlocked = "unlocked"

	defaultStatusBuffer = 16
)

// StatusHub fans door status updates out to in-process subscribers. A
// subscriber that falls behind loses updates instead of blocking publishers.
type StatusHub struct {
	mu     sync.Mutex
	buffer int
	nextID uint64
	subs   map[string]map[uint64]chan string
}

// NewStatusHub gives each subscriber a buffer of the given size. A size of
// zero or less selects the default.
func NewStatusHub(buffer int) *StatusHub {
	if buffer <= 0 {
		buffer = defaultStatusBuffer
	}
	return &StatusHub{
		buffer: buffer,
		subs:   make(map[string]map[uint64]chan string),
	}
}

// Subscribe registers for updates on doorID published from now on. cancel
// closes the channel and may be called more than once.
func (h *StatusHub) Subscribe(doorID string) (<-chan string, func()) {
	ch := make(chan string, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[doorID] == nil {
		h.subs[doorID] = make(map[uint64]chan string)
	}
	h.subs[doorID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[doorID], id)
			if len(h.subs[doorID]) == 0 {
				delete(h.subs, doorID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers status to every subscriber of doorID and returns how many
// received it.
func (h *StatusHub) Publish(doorID, status string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for id, ch := range h.subs[doorID] {
		select {
		case ch <- status:
			delivered++
		default:
			log.Debugf("door %s subscriber %d lagging, dropped %q", doorID, id, status)
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on doorID.
func (h *StatusHub) Subscribers(doorID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[doorID])
}
