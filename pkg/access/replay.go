package access

import (
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

// ReplayGuard remembers the commitments accepted at each door for a window.
// A proof whose commitment was already seen at the same door inside the
// window is a replay.
type ReplayGuard struct {
	// serializes check-and-record so two copies of one proof cannot both pass
	mu     sync.Mutex
	cache  *ccache.Cache[struct{}]
	window time.Duration
}

// NewReplayGuard keeps up to size commitments for window each.
func NewReplayGuard(size int64, window time.Duration) *ReplayGuard {
	return &ReplayGuard{
		cache:  ccache.New(ccache.Configure[struct{}]().MaxSize(size)),
		window: window,
	}
}

func replayKey(doorID, commitment string) string {
	return doorID + "/" + commitment
}

// Seen reports whether commitment was recorded at doorID and is still live.
func (g *ReplayGuard) Seen(doorID, commitment string) bool {
	item := g.cache.Get(replayKey(doorID, commitment))
	return item != nil && !item.Expired()
}

// Record marks commitment as used at doorID. It returns false, without
// changing anything, when the commitment was already live.
func (g *ReplayGuard) Record(doorID, commitment string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Seen(doorID, commitment) {
		return false
	}
	g.cache.Set(replayKey(doorID, commitment), struct{}{}, g.window)
	return true
}

// Stop releases the cache's background worker.
func (g *ReplayGuard) Stop() {
	g.cache.Stop()
}
