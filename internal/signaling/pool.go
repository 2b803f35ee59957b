package signaling

import (
	"slices"
	"time"
)

// waiter is a client sitting in the waiting pool.
type waiter struct {
	ID        ClientID
	Interests []string
	Since     time.Time
}

// WaitingPool holds unpaired clients in insertion order. The front of the
// pool is the longest-waiting client. It is not safe for concurrent use;
// the Matchmaker owns it.
type WaitingPool struct {
	entries []waiter
}

func (p *WaitingPool) Len() int {
	return len(p.entries)
}

// IDs lists waiting clients from front to back.
func (p *WaitingPool) IDs() []ClientID {
	ids := make([]ClientID, len(p.entries))
	for i, w := range p.entries {
		ids[i] = w.ID
	}
	return ids
}

func (p *WaitingPool) index(id ClientID) int {
	return slices.IndexFunc(p.entries, func(w waiter) bool { return w.ID == id })
}

func (p *WaitingPool) Contains(id ClientID) bool {
	return p.index(id) >= 0
}

// PushBack appends w at the back of the line.
func (p *WaitingPool) PushBack(w waiter) {
	p.entries = append(p.entries, w)
}

// PushFront puts w at the head so it is rematched first.
func (p *WaitingPool) PushFront(w waiter) {
	p.entries = slices.Insert(p.entries, 0, w)
}

// Insert places w at position i, clamped to the pool bounds.
func (p *WaitingPool) Insert(i int, w waiter) {
	i = max(0, min(i, len(p.entries)))
	p.entries = slices.Insert(p.entries, i, w)
}

// Remove drops id from the pool and reports where it was, or -1.
func (p *WaitingPool) Remove(id ClientID) (waiter, int) {
	i := p.index(id)
	if i < 0 {
		return waiter{}, -1
	}
	w := p.entries[i]
	p.entries = slices.Delete(p.entries, i, i+1)
	return w, i
}

// Take removes and returns the best partner for a requester with the given
// interests. Candidates are scanned front to back so the first maximum is
// the longest-waiting among equals.
func (p *WaitingPool) Take(interests []string, policy MatchPolicy) (waiter, bool) {
	if len(p.entries) == 0 {
		return waiter{}, false
	}

	best, bestScore := 0, -1
	for i, w := range p.entries {
		score := policy.Score(w.Interests, interests)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	w := p.entries[best]
	p.entries = slices.Delete(p.entries, best, best+1)
	return w, true
}
