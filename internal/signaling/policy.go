package signaling

import (
	"fmt"

	"github.com/BioHazard786/warpchat/internal/chat"
)

// MatchPolicy scores how well a waiting client suits a requester. The pool
// pairs the requester with the highest score; ties go to whoever has waited
// longest.
type MatchPolicy interface {
	Name() string
	Score(waiting, requester []string) int
}

var (
	// PolicyOverlap prefers any waiting client sharing at least one tag.
	PolicyOverlap MatchPolicy = overlapPolicy{}

	// PolicyMostOverlap prefers the waiting client sharing the most tags.
	PolicyMostOverlap MatchPolicy = mostOverlapPolicy{}

	// PolicyFIFO ignores interests entirely.
	PolicyFIFO MatchPolicy = fifoPolicy{}
)

// ParsePolicy resolves a policy by name. The empty name means PolicyOverlap.
func ParsePolicy(name string) (MatchPolicy, error) {
	switch name {
	case "", PolicyOverlap.Name():
		return PolicyOverlap, nil
	case PolicyMostOverlap.Name():
		return PolicyMostOverlap, nil
	case PolicyFIFO.Name():
		return PolicyFIFO, nil
	}
	return nil, fmt.Errorf("unknown match policy %q", name)
}

type overlapPolicy struct{}

func (overlapPolicy) Name() string { return "overlap" }

func (overlapPolicy) Score(waiting, requester []string) int {
	if chat.OverlapCount(requester, waiting) > 0 {
		return 1
	}
	return 0
}

type mostOverlapPolicy struct{}

func (mostOverlapPolicy) Name() string { return "most-overlap" }

func (mostOverlapPolicy) Score(waiting, requester []string) int {
	return chat.OverlapCount(requester, waiting)
}

type fifoPolicy struct{}

func (fifoPolicy) Name() string { return "fifo" }

func (fifoPolicy) Score([]string, []string) int { return 0 }
