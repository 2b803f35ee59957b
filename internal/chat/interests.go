package chat

import "strings"

// SharedInterests returns the tags present in both lists. The result keeps
// the order of initiator and contains each tag once. Matching is exact and
// case-sensitive.
func SharedInterests(initiator, other []string) []string {
	if len(initiator) == 0 || len(other) == 0 {
		return nil
	}

	theirs := make(map[string]struct{}, len(other))
	for _, tag := range other {
		theirs[tag] = struct{}{}
	}

	var shared []string
	seen := make(map[string]struct{}, len(initiator))
	for _, tag := range initiator {
		if _, ok := theirs[tag]; !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		shared = append(shared, tag)
	}
	return shared
}

// OverlapCount is the number of distinct tags shared by a and b.
func OverlapCount(a, b []string) int {
	return len(SharedInterests(a, b))
}

// InterestSummary renders the shared-interest line shown once two strangers
// are paired: "You both like a, b and c." It is empty when nothing is shared.
func InterestSummary(shared []string) string {
	switch len(shared) {
	case 0:
		return ""
	case 1:
		return "You both like " + shared[0] + "."
	}

	last := shared[len(shared)-1]
	return "You both like " + strings.Join(shared[:len(shared)-1], ", ") + " and " + last + "."
}

// NormalizeInterests trims tags and drops empty ones, keeping order.
func NormalizeInterests(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
