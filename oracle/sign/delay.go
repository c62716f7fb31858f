package sign

import (
	"sort"
	"strings"
	"time"
)

// DefaultDelayStep is the broadcast delay between two consecutive ranks
const DefaultDelayStep = 30 * time.Second

// Rank orders own among the peer signatures by their content.
// The combined set is de-duplicated and sorted lexicographically, so every
// oracle computes the same ranking whatever order the signatures arrived in.
// present is false when own is not part of peers; rank is then one past
// the last peer and never 0, so an unacknowledged oracle does not broadcast
// first even when no peer has signed.
func Rank(own string, peers []string) (rank int, present bool) {
	own = normalize(own)

	set := make(map[string]struct{}, len(peers)+1)
	for _, p := range peers {
		if p = normalize(p); p != "" {
			set[p] = struct{}{}
		}
	}

	if _, ok := set[own]; !ok || own == "" {
		return max(len(set), 1), false
	}

	sorted := make([]string, 0, len(set))
	for s := range set {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)

	return sort.SearchStrings(sorted, own), true
}

// GetDelay returns how long this oracle waits before broadcasting.
// Rank 0 broadcasts immediately; an oracle whose own signature is not yet
// in the peer set waits longer than every acknowledged oracle.
func GetDelay(own string, peers []string, step time.Duration) time.Duration {
	if step < 0 {
		step = 0
	}

	rank, _ := Rank(own, peers)

	return time.Duration(rank) * step
}

func normalize(sig string) string {
	sig = strings.TrimSpace(sig)
	sig = strings.TrimPrefix(strings.TrimPrefix(sig, "0x"), "0X")

	return strings.ToLower(sig)
}
