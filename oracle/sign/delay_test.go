package sign

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const step = time.Second

func TestGetDelay(t *testing.T) {
	testCases := []struct {
		name  string
		own   string
		peers []string
		delay time.Duration
	}{
		{"own ranks first", "s0", []string{"s1", "s2", "s0"}, 0},
		{"own ranks second", "s1", []string{"s2", "s0", "s1"}, step},
		{"own ranks last", "s2", []string{"s2", "s1", "s0"}, 2 * step},
		{"single signature", "s0", []string{"s0"}, 0},
		{"duplicates collapse", "s1", []string{"s0", "s0", "s1", "s1"}, step},
		{"hex prefix and case ignored", "0xAB", []string{"ab", "0x01"}, step},
		{"own missing", "s0", []string{"s1", "s2"}, 2 * step},
		{"own missing from empty set", "s0", nil, step},
		{"empty own", "", []string{"s1"}, step},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.delay, GetDelay(tc.own, tc.peers, step))
		})
	}
}

func TestRankReportsPresence(t *testing.T) {
	rank, present := Rank("s0", []string{"s1", "s2"})
	require.False(t, present)
	require.Equal(t, 2, rank)

	rank, present = Rank("s0", []string{"s1", "s0"})
	require.True(t, present)
	require.Zero(t, rank)
}

// An oracle that sorts first but whose signature the contract has not
// recorded yet waits behind every acknowledged signer until it is.
func TestUnacknowledgedOwnSortingFirst(t *testing.T) {
	peers := []string{"s1", "s2"}

	rank, present := Rank("s0", peers)
	require.False(t, present)
	require.Equal(t, 2, rank)
	require.Equal(t, 2*step, GetDelay("s0", peers, step))

	acknowledged := append(peers, "s0")
	rank, present = Rank("s0", acknowledged)
	require.True(t, present)
	require.Zero(t, rank)
	require.Zero(t, GetDelay("s0", acknowledged, step))
}

func TestNegativeStepIsClamped(t *testing.T) {
	require.Zero(t, GetDelay("s1", []string{"s0", "s1"}, -step))
}

func hexSignatures(xs []uint64) []string {
	sigs := make([]string, 0, len(xs))
	for _, x := range xs {
		sigs = append(sigs, fmt.Sprintf("%016x", x))
	}
	return sigs
}

func unique(sigs []string) []string {
	set := make(map[string]struct{})
	out := make([]string, 0, len(sigs))
	for _, s := range sigs {
		if _, ok := set[s]; !ok {
			set[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func TestDelayProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("delay is independent of signature order", prop.ForAll(
		func(xs []uint64, pick int, seed int64) bool {
			sigs := hexSignatures(xs)
			own := sigs[pick%len(sigs)]

			shuffled := append([]string(nil), sigs...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			return GetDelay(own, sigs, step) == GetDelay(own, shuffled, step)
		},
		gen.SliceOf(gen.UInt64()).SuchThat(func(xs []uint64) bool { return len(xs) > 0 }),
		gen.IntRange(0, 1<<16),
		gen.Int64(),
	))

	properties.Property("delay grows with lexicographic rank", prop.ForAll(
		func(xs []uint64) bool {
			sigs := unique(hexSignatures(xs))
			sort.Strings(sigs)

			if GetDelay(sigs[0], sigs, step) != 0 {
				return false
			}

			for i := 1; i < len(sigs); i++ {
				if GetDelay(sigs[i-1], sigs, step) >= GetDelay(sigs[i], sigs, step) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64()).SuchThat(func(xs []uint64) bool { return len(xs) > 0 }),
	))

	properties.Property("missing own signature waits longest", prop.ForAll(
		func(xs []uint64) bool {
			sigs := unique(hexSignatures(xs))
			missing := GetDelay("zz-not-a-peer", sigs, step)
			if missing == 0 {
				return false
			}

			if missing != time.Duration(max(len(sigs), 1))*step {
				return false
			}

			for _, s := range sigs {
				if GetDelay(s, sigs, step) >= missing {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64()),
	))

	properties.TestingRun(t)
}
