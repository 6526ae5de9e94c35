package interval

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func iv(from, to int, kind Kind) Interval {
	return Interval{Start: at(from), End: at(to), Kind: kind}
}

func TestNormalizeMergesTouchingSameKind(t *testing.T) {
	got := Normalize([]Interval{
		iv(10, 12, Available),
		iv(8, 10, Available),
		iv(11, 13, Available),
		iv(9, 11, Blocked),
		iv(14, 14, Available),
	})
	assert.Equal(t, []Interval{
		iv(8, 13, Available),
		iv(9, 11, Blocked),
	}, got)
}

func TestNormalizeKeepsEarliestSource(t *testing.T) {
	a := iv(8, 10, Override)
	a.Source = "o1"
	b := iv(10, 12, Override)
	b.Source = "o2"
	got := Normalize([]Interval{b, a})
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].Source)
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize([]Interval{iv(5, 5, Available), iv(6, 4, Available)}))
}

func TestNormalizeIdempotentOnRandomSets(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []Kind{Available, Override, Blocked, Booked}

	for round := 0; round < 500; round++ {
		n := rng.Intn(20)
		xs := make([]Interval, 0, n)
		for i := 0; i < n; i++ {
			start := rng.Intn(48)
			xs = append(xs, iv(start, start+rng.Intn(6), kinds[rng.Intn(len(kinds))]))
		}

		once := Normalize(xs)
		assert.Equal(t, once, Normalize(once), "round %d", round)

		for i := range once {
			for j := i + 1; j < len(once); j++ {
				if once[i].Kind == once[j].Kind {
					assert.False(t, Overlaps(once[i], once[j]), "round %d: %v overlaps %v", round, once[i], once[j])
				}
			}
		}
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	assert.True(t, Overlaps(iv(8, 10, Available), iv(9, 11, Booked)))
	assert.False(t, Overlaps(iv(8, 10, Available), iv(10, 11, Booked)))
	assert.False(t, Overlaps(iv(8, 10, Available), iv(9, 9, Booked)))
}

func TestSubtract(t *testing.T) {
	base := []Interval{iv(8, 18, Available)}
	got := Subtract(base, []Interval{iv(10, 11, Blocked), iv(12, 13, Override), iv(17, 20, Blocked)})
	assert.Equal(t, []Interval{
		iv(8, 10, Available),
		iv(11, 12, Available),
		iv(13, 17, Available),
	}, got)

	assert.Nil(t, Subtract(base, []Interval{iv(0, 24, Blocked)}))
	assert.Equal(t, base, Subtract(base, nil))
	assert.Nil(t, Subtract(nil, base))
}

func TestUnion(t *testing.T) {
	got := Union([]Interval{iv(8, 10, Available)}, []Interval{iv(10, 12, Available), iv(9, 13, Override)})
	assert.Equal(t, []Interval{iv(8, 12, Available), iv(9, 13, Override)}, got)
}

func TestContainsIgnoresKind(t *testing.T) {
	set := []Interval{iv(8, 10, Available), iv(10, 12, Override)}
	assert.True(t, Contains(set, iv(9, 11, Booked)))
	assert.True(t, Contains(set, iv(8, 12, Booked)))
	assert.False(t, Contains(set, iv(7, 9, Booked)))
	assert.False(t, Contains(set, iv(9, 9, Booked)))
	assert.False(t, Contains(nil, iv(9, 10, Booked)))
}

func TestClipAndSplitAt(t *testing.T) {
	clipped := Clip([]Interval{iv(-2, 3, Available), iv(30, 40, Available), iv(5, 6, Blocked)}, iv(0, 24, ""))
	assert.Equal(t, []Interval{iv(0, 3, Available), iv(5, 6, Blocked)}, clipped)

	split := SplitAt([]Interval{iv(22, 50, Available)}, []time.Time{at(0), at(24), at(48)})
	assert.Equal(t, []Interval{iv(22, 24, Available), iv(24, 48, Available), iv(48, 50, Available)}, split)
}

func TestStartTimes(t *testing.T) {
	// 09:00-10:00 free, 09:15-09:45 busy.
	free := []Interval{iv(9, 10, Available)}
	busy := []Interval{{Start: at(9).Add(15 * time.Minute), End: at(9).Add(45 * time.Minute), Kind: Booked}}

	starts := StartTimes(free, busy, 15*time.Minute, 15*time.Minute, t0)
	require.Len(t, starts, 2)
	assert.Equal(t, at(9), starts[0])
	assert.Equal(t, at(9).Add(45*time.Minute), starts[1])
}

func TestStartTimesSkipsPast(t *testing.T) {
	now := at(9).Add(31 * time.Minute)
	starts := StartTimes([]Interval{iv(9, 10, Available)}, nil, 15*time.Minute, 15*time.Minute, now)
	require.Len(t, starts, 1)
	assert.Equal(t, at(9).Add(45*time.Minute), starts[0])
}
