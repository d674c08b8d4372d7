package repository

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"testing"
)

func TestRanking_OrderAndTies(t *testing.T) {
	k := newRanking()
	k.set("c", 10)
	k.set("a", 12.5)
	k.set("b", 10)
	k.set("d", 3)

	top, ranks := k.top(10)
	if len(top) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(top))
	}
	wantKeys := []string{"a", "b", "c", "d"}
	wantRanks := []int{1, 2, 2, 4}
	for i := range top {
		if top[i].key != wantKeys[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantKeys[i], top[i].key)
		}
		if ranks[i] != wantRanks[i] {
			t.Errorf("position %d: expected rank %d, got %d", i, wantRanks[i], ranks[i])
		}
	}

	for i, key := range wantKeys {
		rank, _, ok := k.rank(key)
		if !ok || rank != wantRanks[i] {
			t.Errorf("rank(%s) = %d, %v; want %d", key, rank, ok, wantRanks[i])
		}
	}
	if _, _, ok := k.rank("missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestRanking_Move(t *testing.T) {
	k := newRanking()
	k.set("a", 5)
	k.set("b", 7)
	k.set("a", 9)
	k.set("a", 9)

	if k.len() != 2 {
		t.Fatalf("expected 2 keys, got %d", k.len())
	}
	if nsize(k.root) != 2 {
		t.Fatalf("expected tree size 2, got %d", nsize(k.root))
	}
	rank, rating, _ := k.rank("a")
	if rank != 1 || rating != 9 {
		t.Errorf("expected a at rank 1 with 9, got %d with %f", rank, rating)
	}

	k.set("a", 1)
	rank, _, _ = k.rank("a")
	if rank != 2 {
		t.Errorf("expected a to drop to rank 2, got %d", rank)
	}
}

func TestRanking_TopLimit(t *testing.T) {
	k := newRanking()
	for i := range 50 {
		k.set(fmt.Sprintf("k%02d", i), float64(i))
	}
	top, ranks := k.top(5)
	if len(top) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(top))
	}
	if top[0].key != "k49" || ranks[4] != 5 {
		t.Errorf("unexpected head %s or tail rank %d", top[0].key, ranks[4])
	}
}

func TestRanking_MatchesSort(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	k := newRanking()
	want := map[string]float64{}
	for range 2000 {
		key := fmt.Sprintf("k%d", r.IntN(300))
		v := math.Round(r.Float64()*40*100) / 100
		k.set(key, v)
		want[key] = v
	}

	keys := make([]string, 0, len(want))
	for key := range want {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if want[keys[i]] != want[keys[j]] {
			return want[keys[i]] > want[keys[j]]
		}
		return keys[i] < keys[j]
	})

	top, _ := k.top(len(keys))
	if len(top) != len(keys) {
		t.Fatalf("expected %d entries, got %d", len(keys), len(top))
	}
	for i := range keys {
		if top[i].key != keys[i] {
			t.Fatalf("position %d: expected %s, got %s", i, keys[i], top[i].key)
		}
	}
}

func TestToFixedPoint(t *testing.T) {
	if toFixedPoint(math.NaN()) != 0 {
		t.Error("NaN should map to 0")
	}
	if toFixedPoint(math.Inf(1)) != math.MaxInt64 {
		t.Error("+Inf should saturate")
	}
	if toFixedPoint(math.Inf(-1)) != math.MinInt64 {
		t.Error("-Inf should saturate")
	}
	if got := toFixedPoint(12.345).float(); math.Abs(got-12.345) > 1e-9 {
		t.Errorf("round trip lost precision: %f", got)
	}
}
