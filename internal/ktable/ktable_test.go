package ktable

import (
	"sync"
	"testing"
)

func TestSetGetDel(t *testing.T) {
	tb := NewIntTable[int, string](4)
	if !tb.Set(1, "one") {
		t.Fatal("expected first Set to succeed")
	}
	if tb.Set(1, "uno") {
		t.Fatal("expected Set of existing key to report false")
	}
	v, ok := tb.Get(1)
	if !ok || v != "one" {
		t.Fatalf("got %q, %v", v, ok)
	}
	if !tb.Del(1) {
		t.Fatal("expected Del to report true for a present key")
	}
	if _, ok := tb.Get(1); ok {
		t.Fatal("expected Get to miss after Del")
	}
}

func TestLenTracksLiveEntries(t *testing.T) {
	tb := NewIntTable[int, int](4)
	for i := 0; i < 10; i++ {
		tb.Set(i, i*i)
	}
	if tb.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", tb.Len())
	}
	tb.Del(3)
	if tb.Len() != 9 {
		t.Fatalf("expected 9 entries after Del, got %d", tb.Len())
	}
}

func TestConcurrentSetDistinctKeys(t *testing.T) {
	tb := NewIntTable[int, int](8)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tb.Set(i, i)
		}(i)
	}
	wg.Wait()
	if tb.Len() != 200 {
		t.Fatalf("expected 200 entries, got %d", tb.Len())
	}
}

func TestEachVisitsAllEntries(t *testing.T) {
	tb := NewIntTable[int, int](4)
	want := map[int]int{}
	for i := 0; i < 20; i++ {
		tb.Set(i, i*2)
		want[i] = i * 2
	}
	got := map[int]int{}
	tb.Each(func(k, v int) bool {
		got[k] = v
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("key %d: got %d want %d", k, got[k], v)
		}
	}
}
