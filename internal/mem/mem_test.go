package mem

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	p := NewPhysmem(16)
	if got := p.CountFree(); got != 16 {
		t.Fatalf("CountFree = %d, want 16", got)
	}
	var pas []Pa_t
	for i := 0; i < 16; i++ {
		pas = append(pas, p.AllocFrame())
	}
	if got := p.CountFree(); got != 0 {
		t.Fatalf("CountFree after full alloc = %d, want 0", got)
	}
	if got := p.CountUsed(); got != 16 {
		t.Fatalf("CountUsed = %d, want 16", got)
	}
	for _, pa := range pas {
		if !p.IsPresent(pa) {
			t.Fatalf("frame %x should be present", pa)
		}
	}
	p.FreeFrame(pas[0])
	if p.IsPresent(pas[0]) {
		t.Fatalf("frame %x should no longer be present", pas[0])
	}
	if got := p.CountFree(); got != 1 {
		t.Fatalf("CountFree after one free = %d, want 1", got)
	}
	// lowest-free reuse: next alloc must reuse the freed frame.
	reused := p.AllocFrame()
	if reused != pas[0] {
		t.Fatalf("AllocFrame did not reuse lowest free frame: got %x want %x", reused, pas[0])
	}
}

func TestAllocFrameExhaustionPanics(t *testing.T) {
	p := NewPhysmem(1)
	p.AllocFrame()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on frame exhaustion")
		}
	}()
	p.AllocFrame()
}

func TestFreeFrameIsIdempotent(t *testing.T) {
	p := NewPhysmem(4)
	pa := p.AllocFrame()
	p.FreeFrame(pa)
	p.FreeFrame(pa) // must not panic
	if got := p.CountFree(); got != 4 {
		t.Fatalf("CountFree = %d, want 4", got)
	}
}

func TestDmapWriteIsVisibleThroughReload(t *testing.T) {
	p := NewPhysmem(4)
	pa := p.AllocFrame()
	view := p.Dmap(pa)
	copy(view, []byte("hello"))
	again := p.Dmap(pa)
	if string(again[:5]) != "hello" {
		t.Fatalf("Dmap did not persist write: got %q", again[:5])
	}
}

func TestOomChNotifiedBeforeExhaustionPanic(t *testing.T) {
	p := NewPhysmem(1)
	p.OomCh = make(chan struct{}, 1)
	p.AllocFrame()
	defer func() {
		recover()
		select {
		case <-p.OomCh:
		default:
			t.Fatal("expected OomCh to be notified before the exhaustion panic")
		}
	}()
	p.AllocFrame()
}

func TestFreeFrameZeroesContents(t *testing.T) {
	p := NewPhysmem(2)
	pa := p.AllocFrame()
	copy(p.Dmap(pa), []byte("secret"))
	p.FreeFrame(pa)
	pa2 := p.AllocFrame()
	if pa2 != pa {
		t.Fatalf("expected frame reuse")
	}
	view := p.Dmap(pa2)
	for i, b := range view[:6] {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, b)
		}
	}
}
