package ring

import "testing"

func TestCapacityRounding(t *testing.T) {
	cases := []struct{ sz, want int }{
		{-3, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{7, 8},
		{8, 8},
		{9, 16},
		{100, 128},
		{1024, 1024},
		{1025, 2048},
	}
	for _, c := range cases {
		b := New[int](c.sz)
		if b.Capacity() != c.want {
			t.Errorf("New(%d).Capacity() = %d, want %d", c.sz, b.Capacity(), c.want)
		}
	}
}

func TestFIFOWithinCapacity(t *testing.T) {
	b := New[int](8)
	for i := 0; i < 8; i++ {
		b.PushBack(i)
	}
	if b.Dropped() != 0 {
		t.Fatalf("Dropped() = %d after filling to capacity, want 0", b.Dropped())
	}
	if !b.Full() {
		t.Fatalf("Full() = false after %d pushes into capacity %d", 8, b.Capacity())
	}
	for i := 0; i < 8; i++ {
		if b.Empty() {
			t.Fatalf("buffer empty after %d reads, want 8 readable", i)
		}
		var v int
		b.Read(&v)
		if v != i {
			t.Errorf("read #%d = %d, want %d", i, v, i)
		}
	}
	if !b.Empty() {
		t.Errorf("Count() = %d after draining, want 0", b.Count())
	}
}

func TestOverfillDropsOldest(t *testing.T) {
	const k = 3
	b := New[int](4)
	cap := b.Capacity()
	for i := 0; i < cap+k; i++ {
		b.PushBack(i)
	}
	if b.Count() != cap {
		t.Errorf("Count() = %d, want %d", b.Count(), cap)
	}
	if b.Dropped() != k {
		t.Errorf("Dropped() = %d, want %d", b.Dropped(), k)
	}
	for i := 0; i < cap; i++ {
		var v int
		b.Read(&v)
		if want := k + i; v != want {
			t.Errorf("read #%d = %d, want %d", i, v, want)
		}
	}
}

func TestWriteRefusesWhenFull(t *testing.T) {
	b := New[int](4)
	for i := 0; i < b.Capacity(); i++ {
		if n := b.Write(i); n != i+1 {
			t.Fatalf("Write(%d) = %d, want %d", i, n, i+1)
		}
	}
	if n := b.Write(99); n != 0 {
		t.Errorf("Write on full buffer = %d, want 0", n)
	}
	if b.Dropped() != 0 {
		t.Errorf("Dropped() = %d after refused Write, want 0", b.Dropped())
	}
	for i := 0; i < b.Capacity(); i++ {
		var v int
		b.Read(&v)
		if v != i {
			t.Errorf("read #%d = %d, want %d (refused Write altered contents)", i, v, i)
		}
	}
}

func TestReadEmptyLeavesDest(t *testing.T) {
	b := New[int](4)
	v := 42
	if n := b.Read(&v); n != 0 {
		t.Errorf("Read on empty = %d, want 0", n)
	}
	if v != 42 {
		t.Errorf("Read on empty buffer wrote %d into dest", v)
	}
}

func TestPopFrontOnEmpty(t *testing.T) {
	b := New[int](2)
	b.PopFront()
	if b.Count() != 0 {
		t.Errorf("Count() = %d after PopFront on empty, want 0", b.Count())
	}
	b.PushBack(7)
	b.PopFront()
	b.PopFront()
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}

func TestFrontBack(t *testing.T) {
	b := New[string](4)
	b.PushBack("a")
	if b.Front() != "a" || b.Back() != "a" {
		t.Errorf("Front()/Back() = %q/%q after one push, want a/a", b.Front(), b.Back())
	}
	b.PushBack("b")
	b.PushBack("c")
	if b.Front() != "a" {
		t.Errorf("Front() = %q, want a", b.Front())
	}
	if b.Back() != "c" {
		t.Errorf("Back() = %q, want c", b.Back())
	}
	b.PopFront()
	if b.Front() != "b" {
		t.Errorf("Front() = %q after PopFront, want b", b.Front())
	}
}

func TestSpaces(t *testing.T) {
	b := New[int](8)
	if b.WriteSpace() != 8 || b.ReadSpace() != 0 {
		t.Fatalf("fresh buffer spaces = %d/%d, want 8/0", b.WriteSpace(), b.ReadSpace())
	}
	for i := 0; i < 5; i++ {
		b.PushBack(i)
	}
	if b.WriteSpace() != 3 {
		t.Errorf("WriteSpace() = %d, want 3", b.WriteSpace())
	}
	if b.ReadSpace() != 5 {
		t.Errorf("ReadSpace() = %d, want 5", b.ReadSpace())
	}
	var v int
	b.Read(&v)
	b.Read(&v)
	if b.WriteSpace() != 5 || b.ReadSpace() != 3 {
		t.Errorf("spaces after two reads = %d/%d, want 5/3", b.WriteSpace(), b.ReadSpace())
	}
}

func TestClearZeroesEverything(t *testing.T) {
	b := New[int](4)
	for i := 0; i < 10; i++ {
		b.PushBack(i)
	}
	if b.Dropped() == 0 {
		t.Fatal("expected drops before Clear")
	}
	b.Clear()
	if b.Count() != 0 {
		t.Errorf("Count() = %d after Clear, want 0", b.Count())
	}
	if b.Dropped() != 0 {
		t.Errorf("Dropped() = %d after Clear, want 0", b.Dropped())
	}
	if b.Front() != 0 {
		t.Errorf("Front() = %d after Clear, want zero value", b.Front())
	}
	b.PushBack(5)
	var v int
	if n := b.Read(&v); n != 0 || v != 5 {
		t.Errorf("Read after Clear = (%d, %d), want (0, 5)", n, v)
	}
}

func TestResetKeepsCounters(t *testing.T) {
	b := New[int](4)
	b.PushBack(1)
	b.PushBack(2)
	b.Reset()
	if b.Count() != 2 {
		t.Errorf("Count() = %d after Reset, want 2 (Reset zeroes cursors only)", b.Count())
	}
}

// The payload is generic; make sure struct elements round-trip.
func TestStructPayload(t *testing.T) {
	type stamped struct {
		tick int64
		data [3]byte
	}
	b := New[stamped](4)
	in := stamped{tick: 960, data: [3]byte{0x90, 60, 100}}
	b.PushBack(in)
	var out stamped
	b.Read(&out)
	if out != in {
		t.Errorf("round-trip = %+v, want %+v", out, in)
	}
}
