package tcp

import "testing"

func TestWrappingLT(t *testing.T) {
	cases := []struct {
		a, b Value
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{0, 0, false},
		{^Value(0), 0, true},          // just before wraps to just after 0
		{0, ^Value(0), false},
		{1 << 31, 0, false}, // exactly half the circle: not "before" either way
		{0, 1 << 31, false},
	}
	for _, c := range cases {
		if got := WrappingLT(c.a, c.b); got != c.want {
			t.Errorf("WrappingLT(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestIsBetweenWrapping(t *testing.T) {
	if !IsBetweenWrapping(10, 11, 20) {
		t.Error("11 should be between 10 and 20")
	}
	if IsBetweenWrapping(10, 10, 20) {
		t.Error("interval is open: 10 is not between 10 and 20")
	}
	if IsBetweenWrapping(10, 20, 20) {
		t.Error("interval is open: 20 is not between 10 and 20")
	}
	// wraps around 2**32
	if !IsBetweenWrapping(^Value(0)-5, ^Value(0), 5) {
		t.Error("expected wraparound value to be between")
	}
}

func TestSegmentAcceptable(t *testing.T) {
	const rcvNXT Value = 1000
	cases := []struct {
		name string
		s    Value
		l    Size
		w    Size
		want bool
	}{
		{"empty-zero-window-at-nxt", rcvNXT, 0, 0, true},
		{"empty-zero-window-off-nxt", rcvNXT + 1, 0, 0, false},
		{"empty-open-window-in-range", rcvNXT, 0, 100, true},
		{"empty-open-window-out-of-range", rcvNXT + 200, 0, 100, false},
		{"data-zero-window", rcvNXT, 10, 0, false},
		{"data-in-window", rcvNXT, 10, 100, true},
		{"data-starts-before-ends-inside", rcvNXT - 5, 10, 100, true},
		{"data-entirely-past-window", rcvNXT + 200, 10, 100, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := segmentAcceptable(c.s, c.l, rcvNXT, c.w); got != c.want {
				t.Errorf("segmentAcceptable(%d, %d, %d, %d) = %v, want %v", c.s, c.l, rcvNXT, c.w, got, c.want)
			}
		})
	}
}

func TestAddSub(t *testing.T) {
	v := Add(^Value(0), 1)
	if v != 0 {
		t.Errorf("Add wraparound: got %d, want 0", v)
	}
	if got := Sub(5, 10); got != Size(0xFFFFFFFB) {
		t.Errorf("Sub should wrap like unsigned subtraction: got %d", got)
	}
}
