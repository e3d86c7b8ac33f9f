package aggregate

import "testing"

func TestIsBot(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"SineBot", true},
		{"BOTarate", true},
		{"RoBotics", true},
		{"Doc James", false},
		{"Botany expert", true}, // substring match is deliberately coarse
		{"", false},
	}
	for _, tt := range tests {
		if got := IsBot(tt.name); got != tt.want {
			t.Errorf("IsBot(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsAnonymous(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"192.168.1.17", true},
		{"2001:db8::ff00:42:8329", true},
		{"2001:DB8:0:0:0:0:0:1", true},
		{"Doc James", false},
		{"10.0.0", false},      // not a complete IPv4
		{"300.1.1.1", false},   // octet out of range
		{"1.2.3.4.5", false},   // too many octets
		{"User:1.2.3.4", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAnonymous(tt.name); got != tt.want {
			t.Errorf("IsAnonymous(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAccumulatorSumsAcrossBatches(t *testing.T) {
	a := NewAccumulator()
	a.Add("Doc James", 10)
	a.Add("Ozzie10aaaa", 5)
	a.Add("Doc James", 7) // same editor, later batch

	if got := a.Count("Doc James"); got != 17 {
		t.Errorf("Doc James count = %d, want 17", got)
	}
	if a.Len() != 2 {
		t.Errorf("Len = %d, want 2", a.Len())
	}
}

func TestAccumulatorFilters(t *testing.T) {
	a := NewAccumulator()
	a.Add("SineBot", 500)
	a.Add("192.168.1.17", 3)
	a.Add("2001:db8::1", 2)
	a.Add("Doc James", 10)

	if a.Len() != 1 {
		t.Errorf("Len = %d, want 1 (filtered identities kept)", a.Len())
	}
	if got := a.Count("SineBot"); got != 0 {
		t.Errorf("bot count = %d, want 0", got)
	}
	ex := a.Excluded()
	if ex.Bots != 1 || ex.Anonymous != 2 {
		t.Errorf("excluded = %+v, want 1 bot / 2 anonymous", ex)
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	left := NewAccumulator()
	left.Add("A", 1)
	left.Add("B", 2)

	right := NewAccumulator()
	right.Add("B", 3)
	right.Add("C", 4)

	ab := NewAccumulator()
	ab.Merge(left)
	ab.Merge(right)

	ba := NewAccumulator()
	ba.Merge(right)
	ba.Merge(left)

	for _, name := range []string{"A", "B", "C"} {
		if ab.Count(name) != ba.Count(name) {
			t.Errorf("%s: %d vs %d, merge must commute", name, ab.Count(name), ba.Count(name))
		}
	}
	if ab.Count("B") != 5 {
		t.Errorf("B = %d, want 5", ab.Count("B"))
	}
}

func TestSortedOrder(t *testing.T) {
	a := NewAccumulator()
	a.Add("Zed", 5)
	a.Add("Anna", 5)
	a.Add("Mia", 9)

	got := a.Sorted()
	want := []Entry{{"Mia", 9}, {"Anna", 5}, {"Zed", 5}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFromEntriesRoundTrip(t *testing.T) {
	a := NewAccumulator()
	a.Add("Doc James", 17)
	a.Add("Ozzie10aaaa", 5)

	b := FromEntries(a.Sorted())
	if b.Count("Doc James") != 17 || b.Count("Ozzie10aaaa") != 5 {
		t.Errorf("round trip lost counts: %+v", b.Sorted())
	}
}
