package chunking

import "testing"

func TestSize_Fixed(t *testing.T) {
	if got := Size(Fixed, 200, 1050, 5); got != 200 {
		t.Fatalf("fixed: got %d, want 200", got)
	}
}

func TestSize_Adaptive(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{50, 50},
		{300, 200},
		{1500, 400},
		{5000, 1000},
	}
	for _, c := range cases {
		if got := Size(Adaptive, 200, c.n, 0); got != c.want {
			t.Errorf("adaptive(n=%d): got %d, want %d", c.n, got, c.want)
		}
	}
}

func TestSize_QueryBased(t *testing.T) {
	if got := Size(QueryBased, 200, 10000, 50); got != 200 {
		t.Fatalf("query_based below base: got %d, want 200 (clamped to base)", got)
	}
	if got := Size(QueryBased, 200, 10000, 6000); got != 500 {
		t.Fatalf("query_based above cap: got %d, want 500", got)
	}
	if got := Size(QueryBased, 200, 10000, 3000); got != 300 {
		t.Fatalf("query_based mid-range: got %d, want 300", got)
	}
}

func TestTotalChunks(t *testing.T) {
	if got := TotalChunks(1050, 200); got != 6 {
		t.Fatalf("got %d, want 6", got)
	}
	if got := TotalChunks(0, 200); got != 1 {
		t.Fatalf("empty result: got %d, want 1", got)
	}
}
