package seed

import "testing"

func TestStatusSequence_Default(t *testing.T) {
	counts := map[string]int{}
	for _, s := range statusSequence(10) {
		counts[string(s)]++
	}
	if counts["pending"] != 4 || counts["under_review"] != 2 || counts["approved"] != 3 || counts["rejected"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestStatusSequence_Rounding(t *testing.T) {
	seq := statusSequence(7)
	if len(seq) != 7 {
		t.Fatalf("length mismatch: got %d", len(seq))
	}
	if len(statusSequence(0)) != 0 {
		t.Fatalf("expected empty sequence")
	}
}
