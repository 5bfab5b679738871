package experiment

import "testing"

func TestAssignStable(t *testing.T) {
	a := NewAssigner()
	b := NewAssigner()
	for id := int64(1); id <= 500; id++ {
		g := a.Assign(id)
		if g != a.Assign(id) || g != b.Assign(id) {
			t.Fatalf("user %d assigned inconsistently", id)
		}
	}
}

func TestAssignUsesAllGroups(t *testing.T) {
	a := NewAssigner("a", "b", "c")
	counts := map[string]int{}
	for id := int64(1); id <= 3000; id++ {
		counts[a.Assign(id)]++
	}
	for _, g := range []string{"a", "b", "c"} {
		if counts[g] < 700 {
			t.Errorf("group %s got %d of 3000", g, counts[g])
		}
	}
}

func TestSingleGroup(t *testing.T) {
	a := NewAssigner("only")
	if got := a.Assign(42); got != "only" {
		t.Fatalf("Assign = %q", got)
	}
	if got := NewAssigner().Groups(); len(got) != 2 || got[0] != Control || got[1] != Treatment {
		t.Fatalf("default groups = %v", got)
	}
}
