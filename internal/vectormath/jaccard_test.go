package vectormath

import "testing"

func TestJaccardIdenticalSets(t *testing.T) {
	a := NewFileSet([]string{"a.go", "b.go"})
	if got := Jaccard(a, a); got != 1.0 {
		t.Fatalf("Jaccard(A, A) = %v, want 1.0", got)
	}
}

func TestJaccardBothEmpty(t *testing.T) {
	empty := NewFileSet(nil)
	if got := Jaccard(empty, empty); got != 1.0 {
		t.Fatalf("Jaccard(empty, empty) = %v, want 1.0", got)
	}
}

func TestJaccardOneEmpty(t *testing.T) {
	empty := NewFileSet(nil)
	nonEmpty := NewFileSet([]string{"a.go"})
	if got := Jaccard(empty, nonEmpty); got != 0.0 {
		t.Fatalf("Jaccard(empty, nonEmpty) = %v, want 0.0", got)
	}
	if got := Jaccard(nonEmpty, empty); got != 0.0 {
		t.Fatalf("Jaccard(nonEmpty, empty) = %v, want 0.0", got)
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := NewFileSet([]string{"a.go", "b.go", "c.go"})
	b := NewFileSet([]string{"b.go", "c.go", "d.go"})
	ab := Jaccard(a, b)
	ba := Jaccard(b, a)
	if ab != ba {
		t.Fatalf("Jaccard not symmetric: Jaccard(a,b)=%v Jaccard(b,a)=%v", ab, ba)
	}
	// |intersection|=2 {b,c}, |union|=4 {a,b,c,d} -> 0.5
	if ab != 0.5 {
		t.Fatalf("Jaccard(a,b) = %v, want 0.5", ab)
	}
}

func TestJaccardDisjoint(t *testing.T) {
	a := NewFileSet([]string{"a.go"})
	b := NewFileSet([]string{"b.go"})
	if got := Jaccard(a, b); got != 0.0 {
		t.Fatalf("Jaccard(disjoint) = %v, want 0.0", got)
	}
}
