package d3

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestBoxInclude(t *testing.T) {
	b := EmptyBox()
	b = b.Include(r3.Vec{X: 1, Y: -2, Z: 3})
	b = b.Include(r3.Vec{X: -1, Y: 2, Z: 0})
	want := Box{Min: r3.Vec{X: -1, Y: -2, Z: 0}, Max: r3.Vec{X: 1, Y: 2, Z: 3}}
	if !b.Equals(want, 1e-12) {
		t.Fatalf("got %+v, want %+v", b, want)
	}
	if got := b.Size(); !EqualWithin(got, r3.Vec{X: 2, Y: 4, Z: 3}, 1e-12) {
		t.Errorf("size %+v", got)
	}
	if got := b.Center(); !EqualWithin(got, r3.Vec{X: 0, Y: 0, Z: 1.5}, 1e-12) {
		t.Errorf("center %+v", got)
	}
}

func TestBoxContains(t *testing.T) {
	b := NewBox(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2})
	if !b.Contains(r3.Vec{X: 1, Y: -1, Z: 0.5}) {
		t.Error("corner-adjacent point should be inside")
	}
	if b.Contains(r3.Vec{X: 1.001}) {
		t.Error("outside point reported inside")
	}
	inner := NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	if !b.ContainsBox(inner) {
		t.Error("inner box should be contained")
	}
	if inner.ContainsBox(b) {
		t.Error("outer box cannot fit in inner")
	}
	if b.Extend(inner).Size() != b.Size() {
		t.Error("extending by an inner box changed the size")
	}
}
