package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ins(userID string, pos int, content string) Operation {
	op := NewInsert(userID, pos, content)
	return op
}

func del(userID string, pos, length int) Operation {
	op := NewDelete(userID, pos, length)
	return op
}

func TestTransform(t *testing.T) {
	cases := []struct {
		name    string
		a, b    Operation
		wantPos int
	}{
		{"insert before shifts right", ins("bob", 5, "x"), ins("alice", 2, "abc"), 8},
		{"delete before shifts left", ins("bob", 5, "x"), del("alice", 2, 2), 3},
		{"delete straddling floors at boundary", ins("bob", 3, "x"), del("alice", 2, 10), 2},
		{"edit after does not move earlier positions", ins("bob", 2, "x"), ins("alice", 5, "abc"), 2},
		{"delete after does not move earlier positions", del("bob", 2, 1), del("alice", 5, 3), 2},
		{"same position smaller userId wins", ins("bob", 4, "x"), ins("alice", 4, "hey"), 7},
		{"same position larger userId does not shift", ins("alice", 4, "x"), ins("bob", 4, "hey"), 4},
		{"same position delete tie shifts zero", ins("bob", 4, "x"), del("alice", 4, 2), 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Transform(c.a, c.b)
			assert.Equal(t, c.wantPos, got.Position)
			// Everything but position is untouched.
			assert.Equal(t, c.a.Type, got.Type)
			assert.Equal(t, c.a.Content, got.Content)
			assert.Equal(t, c.a.Length, got.Length)
			assert.Equal(t, c.a.UserID, got.UserID)
		})
	}
}

func TestTransformTieBreakDeterminism(t *testing.T) {
	// "alice" sorts before "bob", so alice's insert takes the position on
	// every run.
	for i := 0; i < 100; i++ {
		shifted := Transform(ins("bob", 0, "Hi "), ins("alice", 0, "Hello"))
		assert.Equal(t, 5, shifted.Position)
		unshifted := Transform(ins("alice", 0, "Hello"), ins("bob", 0, "Hi "))
		assert.Equal(t, 0, unshifted.Position)
	}
}

// Convergence: for disjoint-range operations by different users, either
// application order yields the same document once the second operation is
// transformed against the first.
func TestTransformConvergence(t *testing.T) {
	base := "the quick brown fox"
	cases := []struct {
		name string
		a, b Operation
	}{
		{"insert/insert", ins("alice", 4, "very "), ins("bob", 16, "red ")},
		{"insert/delete", ins("alice", 0, ">> "), del("bob", 10, 6)},
		{"delete/insert", del("alice", 0, 4), ins("bob", 16, "red ")},
		{"delete/delete", del("alice", 0, 3), del("bob", 10, 5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			abFirst := Apply(Apply(base, c.a), Transform(c.b, c.a))
			baFirst := Apply(Apply(base, c.b), Transform(c.a, c.b))
			assert.Equal(t, abFirst, baFirst)
		})
	}
}

// Inserting "AB" at 0 and deleting one char at 5 commute once the second
// operation is transformed against the first.
func TestIndependentEditsOrderInsensitive(t *testing.T) {
	base := "Hello!"
	insert := ins("alice", 0, "AB")
	remove := del("bob", 5, 1)

	insertFirst := Apply(Apply(base, insert), Transform(remove, insert))
	removeFirst := Apply(Apply(base, remove), Transform(insert, remove))

	require.Equal(t, insertFirst, removeFirst)
	assert.Equal(t, "ABHello", insertFirst)
}

func TestTransformAgainstPending(t *testing.T) {
	pending := []Operation{
		ins("alice", 0, "Hello"),
		ins("alice", 5, "!"),
	}
	got := TransformAgainstPending(ins("bob", 0, "Hi "), pending)
	assert.Equal(t, 6, got.Position)

	// Own pending operations are skipped.
	got = TransformAgainstPending(ins("alice", 0, "Hi "), pending)
	assert.Equal(t, 0, got.Position)
}

func TestTransformCursor(t *testing.T) {
	insertAt5 := ins("alice", 5, "abc")
	// Cursors at or after the insert shift by its length.
	assert.Equal(t, 8, TransformCursor(5, insertAt5))
	assert.Equal(t, 13, TransformCursor(10, insertAt5))
	// Cursors before it are unchanged.
	assert.Equal(t, 4, TransformCursor(4, insertAt5))

	deleteAt5 := del("alice", 5, 3)
	assert.Equal(t, 7, TransformCursor(10, deleteAt5))
	// Cursor inside the deleted span floors at the delete position.
	assert.Equal(t, 5, TransformCursor(6, deleteAt5))
	assert.Equal(t, 4, TransformCursor(4, deleteAt5))
}

func TestTransformRangeAnchorDrift(t *testing.T) {
	anchor := Range{Start: 10, End: 15}

	shifted := TransformRange(anchor, ins("alice", 0, "12345"))
	assert.Equal(t, Range{Start: 15, End: 20}, shifted)

	shrunk := TransformRange(anchor, del("alice", 0, 5))
	assert.Equal(t, Range{Start: 5, End: 10}, shrunk)
}
