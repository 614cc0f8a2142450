package ot

// Transform adjusts a against an already-applied b so that applying b then
// the result yields the same document as applying them in the opposite
// order. This is the one-sided form: it is only correct when every
// operation funnels through a single authoritative session, which serializes
// application. True peer-to-peer sync would need the symmetric form
// returning both (a', b').
func Transform(a, b Operation) Operation {
	ap := a
	switch {
	case b.Position < a.Position:
		switch b.Type {
		case Insert:
			ap.Position += len(b.Content)
		case Delete:
			// Never move past the earlier boundary.
			ap.Position -= minInt(b.Length, a.Position-b.Position)
		}
	case b.Position == a.Position:
		// True concurrent edit at the same point: the lexicographically
		// smaller userId wins the position, and the loser is shifted as if
		// the winner's insert had already happened. A delete colliding with
		// an insert at the same offset shifts by zero; intention at a
		// distance is not preserved for that case.
		if b.UserID < a.UserID && b.Type == Insert {
			ap.Position += len(b.Content)
		}
	}
	return ap
}

// TransformAgainstPending transforms op against every pending operation
// from other users, in order. Pending operations are local sends that have
// not round-tripped yet.
func TransformAgainstPending(op Operation, pending []Operation) Operation {
	transformed := op
	for _, p := range pending {
		if p.UserID != op.UserID {
			transformed = Transform(transformed, p)
		}
	}
	return transformed
}

// TransformCursor shifts a cursor position by an applied operation so it
// keeps pointing at the same logical character.
func TransformCursor(pos int, op Operation) int {
	if op.Position > pos {
		return pos
	}
	switch op.Type {
	case Insert:
		return pos + len(op.Content)
	case Delete:
		// Floored at the operation position.
		return pos - minInt(op.Length, pos-op.Position)
	}
	return pos
}

// Range is a {start,end} anchor binding a highlight to document content.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TransformRange shifts both ends of an anchor by an applied operation.
// Comment and suggestion anchors go through the same adjustment as live
// cursors so highlights never drift from their text.
func TransformRange(r Range, op Operation) Range {
	return Range{
		Start: TransformCursor(r.Start, op),
		End:   TransformCursor(r.End, op),
	}
}
