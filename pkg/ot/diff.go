package ot

// Diff derives a single insert or delete from two versions of editable
// text by trimming the common prefix and suffix. It is a heuristic, not a
// minimal-edit-distance diff: the editing surface reports one contiguous
// change per event, which is exactly what this reconstructs. Equal-length
// replacements and multi-span edits produce no operation.
func Diff(oldText, newText, userID string) (Operation, bool) {
	if oldText == newText || len(oldText) == len(newText) {
		return Operation{}, false
	}

	prefix := 0
	limit := minInt(len(oldText), len(newText))
	for prefix < limit && oldText[prefix] == newText[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < limit-prefix &&
		oldText[len(oldText)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}

	if len(newText) > len(oldText) {
		return NewInsert(userID, prefix, newText[prefix:len(newText)-suffix]), true
	}
	return NewDelete(userID, prefix, len(oldText)-suffix-prefix), true
}
