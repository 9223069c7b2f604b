package highlight

import "unicode/utf8"

// ExtractRuns folds a per-character ownership slice into maximal runs.
// The runs are ordered, contiguous and together reproduce text exactly;
// adjacent runs never share ownership. Positions past the end of coverage
// read as the zero ownership.
//
// Run text is sliced from text at byte offsets, so invalid UTF-8 bytes are
// kept as-is. Each invalid byte counts as one character.
func ExtractRuns[O comparable](text string, coverage []O) []Run[O] {
	if text == "" {
		return nil
	}
	var zero O
	at := func(i int) O {
		if i < len(coverage) {
			return coverage[i]
		}
		return zero
	}

	runs := make([]Run[O], 0, 1)
	start, startByte, current := 0, 0, at(0)
	_, size := utf8.DecodeRuneInString(text)
	i, offset := 1, size
	for ; offset < len(text); i++ {
		next := at(i)
		if next != current {
			runs = append(runs, Run[O]{Start: start, End: i, Owner: current, Text: text[startByte:offset]})
			start, startByte, current = i, offset, next
		}
		_, size = utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return append(runs, Run[O]{Start: start, End: i, Owner: current, Text: text[startByte:]})
}
