package batch

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nameAllocator hands out unique base filenames for the duration of one batch.
// Layer names are not unique within a document, so repeated names receive a
// numeric suffix: the first "Icon" stays "Icon", the next becomes "Icon 1",
// then "Icon 2".
type nameAllocator struct {
	counts map[string]int
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{counts: make(map[string]int)}
}

// Claim reserves the next available filename for base.
func (a *nameAllocator) Claim(base string) string {
	base = normalizeName(base)
	seen := a.counts[base]
	a.counts[base] = seen + 1
	if seen == 0 {
		return base
	}
	return base + " " + strconv.Itoa(seen)
}

// normalizeName canonicalizes a layer name so visually identical names
// collide: NFC normalization plus whitespace trimming. Composed and
// decomposed forms of the same accented name must map to one filename.
func normalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "Untitled"
	}
	return name
}
