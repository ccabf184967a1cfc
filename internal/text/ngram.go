package text

import "strings"

const (
	// DefaultMaxNGram is the longest n-gram emitted for every position.
	DefaultMaxNGram = 2
	// wholeRunMax is the longest run indexed as a single n-gram.
	wholeRunMax = 6

	importantNGramBoost = 1.1
	synonymDiscount     = 0.75
)

// Bag maps n-gram keys to accumulated weight.
type Bag map[string]float64

// Total sums the weights.
func (b Bag) Total() float64 {
	var t float64
	for _, w := range b {
		t += w
	}
	return t
}

// add folds every n-gram of words into the bag. Each n-gram weighs
// 1/(n+1) times scale. Runs longer than maxN but short enough are also
// added whole. Keys in skip are left out.
func (b Bag) add(words []string, maxN int, scale float64, skip map[string]bool) {
	for n := 1; n <= maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			key := strings.Join(words[i:i+n], " ")
			if skip[key] {
				continue
			}
			b[key] += scale / float64(n+1)
		}
	}
	if len(words) > maxN && len(words) <= wholeRunMax {
		key := strings.Join(words, " ")
		if !skip[key] {
			b[key] += scale / float64(len(words)+1)
		}
	}
}

// nGramKeys lists every contiguous n-gram of words for n in 1..maxN.
func nGramKeys(words []string, maxN int) []string {
	var out []string
	for n := 1; n <= maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			out = append(out, strings.Join(words[i:i+n], " "))
		}
	}
	return out
}
