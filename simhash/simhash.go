// Package simhash fingerprints batches of extracted records. The engine
// compares consecutive page batches to catch a "next page" control that
// reloads the same listing instead of advancing.
package simhash

import (
	"hash/fnv"

	"github.com/use-agent/sortcheck/models"
)

// Fingerprint computes a 64-bit SimHash over whole tokens.
// Token order does not matter; an empty token set yields 0.
func Fingerprint(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Records fingerprints a page batch by each record's title, link and age.
func Records(records []models.Record) uint64 {
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, r.Title+"\x00"+r.URL+"\x00"+r.Age)
	}
	return Fingerprint(tokens)
}
