package task

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ResultEntry is a result together with its key in the task's result set
type ResultEntry struct {
	Key  string `json:"key"`
	Data Result `json:"data"`
}

// ResultGroup holds the results that agree on a post-state hash
type ResultGroup struct {
	PostHash string        `json:"postHash"`
	Members  []ResultEntry `json:"members"`
}

// GroupResults buckets results by post-state hash and orders the buckets:
// a bucket holding the canonical client goes first, buckets with failures go
// last, the rest by post-hash. Within a bucket, results with the same
// success, client name and client version collapse into the first one seen.
//
// Results are visited in ascending key order, so the output only depends on
// the key/result pairs. The input is not modified.
func GroupResults(results map[string]Result) []ResultGroup {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make(map[string][]ResultEntry)
	hashes := make([]string, 0)
next:
	for _, k := range keys {
		r := results[k]
		bucket, ok := buckets[r.PostHash]
		if !ok {
			hashes = append(hashes, r.PostHash)
		}
		for _, other := range bucket {
			if other.Data.sameOutcome(r) {
				continue next
			}
		}
		buckets[r.PostHash] = append(bucket, ResultEntry{Key: k, Data: r})
	}

	// the collator keeps internal buffers, one per call keeps this reentrant
	col := collate.New(language.Und)
	sort.Strings(hashes)
	sort.SliceStable(hashes, func(i, j int) bool {
		return compareBuckets(col, hashes[i], buckets[hashes[i]], hashes[j], buckets[hashes[j]]) < 0
	})

	groups := make([]ResultGroup, 0, len(hashes))
	for _, h := range hashes {
		groups = append(groups, ResultGroup{PostHash: h, Members: buckets[h]})
	}
	return groups
}

// compareBuckets short-circuits on the first member of a that is canonical
// or failing, then on the first such member of b, and falls back to
// comparing the hashes. Canonical placement wins over failure placement.
func compareBuckets(col *collate.Collator, ha string, a []ResultEntry, hb string, b []ResultEntry) int {
	for _, e := range a {
		if e.Data.IsCanonical() {
			return -1
		}
		if !e.Data.Success {
			return 1
		}
	}
	for _, e := range b {
		if e.Data.IsCanonical() {
			return 1
		}
		if !e.Data.Success {
			return -1
		}
	}
	return col.CompareString(ha, hb)
}
