package store

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

// keywordIndex is a small in-memory BM25 index over observation text and
// concepts, keyed by orchestration id. It is rebuilt from bbolt contents on
// Open and kept incrementally current on writes — the pack carries no
// full-text/BM25 library (checked: no bleve, fts5, sqlite-fts anywhere in
// the retrieval pack), so ranking is implemented directly.
type keywordIndex struct {
	mu sync.RWMutex

	// docTerms[docID][term] = term frequency within that doc.
	docTerms map[string]map[string]int
	docLen   map[string]int
	df       map[string]int // document frequency per term
	totalLen int
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var tokenRE = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(s string) []string {
	return tokenRE.FindAllString(strings.ToLower(s), -1)
}

func newKeywordIndex() *keywordIndex {
	return &keywordIndex{
		docTerms: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		df:       make(map[string]int),
	}
}

// addTerms merges the tokens derived from text and concepts into docID's
// existing indexed terms (observations accumulate onto their orchestration's
// document rather than replacing it — a single orchestration's doc grows as
// more observations are attached to it).
func (k *keywordIndex) addTerms(docID, text string, concepts []string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	terms := tokenize(text)
	for _, c := range concepts {
		terms = append(terms, tokenize(c)...)
	}
	if len(terms) == 0 {
		return
	}

	freq, ok := k.docTerms[docID]
	if !ok {
		freq = make(map[string]int)
		k.docTerms[docID] = freq
	}
	for _, t := range terms {
		if freq[t] == 0 {
			k.df[t]++
		}
		freq[t]++
	}
	k.docLen[docID] += len(terms)
	k.totalLen += len(terms)
}

func (k *keywordIndex) removeDoc(docID string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	old, ok := k.docTerms[docID]
	if !ok {
		return
	}
	for t := range old {
		k.df[t]--
		if k.df[t] <= 0 {
			delete(k.df, t)
		}
	}
	k.totalLen -= k.docLen[docID]
	delete(k.docTerms, docID)
	delete(k.docLen, docID)
}

// score returns the BM25 score of docID for query, 0 if the document shares
// no query terms.
func (k *keywordIndex) score(docID, query string) float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()

	freq, ok := k.docTerms[docID]
	if !ok {
		return 0
	}
	numDocs := len(k.docTerms)
	if numDocs == 0 {
		return 0
	}
	avgdl := float64(k.totalLen) / float64(numDocs)
	dl := float64(k.docLen[docID])

	var score float64
	for _, term := range tokenize(query) {
		f := float64(freq[term])
		if f == 0 {
			continue
		}
		df := float64(k.df[term])
		idf := math.Log((float64(numDocs)-df+0.5)/(df+0.5) + 1)
		score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgdl))
	}
	return score
}

// matchedDocs returns every docID sharing at least one term with query.
func (k *keywordIndex) matchedDocs(query string) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	terms := tokenize(query)
	seen := make(map[string]bool)
	var out []string
	for _, term := range terms {
		for docID, freq := range k.docTerms {
			if seen[docID] {
				continue
			}
			if freq[term] > 0 {
				seen[docID] = true
				out = append(out, docID)
			}
		}
	}
	return out
}
