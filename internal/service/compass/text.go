package compass

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	chunkSize    = 800
	chunkOverlap = 100
	pageMarker   = "--- PAGE:"
)

// chunkSeparators are tried in order when looking for a cut point.
var chunkSeparators = []string{"\n\n", "\n", ". ", " "}

// SplitDocument breaks a crawled document into chunks. Pages introduced by a
// "--- PAGE: <url> ---" line keep their URL and the metadata derived from it.
func SplitDocument(source, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if !strings.Contains(text, pageMarker) {
		var chunks []Chunk
		for _, part := range SplitText(text, chunkSize, chunkOverlap) {
			chunks = append(chunks, Chunk{Source: source, Text: part, Metadata: Metadata{ContentType: ContentGeneral}})
		}
		return chunks
	}

	var chunks []Chunk
	pages := strings.Split(text, pageMarker)
	for _, page := range pages[1:] {
		header, body, ok := strings.Cut(strings.TrimSpace(page), "\n")
		if !ok {
			continue
		}
		url := strings.TrimSpace(strings.ReplaceAll(header, "---", ""))
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		md := ExtractMetadata(url, body)
		for _, part := range SplitText(body, chunkSize, chunkOverlap) {
			chunks = append(chunks, Chunk{Source: source, URL: url, Text: part, Metadata: md})
		}
	}
	return chunks
}

// SplitText cuts text into pieces of at most size bytes that overlap by
// roughly overlap bytes, preferring paragraph, line, sentence and word
// boundaries in that order.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if overlap >= size {
		overlap = size / 4
	}

	var parts []string
	start := 0
	for start < len(text) {
		if len(text)-start <= size {
			if part := strings.TrimSpace(text[start:]); part != "" {
				parts = append(parts, part)
			}
			break
		}

		cut := bestCut(text[start:], size, overlap)
		if part := strings.TrimSpace(text[start : start+cut]); part != "" {
			parts = append(parts, part)
		}

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		// resume on a word boundary
		if i := strings.IndexAny(text[next:start+cut], " \n"); i >= 0 {
			next += i + 1
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return parts
}

// bestCut picks where to end the chunk that starts at rest[0]; rest is longer
// than size.
func bestCut(rest string, size, floor int) int {
	window := rest[:size]
	for _, sep := range chunkSeparators {
		if i := strings.LastIndex(window, sep); i > floor {
			return i + len(sep)
		}
	}
	cut := size
	for cut > 0 && !utf8.RuneStart(rest[cut]) {
		cut--
	}
	if cut == 0 {
		return size
	}
	return cut
}

// subjectSynonyms maps academic terms to alternatives that widen a search.
var subjectSynonyms = []struct {
	term     string
	synonyms []string
}{
	{"major", []string{"program", "degree", "field of study", "concentration"}},
	{"program", []string{"major", "degree", "field", "concentration"}},
	{"course", []string{"class", "subject", "curriculum"}},
	{"requirement", []string{"prerequisite", "needed", "required", "must take"}},
	{"biology", []string{"biological sciences", "life sciences", "bio"}},
	{"computer science", []string{"cs", "computing", "programming"}},
	{"psychology", []string{"psych", "behavioral science"}},
	{"mathematics", []string{"math", "statistics", "calculus"}},
	{"economics", []string{"econ", "economic"}},
	{"chemistry", []string{"chem", "chemical"}},
	{"english", []string{"literature", "writing"}},
	{"history", []string{"historical"}},
	{"sociology", []string{"social"}},
	{"anthropology", []string{"cultural"}},
}

const (
	synonymsPerTerm = 2
	maxQueries      = 3
)

// ExpandQuery returns the query followed by synonym rewrites, at most three
// queries in total.
func ExpandQuery(query string) []string {
	lower := strings.ToLower(query)
	queries := []string{query}

	for _, entry := range subjectSynonyms {
		if !strings.Contains(lower, entry.term) {
			continue
		}
		for _, syn := range entry.synonyms[:min(synonymsPerTerm, len(entry.synonyms))] {
			queries = append(queries, strings.ReplaceAll(lower, entry.term, syn))
		}
	}

	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"there": {}, "this": {}, "to": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "with": {}, "you": {}, "your": {}, "about": {}, "any": {},
	"have": {}, "has": {}, "should": {}, "would": {}, "could": {}, "tell": {}, "we": {},
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func queryTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range tokenize(query) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// coverage is the fraction of query terms present in the chunk.
func coverage(query []string, chunk map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for _, t := range query {
		if _, ok := chunk[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
