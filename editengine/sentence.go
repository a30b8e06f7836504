// Package editengine implements the sentence- and word-structured edit
// model described in spec.md §4.9: tokenizing a document into
// sentences and words, parsing the wire edit-script format, and
// applying a script to produce a new document body plus its derived
// word/character counts.
package editengine

import "strings"

// MaxSentences bounds the number of sentences a document may be split
// into; additional terminators beyond this count do not start new
// sentences, mirroring the "sentences beyond a configured maximum
// count... are split at the boundary" policy of spec.md §4.9: once the
// bound is reached, the remainder of the input is appended to the
// final sentence.
const MaxSentences = 10000

// MaxSentenceLength bounds the length, in bytes, of a single sentence.
const MaxSentenceLength = 4096

// MaxWordsPerSentence bounds the number of words in a single sentence.
const MaxWordsPerSentence = 1000

// MaxWordLength bounds the length, in bytes, of a single word.
const MaxWordLength = 256

// terminators is the set of characters that end a sentence.
const terminators = ".!?"

// Split tokenizes body into sentences. A sentence is a maximal run of
// characters terminated by '.', '!', or '?'; the terminator is
// included in the sentence. Leading and trailing whitespace is
// trimmed from each sentence after splitting. Residual input with no
// terminator forms a final sentence if non-empty after trimming.
//
// Once at least MaxSentences-1 sentences have been produced, the
// remainder of body (terminators included) forms the final sentence
// without being split at its own internal terminators. Any sentence
// longer than MaxSentenceLength, that remainder included, is still
// cut into continuation sentences by boundSentence, so the result can
// hold more than MaxSentences sentences when over-long ones occur.
func Split(body string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(body); i++ {
		if len(sentences) >= MaxSentences-1 {
			break
		}
		if strings.ContainsRune(terminators, rune(body[i])) {
			s := strings.TrimSpace(body[start : i+1])
			if s != "" {
				sentences = append(sentences, boundSentence(s)...)
			}
			start = i + 1
		}
	}
	rest := strings.TrimSpace(body[start:])
	if rest != "" {
		sentences = append(sentences, boundSentence(rest)...)
	}
	return sentences
}

// boundSentence splits a sentence longer than MaxSentenceLength into
// consecutive continuation sentences at the length boundary, per the
// "split at the boundary" policy for over-long sentences; no bytes
// are dropped. A sentence within the bound is returned unchanged as
// the sole element.
func boundSentence(s string) []string {
	if len(s) <= MaxSentenceLength {
		return []string{s}
	}
	var out []string
	for len(s) > MaxSentenceLength {
		out = append(out, s[:MaxSentenceLength])
		s = s[MaxSentenceLength:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// Join rebuilds a document body by concatenating sentences with
// single-space separators, per spec.md §4.9 step 5.
func Join(sentences []string) string {
	return strings.Join(sentences, " ")
}

// Words tokenizes a sentence into words by splitting on runs of
// whitespace, bounding both the number of words and each word's
// length per MaxWordsPerSentence and MaxWordLength.
func Words(sentence string) []string {
	fields := strings.Fields(sentence)
	if len(fields) > MaxWordsPerSentence {
		fields = fields[:MaxWordsPerSentence]
	}
	for i, w := range fields {
		if len(w) > MaxWordLength {
			fields[i] = w[:MaxWordLength]
		}
	}
	return fields
}

// Counts recomputes the (word count, character count) of body by
// retokenizing it, per spec.md §4.9 step 6 and the invariant in §8.4.
func Counts(body string) (words, chars int) {
	chars = len(body)
	for _, s := range Split(body) {
		words += len(Words(s))
	}
	return words, chars
}
