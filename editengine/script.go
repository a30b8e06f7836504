package editengine

import (
	"strconv"
	"strings"

	"sentedit.dev/sentedit/errors"
)

// scriptSep is the field delimiter of the wire edit-script format,
// per spec.md §4.9 and §6. A <word> field may not itself contain it.
const scriptSep = "|"

// WordInsert is one (word-index, word) pair of an edit script.
type WordInsert struct {
	WordIndex int
	Word      string
}

// Script is a parsed edit script: a target sentence index and an
// ordered sequence of word insertions to apply to that sentence.
type Script struct {
	SentenceIndex int
	Inserts       []WordInsert
}

// ParseScript parses the wire format
// "<sentence-index>|<word-index>|<word>|<word-index>|<word>|…"
// described in spec.md §4.9. An empty raw string is a valid script
// naming sentence index 0 with no inserts only if the caller has
// otherwise validated the request; ParseScript itself requires at
// least a sentence index field.
func ParseScript(raw string) (Script, error) {
	const op = errors.Op("editengine.ParseScript")
	if raw == "" {
		return Script{}, errors.E(op, errors.InvalidParameters, errors.Str("empty edit script"))
	}
	fields := strings.Split(raw, scriptSep)
	sentenceIdx, err := strconv.Atoi(fields[0])
	if err != nil {
		return Script{}, errors.E(op, errors.InvalidParameters, errors.Str("malformed sentence index"))
	}
	rest := fields[1:]
	// A trailing separator leaves one empty field; tolerate exactly
	// one trailing empty field, matching the example encodings in
	// spec.md §6 (e.g. "0|1|cruel|").
	if len(rest) > 0 && rest[len(rest)-1] == "" {
		rest = rest[:len(rest)-1]
	}
	if len(rest)%2 != 0 {
		return Script{}, errors.E(op, errors.InvalidParameters, errors.Str("odd number of word-index/word fields"))
	}
	s := Script{SentenceIndex: sentenceIdx}
	for i := 0; i < len(rest); i += 2 {
		wi, err := strconv.Atoi(rest[i])
		if err != nil {
			return Script{}, errors.E(op, errors.InvalidParameters, errors.Str("malformed word index"))
		}
		s.Inserts = append(s.Inserts, WordInsert{WordIndex: wi, Word: rest[i+1]})
	}
	return s, nil
}

// EncodeScript is the inverse of ParseScript, used by clients to
// build the wire payload for a WriteCommit request.
func EncodeScript(s Script) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.SentenceIndex))
	for _, ins := range s.Inserts {
		b.WriteString(scriptSep)
		b.WriteString(strconv.Itoa(ins.WordIndex))
		b.WriteString(scriptSep)
		b.WriteString(ins.Word)
	}
	return b.String()
}

// Apply applies script to body and returns the resulting body,
// following the semantics of spec.md §4.9:
//
//  1. body is split into sentences S0..Sn-1.
//  2. script.SentenceIndex must satisfy 0 <= idx <= n; idx == n
//     creates a new, initially empty, sentence at the end.
//  3. Each (word-index, word) pair is applied in order to the
//     working sentence, inserting the word at the given position
//     (0 <= word-index <= current word count); an out-of-range index
//     aborts the whole commit with InvalidIndex, leaving body
//     untouched.
//  4. If the mutated sentence re-tokenizes into more than one
//     sentence (an inserted word contained a terminator), those
//     sentences replace the original in place.
//  5. The new body is the sentences rejoined with single spaces.
func Apply(body string, script Script) (string, error) {
	const op = errors.Op("editengine.Apply")
	sentences := Split(body)
	n := len(sentences)
	if script.SentenceIndex < 0 || script.SentenceIndex > n {
		return "", errors.E(op, errors.InvalidIndex, errors.Str("sentence index out of range"))
	}

	var working string
	if script.SentenceIndex < n {
		working = sentences[script.SentenceIndex]
	}
	words := Words(working)
	for _, ins := range script.Inserts {
		m := len(words)
		if ins.WordIndex < 0 || ins.WordIndex > m {
			return "", errors.E(op, errors.InvalidIndex, errors.Str("word index out of range"))
		}
		words = insertWord(words, ins.WordIndex, ins.Word)
	}
	working = strings.Join(words, " ")

	replacement := Split(working)
	if len(replacement) == 0 {
		// The working sentence is empty, e.g. an append with no
		// inserts. Keep it as a single empty sentence so sentence
		// indices downstream remain predictable.
		replacement = []string{""}
	}

	var result []string
	if script.SentenceIndex < n {
		result = append(result, sentences[:script.SentenceIndex]...)
		result = append(result, replacement...)
		result = append(result, sentences[script.SentenceIndex+1:]...)
	} else {
		result = append(result, sentences...)
		result = append(result, replacement...)
	}
	return Join(result), nil
}

// insertWord returns a new slice with word inserted at position idx,
// shifting later words right. Precondition: 0 <= idx <= len(words).
func insertWord(words []string, idx int, word string) []string {
	out := make([]string, 0, len(words)+1)
	out = append(out, words[:idx]...)
	out = append(out, word)
	out = append(out, words[idx:]...)
	return out
}
