package utils

import "unicode"

// Span is one chunk of a split text with its rune offsets into the source.
type Span struct {
	Start int
	End   int
	Text  string
}

// SplitTextSpans splits a long string into chunks of approximately
// 'chunkSize' runes with 'overlap' runes carried into the next chunk, so
// context that straddles a boundary is retrievable from either side.
// Removing the overlaps and concatenating the spans reconstructs the input.
func SplitTextSpans(text string, chunkSize int, overlap int) []Span {
	runes := []rune(text)
	totalLen := len(runes)

	if totalLen <= chunkSize {
		if totalLen == 0 {
			return nil
		}
		return []Span{{Start: 0, End: totalLen, Text: text}}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var spans []Span
	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}
		spans = append(spans, Span{Start: i, End: end, Text: string(runes[i:end])})
		if end == totalLen {
			break
		}
	}
	return spans
}

// PassesQualityCheck rejects chunks not worth embedding: too short, too few
// words, or mostly non-alphabetic noise (page furniture, tables of dashes).
func PassesQualityCheck(text string, minChars, minWords int) bool {
	runes := []rune(text)
	if len(runes) < minChars {
		return false
	}

	words := 0
	alpha := 0
	inWord := false
	for _, r := range runes {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if words < minWords {
		return false
	}
	return float64(alpha)/float64(len(runes)) >= 0.3
}
