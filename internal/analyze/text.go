package analyze

import "regexp"

var wordRE = regexp.MustCompile(`\w+`)

// TextSummary aggregates a block of text.
type TextSummary struct {
	WordCount int `json:"word_count"`
	CharCount int `json:"char_count"`
}

// Text counts words (\w+ tokens) and characters.
func Text(text string) TextSummary {
	return TextSummary{
		WordCount: len(wordRE.FindAllStringIndex(text, -1)),
		CharCount: len([]rune(text)),
	}
}
