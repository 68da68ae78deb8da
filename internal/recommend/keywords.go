package recommend

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// キーワード抽出のパラメータ
const (
	minKeywordLen = 4  // 4文字以上（3文字より長い）の単語のみ対象
	maxKeywords   = 10 // 出現頻度の上位10語
)

// tokenize はタイトルを小文字の単語に分割する。文字と数字以外はすべて区切りとみなす。
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ExtractKeywords は既読記事のタイトルから出現頻度の高い単語を抽出する。
// 同じ頻度の単語は辞書順で並べるため、入力順に依存しない。
func ExtractKeywords(titles []string) []string {
	freq := make(map[string]int)
	for _, title := range titles {
		for _, word := range tokenize(title) {
			if utf8.RuneCountInString(word) >= minKeywordLen {
				freq[word]++
			}
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	slices.SortFunc(words, func(a, b string) int {
		if freq[a] != freq[b] {
			return freq[b] - freq[a]
		}
		return strings.Compare(a, b)
	})

	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return words
}

// matchKeywords はタイトルに単語として現れるキーワードの種類数を返す。
func matchKeywords(title string, keywords map[string]struct{}) int {
	if len(keywords) == 0 {
		return 0
	}
	seen := make(map[string]struct{})
	for _, word := range tokenize(title) {
		if _, ok := keywords[word]; ok {
			seen[word] = struct{}{}
		}
	}
	return len(seen)
}
