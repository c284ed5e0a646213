package stats

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// Keyword is a term that stands out across journal entries.
type Keyword struct {
	Term    string  `json:"term"`
	Entries int     `json:"entries"`
	Score   float64 `json:"score"`
}

// TopKeywords ranks the terms of the entries' content by TF-IDF: a term
// scores high when it is frequent inside the entries that use it but
// appears in few of them. Terms used in a single entry are ignored when
// there is more than one entry.
func TopKeywords(entries []*models.JournalEntry, n int) []Keyword {
	docs := 0
	tf := make(map[string]float64)
	df := make(map[string]int)
	for _, e := range entries {
		tokens := tokenize(e.Content)
		if len(tokens) == 0 {
			continue
		}
		docs++

		seen := make(map[string]bool)
		for _, tok := range tokens {
			tf[tok] += 1 / float64(len(tokens))
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	keywords := make([]Keyword, 0, len(tf))
	for term, freq := range tf {
		if docs > 1 && df[term] < 2 {
			continue
		}
		idf := math.Log(1 + float64(docs)/float64(df[term]))
		keywords = append(keywords, Keyword{
			Term:    term,
			Entries: df[term],
			Score:   math.Round(freq*idf*1000) / 1000,
		})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score > keywords[j].Score
		}
		return keywords[i].Term < keywords[j].Term
	})
	if n >= 0 && len(keywords) > n {
		keywords = keywords[:n]
	}
	return keywords
}

// tokenize lowercases text and splits it into words. Runs of Han, kana or
// Hangul characters are split into bigrams since they carry no spaces.
func tokenize(text string) []string {
	var tokens []string
	var word []rune
	flush := func() {
		if len(word) > 2 {
			if w := string(word); !stopWords[w] {
				tokens = append(tokens, w)
			}
		}
		word = word[:0]
	}

	runes := []rune(strings.ToLower(text))
	for i, r := range runes {
		switch {
		case isCJK(r):
			flush()
			if i+1 < len(runes) && isCJK(runes[i+1]) {
				if bigram := string(runes[i : i+2]); !stopWords[bigram] {
					tokens = append(tokens, bigram)
				}
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

var stopWords = func() map[string]bool {
	words := []string{
		// English
		"and", "are", "for", "from", "has", "had", "have", "its", "that", "the",
		"this", "was", "were", "will", "with", "but", "they", "what", "when",
		"where", "who", "which", "why", "how", "all", "each", "every", "both",
		"few", "more", "most", "other", "some", "such", "nor", "not", "only",
		"own", "same", "than", "too", "very", "just", "can", "about", "into",
		"through", "during", "before", "after", "again", "then", "once", "here",
		"there", "any", "get", "got", "our", "you", "your", "his", "her",
		"she", "him", "them", "their", "been", "being", "did", "does", "doing",
		"i'm", "it's", "don't", "today",
		// French
		"les", "des", "une", "est", "pas", "que", "qui", "dans", "pour", "sur",
		"avec", "mais", "par", "plus", "tout", "très", "été", "fait", "suis",
		"ai", "aux", "ces", "cette", "mon", "mes", "nous", "vous", "elle",
		"ils", "elles", "son", "ses", "leur", "comme", "aussi", "bien", "j'ai",
		"c'est", "aujourd'hui",
		// Chinese particles
		"一個", "沒有", "自己", "就是",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
