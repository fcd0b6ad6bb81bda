package trails

import (
	"strings"

	"ski-run-open-bot/internal/model"
)

type keyword[T any] struct {
	word  string
	value T
}

var difficultyKeywords = func() []keyword[model.Difficulty] {
	var out []keyword[model.Difficulty]
	for _, d := range model.Difficulties() {
		out = append(out,
			keyword[model.Difficulty]{word: d.Keyword(), value: d},
			keyword[model.Difficulty]{word: strings.ToLower(d.String()), value: d},
		)
	}
	return out
}()

var statusKeywords = []keyword[model.RunStatus]{
	{word: "open", value: model.StatusOpen},
	{word: "closed", value: model.StatusClosed},
	{word: "unknown", value: model.StatusUnknown},
}

// matchToken 返回 token 中包含的最长关键字对应的值，
// 使 double-black 优先于 black。
func matchToken[T any](token string, kws []keyword[T]) (T, bool) {
	var best T
	bestLen := 0
	token = strings.ToLower(token)
	for _, kw := range kws {
		if len(kw.word) > bestLen && strings.Contains(token, kw.word) {
			best, bestLen = kw.value, len(kw.word)
		}
	}
	return best, bestLen > 0
}

// matchTokens 按顺序返回第一个命中关键字的 token 的值。
func matchTokens[T any](tokens []string, kws []keyword[T]) (T, bool) {
	for _, tok := range tokens {
		if v, ok := matchToken(tok, kws); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func difficultyOf(tokens []string) model.Difficulty {
	d, _ := matchTokens(tokens, difficultyKeywords)
	return d
}

func statusOf(tokens []string) model.RunStatus {
	if s, ok := matchTokens(tokens, statusKeywords); ok {
		return s
	}
	return model.StatusUnknown
}
