package inference

import (
	"strings"
	"unicode"
)

// splitName splits snake_case, kebab-case, dotted and camelCase names.
// Upper-case runs stay together: "userID" -> [user ID], "HTTPServer" -> [HTTP Server].
func splitName(name string) []string {
	var (
		tokens []string
		cur    []rune
	)
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}

func lowerTokens(name string) []string {
	tokens := splitName(name)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}

// DisplayName 根据列名生成展示名称，如 order_count -> Order Count
func DisplayName(name string) string {
	tokens := splitName(name)
	if len(tokens) == 0 {
		return name
	}
	for i, t := range tokens {
		tokens[i] = titleToken(t)
	}
	return strings.Join(tokens, " ")
}

func titleToken(t string) string {
	runes := []rune(t)
	if len(runes) > 1 && isAllUpper(runes) {
		return t
	}
	for i, r := range runes {
		if i == 0 {
			runes[i] = unicode.ToUpper(r)
		} else {
			runes[i] = unicode.ToLower(r)
		}
	}
	return string(runes)
}

func isAllUpper(runes []rune) bool {
	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
