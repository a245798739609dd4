package board

import (
	"regexp"
	"strings"
)

// mentionPattern matches @nickname tokens. \p{L}/\p{N} keep it correct for
// non-ASCII nicknames (e.g. ğüşıöçĞÜŞİÖÇ), which a plain \w would miss.
var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)

// ExtractMentions returns the lowercased nicknames mentioned in text, in
// order of first appearance, without duplicates.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		nick := strings.ToLower(m[1])
		if _, dup := seen[nick]; dup {
			continue
		}
		seen[nick] = struct{}{}
		mentions = append(mentions, nick)
	}
	return mentions
}
