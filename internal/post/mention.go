// AngelaMos | 2026
// mention.go

package post

import (
	"regexp"
	"strings"
)

const maxMentions = 20

var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_.@])@([A-Za-z0-9_.]{3,31})`)

// ParseMentions returns the lowercased usernames mentioned in text, in
// order of first appearance.
func ParseMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))

	for _, m := range matches {
		name := strings.ToLower(strings.TrimRight(m[1], "."))
		if len(name) < 3 || len(name) > 30 {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)

		if len(names) == maxMentions {
			break
		}
	}

	return names
}
