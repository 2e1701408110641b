package mutation

import (
	"regexp"

	"github.com/spec-kit/workflow-service/internal/domain"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Mention is a handle in a comment that resolved to an active user.
type Mention struct {
	UserID string
	Handle string
}

// HighlightMentions wraps every @handle naming an active user in bold markers
// and returns the users mentioned, each once. Unresolved handles are left as
// typed.
func HighlightMentions(text string, users []domain.User) (string, []Mention) {
	var mentions []Mention
	seen := map[string]bool{}
	out := mentionPattern.ReplaceAllStringFunc(text, func(match string) string {
		handle := match[1:]
		for _, u := range users {
			if !u.Active || !u.MatchesHandle(handle) {
				continue
			}
			if !seen[u.ID] {
				seen[u.ID] = true
				mentions = append(mentions, Mention{UserID: u.ID, Handle: handle})
			}
			return "**" + match + "**"
		}
		return match
	})
	return out, mentions
}
