package docstore

import (
	"slices"

	"github.com/nfrund/supportchat/internal/domain"
)

// Window orders msgs by timestamp and keeps the most recent q.Limit entries.
// Results are ascending unless q.Ascending is false. msgs is not modified.
func Window(msgs []domain.Message, q Query) []domain.Message {
	out := slices.Clone(msgs)
	domain.SortFeed(out)

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	if !q.Ascending {
		slices.Reverse(out)
	}
	if out == nil {
		out = []domain.Message{}
	}
	return out
}
