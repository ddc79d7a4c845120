package domain

import "fmt"

// Identity is the authenticated principal using the widget.
type Identity struct {
	// Key is the stable unique identifier that namespaces the feed.
	Key string `json:"key" validate:"required"`
	// Label is the display label (usually an email) written as the sender.
	Label string `json:"label" validate:"required"`
}

// FeedPath returns the collection path of the identity's feed.
func FeedPath(id Identity) string {
	return fmt.Sprintf("users/%s/chat", id.Key)
}
