package domain

import (
	"sort"
	"time"
)

const (
	// FeedLimit is the number of most recent messages materialized per feed.
	FeedLimit = 50

	// SupportSender is the fixed identity used for simulated replies.
	SupportSender = "Accountant"

	// AutoReplyText is the scripted content of every simulated reply.
	AutoReplyText = "Thank you for your message. An accountant will respond shortly during business hours (9 AM - 5 PM EST)."

	// ReplyDelay is the time between a submit and its simulated reply write.
	ReplyDelay = 1000 * time.Millisecond

	// OrderKey is the field feeds are ordered by.
	OrderKey = "timestamp"
)

// Message is the read-only projection of a record in a user's feed.
type Message struct {
	ID           string     `json:"id"`
	Text         string     `json:"text"`
	Sender       string     `json:"sender"`
	IsAccountant bool       `json:"isAccountant"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// Pending reports whether the store has not yet resolved the message timestamp.
func (m Message) Pending() bool {
	return m.Timestamp == nil || m.Timestamp.IsZero()
}

// Record is the write shape of a message. The store assigns the ID and the
// creation timestamp.
type Record struct {
	Text         string `json:"text" validate:"required"`
	Sender       string `json:"sender" validate:"required"`
	IsAccountant bool   `json:"isAccountant"`
}

// UserRecord builds the record for a message authored by id.
func UserRecord(id Identity, text string) Record {
	return Record{Text: text, Sender: id.Label, IsAccountant: false}
}

// SupportRecord builds the scripted reply record.
func SupportRecord() Record {
	return Record{Text: AutoReplyText, Sender: SupportSender, IsAccountant: true}
}

// SortFeed orders messages ascending by resolved timestamp. Pending messages
// sort after every resolved one; ties keep their arrival order.
func SortFeed(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		switch {
		case a.Pending() && b.Pending():
			return false
		case a.Pending():
			return false
		case b.Pending():
			return true
		default:
			return a.Timestamp.Before(*b.Timestamp)
		}
	})
}
