package widget

import "github.com/nfrund/supportchat/internal/domain"

// ViewState is everything the panel renders. It belongs to one widget
// instance and is discarded when the widget unmounts.
type ViewState struct {
	PanelOpen bool             `json:"panelOpen"`
	Typing    bool             `json:"typing"`
	Draft     string           `json:"draft"`
	Messages  []domain.Message `json:"messages"`

	// ScrollSeq increases on every scroll-to-latest request.
	ScrollSeq uint64 `json:"scrollSeq"`
}

// Clone returns a copy that shares nothing mutable with v.
func (v ViewState) Clone() ViewState {
	out := v
	if v.Messages != nil {
		out.Messages = make([]domain.Message, len(v.Messages))
		copy(out.Messages, v.Messages)
	}
	return out
}

// RowKind distinguishes stored messages from the synthetic typing row.
type RowKind string

const (
	RowMessage RowKind = "message"
	RowTyping  RowKind = "typing"
)

// Align is the horizontal placement of a row.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Row is one line of the rendered conversation.
type Row struct {
	Kind    RowKind
	Align   Align
	Avatar  bool
	Message *domain.Message
}

// Rows lays out the visible messages. Support messages sit on the left with
// an avatar, the user's own on the right. While Typing is set a typing row
// follows the last message.
func (v ViewState) Rows() []Row {
	rows := make([]Row, 0, len(v.Messages)+1)
	for i := range v.Messages {
		m := &v.Messages[i]
		row := Row{Kind: RowMessage, Align: AlignRight, Message: m}
		if m.IsAccountant {
			row.Align = AlignLeft
			row.Avatar = true
		}
		rows = append(rows, row)
	}
	if v.Typing {
		rows = append(rows, Row{Kind: RowTyping, Align: AlignLeft, Avatar: true})
	}
	return rows
}
