package widget

import (
	"io"
	"strconv"

	"maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

const (
	// PanelID is the DOM id of the widget root, used for out-of-band swaps.
	PanelID = "support-chat"

	avatarURL    = "https://i.imgur.com/K1tpbtq.jpg"
	agentName    = "Yaokun Shen"
	agentTitle   = "Tax Professional"
	timeLayout   = "3:04:05 PM"
	inputPrompt  = "Type your message..."
	statusNotice = "Online - Usually responds in 10 minutes"
)

// Render builds the panel markup for v. The root carries hx-swap-oob so a
// fragment pushed over the websocket replaces the panel in place.
func Render(v ViewState) gomponents.Node {
	return Div(
		ID(PanelID),
		hx.SwapOOB("true"),
		Class("fixed bottom-4 right-4 z-50"),
		gomponents.If(!v.PanelOpen, launcher()),
		gomponents.If(v.PanelOpen, panel(v)),
	)
}

// RenderTo writes the panel markup for v to w.
func RenderTo(w io.Writer, v ViewState) error {
	return Render(v).Render(w)
}

func launcher() gomponents.Node {
	return Form(
		gomponents.Attr("ws-send", ""),
		actionField("open"),
		Button(
			Type("submit"),
			Class("bg-indigo-600 text-white rounded-full p-4 shadow-lg hover:bg-indigo-700 transition-colors"),
			gomponents.Attr("aria-label", "Open chat"),
			gomponents.Text("Chat"),
		),
	)
}

func panel(v ViewState) gomponents.Node {
	return Div(
		Class("bg-white rounded-lg shadow-xl w-96 flex flex-col h-[500px]"),
		header(),
		Div(
			ID("chat-messages"),
			Class("flex-1 overflow-y-auto p-4 space-y-4"),
			gomponents.Attr("data-scroll-seq", strconv.FormatUint(v.ScrollSeq, 10)),
			gomponents.Map(v.Rows(), row),
		),
		composer(v.Draft),
	)
}

func header() gomponents.Node {
	return Div(
		Class("p-4 bg-indigo-600 text-white rounded-t-lg"),
		Div(
			Class("flex items-center justify-between"),
			Div(
				Class("flex items-center space-x-3"),
				Img(Src(avatarURL), Alt("Professional Accountant"), Class("w-10 h-10 rounded-full object-cover border-2 border-white")),
				Div(
					H3(Class("font-semibold"), gomponents.Text(agentName)),
					P(Class("text-xs text-indigo-100"), gomponents.Text(agentTitle)),
				),
			),
			Form(
				gomponents.Attr("ws-send", ""),
				actionField("close"),
				Button(Type("submit"), Class("text-white hover:text-gray-200 text-xl"), gomponents.Attr("aria-label", "Close chat"), gomponents.Text("×")),
			),
		),
		Div(
			Class("mt-2 text-xs text-indigo-100 flex items-center"),
			Div(Class("w-2 h-2 bg-green-400 rounded-full mr-2")),
			gomponents.Text(statusNotice),
		),
	)
}

func row(r Row) gomponents.Node {
	if r.Kind == RowTyping {
		return Div(
			Class("flex justify-start"),
			gomponents.Attr("data-row", string(RowTyping)),
			avatar(),
			Div(
				Class("bg-gray-100 rounded-lg p-3"),
				Div(
					Class("flex space-x-2"),
					Div(Class("w-2 h-2 bg-gray-500 rounded-full animate-bounce")),
					Div(Class("w-2 h-2 bg-gray-500 rounded-full animate-bounce delay-100")),
					Div(Class("w-2 h-2 bg-gray-500 rounded-full animate-bounce delay-200")),
				),
			),
		)
	}

	m := r.Message
	justify, bubble := "flex justify-end", "max-w-[80%] rounded-lg p-3 bg-indigo-600 text-white"
	if r.Align == AlignLeft {
		justify, bubble = "flex justify-start", "max-w-[80%] rounded-lg p-3 bg-gray-100 text-gray-800"
	}
	stamp := ""
	if !m.Pending() {
		stamp = m.Timestamp.Local().Format(timeLayout)
	}

	return Div(
		Class(justify),
		gomponents.Attr("data-row", string(RowMessage)),
		gomponents.Attr("data-id", m.ID),
		gomponents.If(r.Avatar, avatar()),
		Div(
			Class(bubble),
			P(Class("text-sm"), gomponents.Text(m.Text)),
			P(Class("text-xs mt-1 opacity-75"), gomponents.Text(stamp)),
		),
	)
}

func avatar() gomponents.Node {
	return Img(Src(avatarURL), Alt("YK"), Class("w-8 h-8 rounded-full mr-2 self-end"))
}

func composer(draft string) gomponents.Node {
	return Form(
		Class("p-4 border-t"),
		gomponents.Attr("ws-send", ""),
		actionField("submit"),
		Div(
			Class("flex space-x-2"),
			Input(
				Type("text"),
				Name("text"),
				Value(draft),
				Placeholder(inputPrompt),
				AutoComplete("off"),
				Class("flex-1 border rounded-lg px-3 py-2 focus:outline-none focus:ring-2 focus:ring-indigo-500"),
			),
			Button(
				Type("submit"),
				Class("bg-indigo-600 text-white rounded-lg px-4 py-2 hover:bg-indigo-700 transition-colors"),
				gomponents.Text("Send"),
			),
		),
	)
}

func actionField(action string) gomponents.Node {
	return Input(Type("hidden"), Name("action"), Value(action))
}
