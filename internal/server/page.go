package server

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	"maragu.dev/gomponents/components"
	g "maragu.dev/gomponents/html"

	"github.com/nfrund/supportchat/internal/widget"
)

const (
	htmxScript   = "https://unpkg.com/htmx.org@2.0.4"
	htmxWSScript = "https://unpkg.com/htmx-ext-ws@2.0.2/ws.js"
	tailwindCDN  = "https://cdn.tailwindcss.com"
)

// widgetPage renders a host page with the closed widget wired to the
// websocket transport through the htmx ws extension.
func (s *Server) widgetPage(c echo.Context) error {
	wsURL := "/widget/ws?format=html"
	if token := c.QueryParam("token"); token != "" {
		wsURL += "&token=" + url.QueryEscape(token)
	}

	page := components.HTML5(components.HTML5Props{
		Title:    "Support",
		Language: "en",
		Head: []gomponents.Node{
			g.Script(g.Src(tailwindCDN)),
			g.Script(g.Src(htmxScript)),
			g.Script(g.Src(htmxWSScript)),
		},
		Body: []gomponents.Node{
			g.Div(
				hx.Ext("ws"),
				gomponents.Attr("ws-connect", wsURL),
				widget.Render(widget.ViewState{}),
			),
			g.Script(gomponents.Raw(scrollScript)),
		},
	})

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return page.Render(c.Response())
}

// scrollScript keeps the message list pinned to the newest entry after
// every swap that bumps the scroll sequence.
const scrollScript = `document.body.addEventListener("htmx:oobAfterSwap", function () {
  var list = document.getElementById("chat-messages");
  if (list) { list.scrollTop = list.scrollHeight; }
});`
