// ABOUTME: HTML transcript view rendering markdown tool output via goldmark
// ABOUTME: Serves GET /chat as a minimal read-only conversation page

package httpapi

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/llm"
)

var chatPageTemplate = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Multi-Domain Chatbot — {{.SessionID}}</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2rem auto; padding: 0 1rem; }
.msg { border-radius: 8px; padding: 0.6rem 1rem; margin: 0.6rem 0; }
.user { background: #e8f0fe; }
.assistant { background: #f1f3f4; }
.tool { background: #fef7e0; font-size: 0.9em; }
.role { font-weight: bold; font-size: 0.8em; color: #555; text-transform: uppercase; }
.meta { font-size: 0.8em; color: #888; }
</style>
</head>
<body>
<h1>Conversation: {{.SessionID}}</h1>
{{if not .Messages}}<p class="meta">No messages yet. POST to /api/chat to start.</p>{{end}}
{{range .Messages}}
<div class="msg {{.Class}}">
<div class="role">{{.Role}}</div>
{{.Body}}
{{if .Note}}<div class="meta">{{.Note}}</div>{{end}}
</div>
{{end}}
</body>
</html>
`))

type chatPageMessage struct {
	Role  string
	Class string
	Body  template.HTML
	Note  string
}

type chatPageData struct {
	SessionID string
	Messages  []chatPageMessage
}

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	history, err := s.orch.History(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("loading history for chat page failed", "session", sessionID, "error", err)
		http.Error(w, "error loading conversation", http.StatusInternalServerError)
		return
	}

	data := chatPageData{SessionID: sessionID}
	for _, msg := range history {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(msg.Content), &buf); err != nil {
			s.logger.Warn("rendering message markdown failed", "error", err)
			buf.Reset()
			buf.WriteString(template.HTMLEscapeString(msg.Content))
		}

		class := "assistant"
		switch msg.Role {
		case llm.RoleUser:
			class = "user"
		case llm.RoleTool:
			class = "tool"
		}
		data.Messages = append(data.Messages, chatPageMessage{
			Role:  msg.Role,
			Class: class,
			Body:  template.HTML(buf.String()),
			Note:  describeToolCalls(msg),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chatPageTemplate.Execute(w, data); err != nil {
		s.logger.Error("rendering chat page failed", "error", err)
	}
}
