package web

import (
	"html/template"
	"net/http"

	"bedrock-chatbot/internal/domain/model"
)

var page = template.Must(template.New("chat").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:0;display:flex;flex-direction:column;height:100vh;}
h1{margin:1rem 2rem;font-size:1.6rem;}
.messages{flex:1;overflow-y:auto;padding:0 2rem;}
.msg{max-width:720px;margin:8px 0;padding:10px 14px;border-radius:12px;white-space:pre-wrap;}
.user{background:#eef3ff;margin-left:auto;}
.assistant{background:#f4f4f4;}
.error{background:#fdecea;color:#b00020;}
form{display:flex;gap:8px;padding:1rem 2rem;border-top:1px solid #ddd;}
input[type=text]{flex:1;padding:10px;border:1px solid #bbb;border-radius:8px;}
.row{display:flex;justify-content:space-between;align-items:center;padding:0 2rem 1rem;}
.small{font-size:12px;color:#666}
.link{background:none;border:none;color:#666;text-decoration:underline;cursor:pointer;font-size:12px}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="messages" id="messages">
  {{range .Messages}}<div class="msg {{.Role}}">{{.Content}}</div>
  {{end}}{{if .Pending}}<div class="msg user">{{.Pending}}</div>
  {{end}}{{if .Error}}<div class="msg error">{{.Error}}</div>
  {{end}}
</div>
<form method="post" action="/chat">
  <input type="text" name="text" placeholder="Type your message" autocomplete="off" autofocus />
  <button type="submit">Send</button>
</form>
<div class="row">
  <span class="small">Powered by Bedrock and Claude</span>
  <form method="post" action="/reset" style="padding:0;border:0"><button class="link" type="submit">New chat</button></form>
</div>
<script>var m=document.getElementById("messages");m.scrollTop=m.scrollHeight;</script>
</body>
</html>`))

type pageData struct {
	Title    string
	Messages []model.ChatMessage
	// Pending is the user text of a failed turn, shown above Error.
	Pending string
	Error   string
}

func (s *Server) renderPage(w http.ResponseWriter, code int, data pageData) {
	data.Title = s.title
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := page.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("render page")
	}
}
