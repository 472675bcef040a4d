// Package dashboard serves the live status page: a JSON endpoint for
// tooling and an HTML endpoint for humans, both reading the same
// snapshot the reconciler produced.
package dashboard

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/landbot/landbot/internal/snapshot"
)

var pageTemplate = template.Must(template.New("status").Funcs(template.FuncMap{
	"stateColor": stateColor,
}).Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Repo}} - landbot status</title></head>
<body>
<h1>{{.Repo}}</h1>
<p>updated {{.UpdatedAt}}</p>
<table border="1" cellpadding="4">
<tr><th>#</th><th>title</th><th>state</th><th>approvals</th><th>sha</th></tr>
{{range .Records}}
<tr style="color:{{stateColor .State}}">
<td>{{.Num}}</td><td>{{.Title}}</td><td>{{.State}}</td><td>{{.Approvals}}</td><td>{{.SHA}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

func stateColor(state string) string {
	switch state {
	case "bad", "stale":
		return "#dc3545"
	case "tested":
		return "#198754"
	case "pending", "approved":
		return "#0d6efd"
	default:
		return "#6c757d"
	}
}

// Server exposes the most recent reconciliation result over HTTP. Update
// is called after every pass; handlers read the latest snapshot under a
// read lock, and Update waits only for handlers already in flight.
type Server struct {
	mu      sync.RWMutex
	repo    string
	records []snapshot.Record
	updated string
}

// New builds a Server with an empty snapshot.
func New(repo string) *Server {
	return &Server{repo: repo}
}

// Update replaces the snapshot shown by the dashboard. Safe to call
// concurrently with request handling.
func (s *Server) Update(records []snapshot.Record, updatedAt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.updated = updatedAt
}

// RegisterRoutes wires /status and /status.html into r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/status", s.handleJSON).Methods("GET")
	r.HandleFunc("/status.html", s.handleHTML).Methods("GET")
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := snapshot.MarshalJSON(s.repo, s.records)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := struct {
		Repo      string
		UpdatedAt string
		Records   []snapshot.Record
	}{Repo: s.repo, UpdatedAt: s.updated, Records: s.records}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
