package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"slices"

	appLog "choircal/internal/log"
	"choircal/internal/model"
	"choircal/internal/schedule"
)

//go:embed templates/board.html
var templateFS embed.FS

var boardTemplate = template.Must(template.New("board.html").Funcs(template.FuncMap{
	"rowClass": rowClass,
	"selected": func(periods []string, p string) bool { return slices.Contains(periods, p) },
}).ParseFS(templateFS, "templates/board.html"))

func rowClass(r model.BoardRow) string {
	switch r.Tag {
	case model.TagAlert:
		return "row-alert"
	case model.TagEnsembleHighlight:
		return "row-highlight"
	}
	return "row-" + r.Parity
}

type boardPage struct {
	Board schedule.Board
	Today string
}

// handleBoardPage renders the board as a standalone HTML page. The root
// element carries data-ready="true" once rendered so headless captures can
// wait for it.
func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	b := s.svc.Board(r.Context(), ParseSelection(r), now)

	page := boardPage{
		Board: b,
		Today: s.svc.Engine().Season().Today(now).Format("2006-01-02"),
	}

	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, page); err != nil {
		appLog.Error("board page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
