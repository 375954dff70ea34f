package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pbaille/mandalart/internal/client"
	"github.com/pbaille/mandalart/internal/domain"
	"github.com/pbaille/mandalart/internal/mandalart"
)

//go:embed templates/table.html
var templateFS embed.FS

var tableTemplate = template.Must(template.ParseFS(templateFS, "templates/table.html"))

// raw HTML in descriptions is dropped since goldmark is not built WithUnsafe
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type cellView struct {
	ID    int64
	Title string
	Class string
}

type tableData struct {
	Title       string
	Description template.HTML
	Error       string
	Roots       []domain.Epic
	Selected    int64
	Rows        [][]cellView
	Habits      []domain.Habit
	Overflow    []domain.Epic
}

// TableView renders one root epic as a 9x9 chart. ?root=<id> picks the root,
// otherwise the first top-level epic is shown.
type TableView struct {
	client *client.Client
	logger *log.Logger
}

// NewTableView creates the chart view
func NewTableView(c *client.Client, logger *log.Logger) *TableView {
	return &TableView{client: c, logger: logger}
}

func (v *TableView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := tableData{Title: "Mandalart"}

	epics, err := v.client.Epics.List(ctx)
	if err != nil {
		data.Error = "Could not load epics: " + err.Error()
		v.render(w, http.StatusBadGateway, data)
		return
	}

	data.Roots = mandalart.Roots(epics)
	if len(data.Roots) == 0 {
		v.render(w, http.StatusOK, data)
		return
	}

	root := &data.Roots[0]
	if raw := r.URL.Query().Get("root"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			data.Error = "Invalid root id"
			v.render(w, http.StatusBadRequest, data)
			return
		}
		found, ok := mandalart.Find(epics, id)
		if !ok {
			data.Error = "Epic " + raw + " not found"
			v.render(w, http.StatusNotFound, data)
			return
		}
		root = found
	}
	data.Selected = root.ID
	data.Title = root.Title
	data.Description = v.describe(root)

	grid := mandalart.Build(*root)
	data.Rows = rows(grid)
	data.Overflow = grid.Overflow

	habits, err := v.client.Habits.List(ctx, client.HabitFilter{EpicID: &root.ID})
	if err != nil {
		// the chart is still useful without habits
		v.logger.Warn("Habits unavailable", "epic", root.ID, "err", err)
	}
	data.Habits = habits

	v.render(w, http.StatusOK, data)
}

// describe renders the epic description as markdown, empty when there is none
func (v *TableView) describe(e *domain.Epic) template.HTML {
	if strings.TrimSpace(e.Description) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(e.Description), &buf); err != nil {
		v.logger.Warn("Render description", "epic", e.ID, "err", err)
		return template.HTML(template.HTMLEscapeString(e.Description))
	}
	return template.HTML(buf.String())
}

func (v *TableView) render(w http.ResponseWriter, status int, data tableData) {
	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, data); err != nil {
		v.logger.Error("Render table", "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func rows(g *mandalart.Grid) [][]cellView {
	out := make([][]cellView, domain.GridSize)
	for r := range out {
		out[r] = make([]cellView, domain.GridSize)
		for c := range out[r] {
			out[r][c] = cellOf(g, r, c)
		}
	}
	return out
}

func cellOf(g *mandalart.Grid, r, c int) cellView {
	class := ""
	switch {
	case r == domain.GridSize/2 && c == domain.GridSize/2:
		class = "root"
	case r%3 == 1 && c%3 == 1:
		class = "block-center"
	}

	cell := g.At(r, c)
	view := cellView{Class: class}
	if !cell.Empty() {
		view.ID = cell.Epic.ID
		view.Title = cell.Epic.Title
		switch {
		case cell.Mirror:
			view.Class = "mirror"
		case class == "":
			view.Class = "sub"
		}
	}
	if c%3 == 2 && c < domain.GridSize-1 {
		view.Class += " block-edge-right"
	}
	if r%3 == 2 && r < domain.GridSize-1 {
		view.Class += " block-edge-bottom"
	}
	view.Class = strings.TrimSpace(view.Class)
	return view
}
