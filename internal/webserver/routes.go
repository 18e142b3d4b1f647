package webserver

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/internal/evaluate"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

//go:embed templates/*.html
var templateFS embed.FS

type handlers struct {
	pager  Pager
	logger log.Logger
	page   *template.Template
	md     goldmark.Markdown
}

func newHandlers(pager Pager, logger log.Logger) (*handlers, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse page template")
	}
	return &handlers{pager: pager, logger: logger, page: tmpl, md: goldmark.New()}, nil
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/classify", h.handleClassify)
	mux.HandleFunc("GET /{$}", h.handlePage)
}

// pageView adds the rendered description to the page.
type pageView struct {
	*app.Page
	DescriptionHTML template.HTML
}

func (h *handlers) handlePage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	page, err := h.pager.Page(r.Context(), app.SelectionFromValues(r.URL.Query()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	view := pageView{Page: page}
	if page.Raw != nil {
		html, err := h.markdown(page.Raw.Description)
		if err != nil {
			h.writeError(w, err)
			return
		}
		view.DescriptionHTML = html
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, view); err != nil {
		h.writeError(w, errors.Wrap(err, "failed to render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w) //nolint:errcheck

	h.logger.Debug("page served",
		log.ModelNameKey, string(page.Algorithm),
		"classified", page.Result != nil,
		log.DurationMsKey, time.Since(start).Milliseconds())
}

// classifyResponse is the JSON body of /api/classify.
type classifyResponse struct {
	RunID     string            `json:"run_id"`
	Algorithm string            `json:"algorithm"`
	Params    map[string]string `json:"params"`
	Report    evaluate.Report   `json:"report"`
	Raw       evaluate.Report   `json:"raw"`
}

func (h *handlers) handleClassify(w http.ResponseWriter, r *http.Request) {
	sel := app.SelectionFromValues(r.URL.Query())
	sel.Classify = true
	sel.ShowRaw = false
	sel.Plots = nil

	page, err := h.pager.Page(r.Context(), sel)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if page.Error != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": page.Error})
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{
		RunID:     page.Result.RunID,
		Algorithm: string(page.Algorithm),
		Params:    page.Values,
		Report:    page.Result.Report,
		Raw:       page.Result.Raw,
	})
}

// handleHealth returns a simple health check response.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(src), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render description")
	}
	return template.HTML(buf.String()), nil //nolint:gosec // trusted embedded markdown
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	var valueErr *errors.ValueError
	switch {
	case errors.Is(err, errors.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &valueErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
