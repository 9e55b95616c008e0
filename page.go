package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"genre-classifier/genre"

	"github.com/mdobak/go-xerrors"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

type probabilityBar struct {
	Label       string
	Probability float64
	Percent     string
}

type pageData struct {
	Stats    genre.ModelStats
	Section  string
	URL      string
	Messages []string
	Result   *genre.Result
	Bars     []probabilityBar
	Failure  *userFailure
}

func parsePage() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/index.html")
}

func newBars(result *genre.Result) []probabilityBar {
	bars := make([]probabilityBar, len(result.Probabilities))
	for i, p := range result.Probabilities {
		bars[i] = probabilityBar{
			Label:       p.Label,
			Probability: p.Probability,
			Percent:     fmt.Sprintf("%.1f%%", p.Probability*100),
		}
	}
	return bars
}

func (s *server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Stats = s.stats
	if data.Result != nil {
		data.Bars = newBars(data.Result)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", slog.Any("error", xerrors.New(err)))
	}
}

func (s *server) renderFailure(w http.ResponseWriter, r *http.Request, data pageData, err error) {
	failure := describeFailure(err)
	data.Failure = &failure
	status := failure.Status
	if failure.Warning {
		// A warning is not a failed attempt; the form is shown again.
		status = http.StatusOK
	}
	s.render(w, r, status, data)
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{})
}

func (s *server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data := pageData{Section: "upload"}

	path, err := s.saveUpload(r)
	if err != nil {
		s.logFailure(ctx, "upload rejected", err)
		s.renderFailure(w, r, data, err)
		return
	}

	result, err := s.classify(ctx, path)
	if err != nil {
		s.logFailure(ctx, "classification failed", err)
		s.renderFailure(w, r, data, err)
		return
	}
	data.Messages = append(data.Messages, "Analysis Complete!")
	data.Result = result
	s.render(w, r, http.StatusOK, data)
}

func (s *server) handleYouTubePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := pageData{Section: "youtube", URL: r.FormValue("url")}

	path, err := s.acquireYouTube(ctx, data.URL, func(msg string) {
		data.Messages = append(data.Messages, msg)
	})
	if err != nil {
		s.logFailure(ctx, "youtube acquisition failed", err)
		s.renderFailure(w, r, data, err)
		return
	}

	result, err := s.classify(ctx, path)
	if err != nil {
		s.logFailure(ctx, "classification failed", err)
		s.renderFailure(w, r, data, err)
		return
	}
	data.Messages = append(data.Messages, "Analysis Complete!")
	data.Result = result
	s.render(w, r, http.StatusOK, data)
}
