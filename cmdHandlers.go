package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"genre-classifier/config"
	"genre-classifier/genre"
	"genre-classifier/utils"
	"genre-classifier/youtube"

	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// Acquirer fetches remote audio to a local file.
type Acquirer interface {
	Download(ctx context.Context, url string) (string, error)
}

var allowedUploadExts = map[string]bool{".wav": true, ".mp3": true}

var errUnsupportedUpload = errors.New("unsupported file type")

// server holds the process-wide handles. Nothing in it changes after startup.
type server struct {
	cfg        config.Config
	pipeline   *genre.Pipeline
	stats      genre.ModelStats
	downloader Acquirer
	page       *template.Template
	logger     *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, failure userFailure) {
	status := failure.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, apiError{Message: failure.Message, Detail: failure.Detail, Stage: string(failure.Stage)})
}

// userFailure is the human-readable form of a failed attempt.
type userFailure struct {
	Status  int
	Message string
	Detail  string
	Stage   genre.Stage
	Warning bool
}

func describeFailure(err error) userFailure {
	stage := genre.FailedStage(err)

	var (
		exitErr  *youtube.ExitError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.Is(err, youtube.ErrEmptyURL):
		return userFailure{Status: http.StatusBadRequest, Message: "Please enter a YouTube URL.", Stage: stage, Warning: true}
	case errors.Is(err, youtube.ErrTimeout):
		return userFailure{Status: http.StatusGatewayTimeout, Message: "The download process took too long and was timed out. Please try a different video.", Stage: stage}
	case errors.As(err, &exitErr):
		return userFailure{
			Status:  http.StatusBadGateway,
			Message: "Error downloading or processing YouTube video. Please check the URL.",
			Detail:  "yt-dlp error: " + strings.TrimSpace(exitErr.Stderr),
			Stage:   stage,
		}
	case errors.Is(err, youtube.ErrNotFound):
		return userFailure{Status: http.StatusBadGateway, Message: "Failed to find the downloaded audio file from YouTube.", Stage: stage}
	case errors.As(err, &tooLarge):
		return userFailure{Status: http.StatusRequestEntityTooLarge, Message: "The uploaded file is too large.", Stage: stage}
	case errors.Is(err, errUnsupportedUpload):
		return userFailure{Status: http.StatusBadRequest, Message: "Please upload a .wav or .mp3 file.", Detail: err.Error(), Stage: stage}
	case stage == genre.StageExtracting:
		return userFailure{Status: http.StatusUnprocessableEntity, Message: "Error processing audio file.", Detail: unwrapStage(err), Stage: stage}
	case stage == genre.StagePredicting:
		return userFailure{Status: http.StatusInternalServerError, Message: "The model could not classify this audio.", Detail: unwrapStage(err), Stage: stage}
	}
	return userFailure{Status: http.StatusInternalServerError, Message: "An unexpected error occurred.", Detail: err.Error(), Stage: stage}
}

func unwrapStage(err error) string {
	var se *genre.StageError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}

// saveUpload stores the multipart "audio" part under a unique temp name.
func (s *server) saveUpload(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: fmt.Errorf("%w: %s", errUnsupportedUpload, header.Filename)}
	}

	if err := utils.CreateFolder(s.cfg.TempDir); err != nil {
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	path := filepath.Join(s.cfg.TempDir, utils.UniqueName("upload")+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	return path, nil
}

// acquireYouTube downloads url, reporting progress through status.
func (s *server) acquireYouTube(ctx context.Context, url string, status func(string)) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", &genre.StageError{Stage: genre.StageIdle, Err: youtube.ErrEmptyURL}
	}
	status("Downloading the first 30 seconds of audio from YouTube...")
	path, err := s.downloader.Download(ctx, url)
	if err != nil {
		return "", &genre.StageError{Stage: genre.StageAcquiring, Err: err}
	}
	status("Audio downloaded successfully. Analyzing...")
	return path, nil
}

// classify runs the model on an acquired file and links the audio for
// playback. Nothing about the result outlives the response.
func (s *server) classify(ctx context.Context, path string) (*genre.Result, error) {
	result, err := s.pipeline.ClassifyFile(ctx, path)
	if err != nil {
		return nil, err
	}
	result.Source = filepath.Base(path)
	result.AudioURL = "/audio/" + filepath.Base(path)
	return result, nil
}

func (s *server) logFailure(ctx context.Context, msg string, err error) {
	failure := describeFailure(err)
	if failure.Warning {
		s.logger.WarnContext(ctx, msg, slog.String("reason", failure.Message))
		return
	}
	s.logger.ErrorContext(ctx, msg, slog.String("stage", string(failure.Stage)), slog.Any("error", xerrors.New(err)))
}

func (s *server) handleUploadAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	path, err := s.saveUpload(r)
	if err != nil {
		s.logFailure(ctx, "upload rejected", err)
		writeJSONError(w, describeFailure(err))
		return
	}

	result, err := s.classify(ctx, path)
	if err != nil {
		s.logFailure(ctx, "classification failed", err)
		writeJSONError(w, describeFailure(err))
		return
	}
	s.logger.InfoContext(ctx, "classified upload",
		slog.String("label", result.Label),
		slog.Float64("latencyMs", result.LatencyMs),
	)
	writeJSON(w, http.StatusOK, result)
}

type youtubeRequest struct {
	URL string `json:"url"`
}

func (s *server) handleYouTubeAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req youtubeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			writeJSONError(w, userFailure{Status: http.StatusBadRequest, Message: "invalid request payload"})
			return
		}
	} else {
		req.URL = r.FormValue("url")
	}

	path, err := s.acquireYouTube(ctx, req.URL, func(msg string) {
		s.logger.InfoContext(ctx, msg, slog.String("url", req.URL))
	})
	if err != nil {
		s.logFailure(ctx, "youtube acquisition failed", err)
		writeJSONError(w, describeFailure(err))
		return
	}

	result, err := s.classify(ctx, path)
	if err != nil {
		s.logFailure(ctx, "classification failed", err)
		writeJSONError(w, describeFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAudio serves an acquired file for the result page's player. Only
// bare file names inside the temp directory are accepted.
func (s *server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.TempDir, name))
}

// routes wires every HTTP endpoint except socket.io.
func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /classify/upload", s.handleUploadPage)
	mux.HandleFunc("POST /classify/youtube", s.handleYouTubePage)
	mux.HandleFunc("POST /api/classify/upload", s.handleUploadAPI)
	mux.HandleFunc("POST /api/classify/youtube", s.handleYouTubeAPI)
	mux.HandleFunc("GET /api/model", s.handleModel)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /audio/{name}", s.handleAudio)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles()))))
}

func newServer(cfg config.Config, model *genre.Model, downloader Acquirer) (*server, error) {
	extractor, err := genre.NewExtractor(genre.LoadOptions{
		SampleRate:  cfg.SampleRate,
		MaxDuration: cfg.MaxDuration,
		FFmpegPath:  cfg.FFmpegPath,
	}, cfg.NumMFCC)
	if err != nil {
		return nil, err
	}
	page, err := parsePage()
	if err != nil {
		return nil, err
	}

	return &server{
		cfg:        cfg,
		pipeline:   genre.NewPipeline(model, extractor),
		stats:      model.Stats(),
		downloader: downloader,
		page:       page,
		logger:     utils.GetLogger(),
	}, nil
}

func serve(cfg config.Config) {
	logger := utils.GetLogger()
	ctx, stop := signalContext()
	defer stop()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	model, err := genre.LoadModel(cfg.ModelPath)
	if err != nil {
		if errors.Is(err, genre.ErrModelNotFound) {
			log.Fatalf("Error: '%s' not found. Please make sure the model file is available.", cfg.ModelPath)
		}
		log.Fatalf("failed to load genre model: %v", err)
	}
	stats := model.Stats()
	logger.Info("model loaded",
		slog.String("path", stats.Path),
		slog.String("kind", stats.Kind),
		slog.Int("classes", len(stats.Classes)),
	)
	if stats.FeatureCount != cfg.NumMFCC {
		log.Fatalf("model expects %d features but GENRE_N_MFCC is %d", stats.FeatureCount, cfg.NumMFCC)
	}

	downloader := youtube.NewDownloader(youtube.Options{
		Binary:      cfg.YTDLPPath,
		OutputDir:   cfg.TempDir,
		Timeout:     cfg.DownloadTimeout,
		ClipSeconds: cfg.ClipSeconds,
	})

	srv, err := newServer(cfg, model, downloader)
	if err != nil {
		log.Fatalf("failed to initialise server: %v", err)
	}
	logger.Info("youtube acquisition configured",
		slog.String("binary", cfg.YTDLPPath),
		slog.Duration("timeout", downloader.Timeout()),
	)

	socketServer := newSocketServer(newSocketController(srv))
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer socketServer.Close()

	go runTempJanitor(ctx, cfg.TempDir, cfg.TempTTL, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)
	srv.routes(mux)

	serveHTTP(ctx, cfg, mux)
}

func serveHTTP(ctx context.Context, cfg config.Config, handler http.Handler) {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.Protocol == "https" {
			httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			log.Printf("Starting HTTPS server on %s\n", httpServer.Addr)
			errCh <- httpServer.ListenAndServeTLS(cfg.CertFile, cfg.CertKey)
			return
		}
		log.Printf("Starting HTTP server on port %v", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server: %v", err)
		}
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
	}
}
