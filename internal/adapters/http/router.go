package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kirillkom/document-sorter/internal/config"
	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg       config.Config
	organizer ports.Organizer
	submitter ports.RunSubmitter
	runs      ports.RunReader
	storage   ports.ObjectStorage
	packager  ports.Packager
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

func NewRouter(
	cfg config.Config,
	organizer ports.Organizer,
	submitter ports.RunSubmitter,
	runs ports.RunReader,
	storage ports.ObjectStorage,
	packager ports.Packager,
) *Router {
	return &Router{
		cfg:       cfg,
		organizer: organizer,
		submitter: submitter,
		runs:      runs,
		storage:   storage,
		packager:  packager,
		logger:    slog.Default(),
	}
}

// WithMetrics enables request metrics and mounts /metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	// Pipeline routes go through the traffic gates; status reads do not.
	heavy := http.NewServeMux()
	heavy.HandleFunc("POST /v1/organize", rt.organize)
	heavy.HandleFunc("POST /v1/preview", rt.preview)
	heavy.HandleFunc("POST /v1/runs", rt.submitRun)
	gated := backpressureMiddleware(
		rateLimitMiddleware(heavy, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst),
		rt.cfg.APIMaxInFlight,
		rt.cfg.APIQueueWait,
	)
	mux.Handle("POST /v1/organize", gated)
	mux.Handle("POST /v1/preview", gated)
	mux.Handle("POST /v1/runs", gated)

	mux.HandleFunc("GET /v1/runs/{id}", rt.getRun)
	mux.HandleFunc("GET /v1/runs/{id}/archive", rt.getRunArchive)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) organize(w http.ResponseWriter, r *http.Request) {
	req, err := rt.readRequest(w, r, "organize")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := rt.organizer.Organize(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.packager.WriteZip(r.Context(), result.Tree, &buf); err != nil {
		writeError(w, err)
		return
	}
	if report, err := json.Marshal(result.Report.Stages); err == nil {
		w.Header().Set("X-Stage-Report", string(report))
	}
	writeZip(w, "organized.zip", buf.Bytes())
}

func (rt *Router) preview(w http.ResponseWriter, r *http.Request) {
	req, err := rt.readRequest(w, r, "preview")
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := rt.organizer.Preview(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (rt *Router) submitRun(w http.ResponseWriter, r *http.Request) {
	req, err := rt.readRequest(w, r, "runs")
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := rt.submitter.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := rt.runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) getRunArchive(w http.ResponseWriter, r *http.Request) {
	run, err := rt.runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if run.Status != domain.RunReady || run.ArchiveKey == "" {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "run archive is not ready",
			"status": string(run.Status),
		})
		return
	}

	archive, err := rt.storage.Open(r.Context(), run.ArchiveKey)
	if err != nil {
		writeError(w, err)
		return
	}
	defer archive.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+run.ID+`.zip"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, archive); err != nil {
		rt.logger.Warn("archive_stream_failed", "run_id", run.ID, "error", err)
	}
}

func (rt *Router) readRequest(w http.ResponseWriter, r *http.Request, endpoint string) (domain.OrganizeRequest, error) {
	req, err := parseOrganizeRequest(w, r, rt.cfg.MaxUploadBytes)
	if err != nil {
		return domain.OrganizeRequest{}, err
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, endpoint, len(req.Uploads))
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeZip(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
