package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/logging"
	"github.com/go-chi/chi/v5"
)

// progressPollInterval is how often the event stream samples progress.
var progressPollInterval = 250 * time.Millisecond

var errLoadRunning = errors.New("load still running")

type startLoadResponse struct {
	LoadID string `json:"loadId"`
	Format string `json:"format"`
	Size   string `json:"size"`
}

// handleStartLoad spools the upload to disk and starts loading it into the
// table named in the path. It answers 202 with the load id as soon as the
// load has a slot; progress and results are polled separately.
func (s *Server) handleStartLoad(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	body, name, err := s.openUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := s.loadRequest(r.URL.Query(), table, name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	file, size, err := spool(s.cfg.Load.SpoolDir, body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.Size = size

	id, err := s.svc.StartLoad(r.Context(), req, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("load accepted",
		"load_id", id,
		"table", table,
		"format", req.Format.Name,
		"size", humanSize(size),
	)
	w.Header().Set("Location", "/api/loads/"+id)
	writeJSON(w, http.StatusAccepted, startLoadResponse{
		LoadID: id,
		Format: req.Format.Name,
		Size:   humanSize(size),
	})
}

type progressResponse struct {
	loader.LoadProgress
	Percent        int    `json:"percent"`
	BytesReadHuman string `json:"bytesReadHuman"`
	ErrorCode      string `json:"errorCode,omitempty"`
}

func toProgressResponse(p loader.LoadProgress) progressResponse {
	resp := progressResponse{
		LoadProgress:   p,
		Percent:        p.Percent(),
		BytesReadHuman: humanSize(p.BytesRead),
	}
	if p.Error != "" {
		resp.ErrorCode = loader.MapReason(p.Error).Code
	}
	return resp
}

type resultResponse struct {
	*loader.LoadResult
	DurationMs int64  `json:"durationMs"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Action     string `json:"action,omitempty"`
}

func toResultResponse(res *loader.LoadResult) resultResponse {
	resp := resultResponse{LoadResult: res, DurationMs: res.Duration.Milliseconds()}
	if res.Error != "" {
		msg := loader.MapReason(res.Error)
		resp.ErrorCode, resp.Action = msg.Code, msg.Action
	}
	return resp
}

// handleLoadProgress returns a progress snapshot.
func (s *Server) handleLoadProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Progress(chi.URLParam(r, "loadID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(p))
}

// handleLoadResult returns the final result. A running load answers 202
// with its progress unless wait=true, which blocks until the load ends or
// the request times out.
func (s *Server) handleLoadResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "loadID")
	wait, err := parseBool(r.URL.Query(), "wait")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if !wait {
		p, err := s.svc.Progress(id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if !p.Phase.Done() {
			writeJSON(w, http.StatusAccepted, toProgressResponse(p))
			return
		}
	}

	res, err := s.svc.Result(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(res))
}

// handleCancelLoad requests cancellation. The load rolls back and ends in
// the cancelled phase shortly after.
func (s *Server) handleCancelLoad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "loadID")
	if err := s.svc.Cancel(id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"loadId": id, "status": "cancelling"})
}

// handleExportRejected downloads the rejected rows of a finished load as
// CSV: the row number, byte offset, error code and reason, then the row's
// raw values.
func (s *Server) handleExportRejected(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "loadID")

	p, err := s.svc.Progress(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !p.Phase.Done() {
		respondError(w, r, fmt.Errorf("%w: %s", errLoadRunning, id))
		return
	}
	res, err := s.svc.Result(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	width := 0
	for _, row := range res.RejectedRows {
		width = max(width, len(row.Data))
	}
	header := []string{"_row", "_offset", "_code", "_reason"}
	for i := 1; i <= width; i++ {
		header = append(header, "column_"+strconv.Itoa(i))
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-rejected.csv"`, id))

	cw := csv.NewWriter(w)
	cw.Write(header)
	for _, row := range res.RejectedRows {
		record := []string{
			strconv.Itoa(row.Row),
			strconv.FormatInt(row.Offset, 10),
			loader.MapReason(row.Reason).Code,
			row.Reason,
		}
		cw.Write(append(record, row.Data...))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("rejected rows export failed", "load_id", id, "error", err)
	}
}

// handleLoadEvents streams progress as server-sent events until the load
// ends, then sends a complete event carrying the result.
//
// Event ids are the progress percentage. A client reconnecting with
// Last-Event-ID (or lastEventId in the query) skips events it has seen.
func (s *Server) handleLoadEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "loadID")
	p, err := s.svc.Progress(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("lastEventId")
	}
	resumeAfter, err := strconv.Atoi(lastID)
	if err != nil {
		resumeAfter = -1
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	rc := http.NewResponseController(w)
	clearWriteDeadline(w)

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	var sent loader.LoadProgress
	for {
		if p != sent && p.Percent() > resumeAfter {
			data, _ := json.Marshal(toProgressResponse(p))
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", p.Percent(), data)
			rc.Flush()
			sent = p
		}

		if p.Phase.Done() {
			res, err := s.svc.Result(r.Context(), id)
			if err != nil {
				writeEventError(w, err)
			} else {
				data, _ := json.Marshal(toResultResponse(res))
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
			}
			rc.Flush()
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		if p, err = s.svc.Progress(id); err != nil {
			writeEventError(w, err)
			rc.Flush()
			return
		}
	}
}

func writeEventError(w http.ResponseWriter, err error) {
	msg := loader.MapError(err)
	data, _ := json.Marshal(ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
}

// handlePreview scans the start of the upload without loading it. Only the
// rows returned are read from the request.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, name, err := s.openUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := s.previewRequest(r.URL.Query(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.svc.Preview(r.Context(), req, body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
