package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/go-chi/chi/v5"
)

// healthPingTimeout bounds the database check in /healthz.
const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string               `json:"status"`
	Database string               `json:"database,omitempty"`
	Loads    loader.LimiterStatus `json:"loads"`
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Loads: s.svc.LimiterStatus()}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}

// handleStatus returns load slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.LimiterStatus())
}

type formatResponse struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Delimiter        string   `json:"delimiter"`
	Quote            string   `json:"quote"`
	Escape           string   `json:"escape"`
	Escaping         string   `json:"escaping"`
	TrimLeadingSpace bool     `json:"trimLeadingSpace"`
	Fixed            bool     `json:"fixed"`
	Extensions       []string `json:"extensions"`
	Default          bool     `json:"default,omitempty"`
}

func toFormatResponse(f loader.Format) formatResponse {
	resp := formatResponse{
		Name:             f.Name,
		Description:      f.Description,
		Delimiter:        loader.CharString(f.Delimiter),
		Quote:            loader.CharString(f.Quote),
		Escape:           loader.CharString(f.Escape),
		TrimLeadingSpace: f.TrimLeadingSpace,
		Fixed:            f.Fixed(),
		Extensions:       f.Extensions,
	}
	if p, err := f.Parser(); err == nil {
		resp.Escaping = p.Escaping().String()
	}
	return resp
}

// handleListFormats returns the registered formats. The server default is
// listed as configured, overrides included.
func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	all := loader.Formats()
	out := make([]formatResponse, 0, len(all))
	for _, f := range all {
		if f.Name == s.defaultFormat.Name {
			f = s.defaultFormat
		}
		resp := toFormatResponse(f)
		resp.Default = f.Name == s.defaultFormat.Name
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDescribeTable returns the destination columns of a table.
func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	t, err := s.svc.DescribeTable(r.Context(), r.URL.Query().Get(paramSchema), table)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
