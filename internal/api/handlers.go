package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/metrics"
	"github.com/sammcj/md-server/internal/taxonomy"
)

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if s.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	}

	req, err := parseConvertRequest(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			size := r.ContentLength
			if size <= maxErr.Limit {
				size = maxErr.Limit + 1
			}
			writeError(w, r, s.logger, taxonomy.FileTooLarge(size, maxErr.Limit, "request body"))
			return
		}
		writeError(w, r, s.logger, taxonomy.Wrap(err))
		return
	}

	out := s.converter.Convert(r.Context(), req)
	if out.Err != nil {
		writeError(w, r, s.logger, out.Err)
		return
	}

	requestID := requestIDFrom(r.Context())
	s.logger.WithFields(logrus.Fields{
		"request_id":    requestID,
		"source_type":   out.Metadata.SourceType,
		"markdown_size": out.Metadata.MarkdownSize,
		"duration_ms":   out.Metadata.ConversionTimeMS,
	}).Info("Conversion succeeded")

	meta := out.Metadata
	if meta.Warnings == nil {
		meta.Warnings = []string{}
	}
	writeJSON(w, s.logger, http.StatusOK, ConvertResponse{
		Success:   true,
		Markdown:  out.Markdown,
		Metadata:  meta,
		RequestID: requestID,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

type healthResponse struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Conversions   metrics.Snapshot `json:"conversions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, healthResponse{
		Status:        "healthy",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Conversions:   s.counters.Snapshot(),
	})
}

type formatsResponse struct {
	Formats []detection.Format `json:"formats"`
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, formatsResponse{Formats: detection.Formats(s.sizeLimit)})
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, s.logger, taxonomy.UnknownOperation(r.Method+" "+r.URL.Path, Endpoints))
}
