package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/template-marketplace/internal/catalog"
	"github.com/terra-clan/template-marketplace/internal/metrics"
	"github.com/terra-clan/template-marketplace/internal/models"
)

// Catalog handlers

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec, err := models.ParseQuerySpec(q.Get("category"), q.Get("source"), q.Get("search"), q.Get("sort"))
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	results := catalog.Query(s.catalog.Snapshot(), spec)
	metrics.RecordQuery(string(spec.Sort), len(results))

	views := make([]templateView, 0, len(results))
	for _, rec := range results {
		views = append(views, newTemplateView(rec))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": views,
		"total":     len(views),
		"query":     spec,
	})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "template id must be an integer")
		return
	}

	rec := s.catalog.Get(id)
	if rec == nil {
		respondError(w, http.StatusNotFound, "not_found", "template not found")
		return
	}

	respondJSON(w, http.StatusOK, newTemplateView(rec))
}

type sourceCount struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := s.catalog.Snapshot()

	sources := []sourceCount{{Key: models.FilterAll, Label: "All Sources", Count: catalog.CountBySource(snapshot, models.FilterAll)}}
	for _, src := range models.Sources {
		sources = append(sources, sourceCount{
			Key:   string(src),
			Label: sourceLabels[src],
			Count: catalog.CountBySource(snapshot, string(src)),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"summary": catalog.Summarize(snapshot),
		"sources": sources,
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	counts := catalog.ChannelCounts(s.catalog.Snapshot())

	tabs := make([]channelTab, 0, len(counts))
	for _, c := range counts {
		display := allChannelsDisplay
		if c.Key != models.FilterAll {
			display = displayFor(models.Channel(c.Key))
		}
		tabs = append(tabs, channelTab{Key: c.Key, Count: c.Count, ChannelDisplay: display})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"channels": tabs,
	})
}
