package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/siherrmann/recaller/model"
)

// entityPromotion is one extracted entity with its promotion outcome.
// Promotion is nil when promotion was off or the session already handled
// the entity.
type entityPromotion struct {
	Name      string                  `json:"name"`
	Label     string                  `json:"label"`
	Skipped   bool                    `json:"skipped,omitempty"`
	Promotion *model.PromotionOutcome `json:"promotion,omitempty"`
}

func (s *Server) handleNER(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		Promote   *bool  `json:"promote"`
		TTLMillis *int64 `json:"ttl_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required", nil)
		return
	}
	if s.recaller.Pipeline == nil || s.recaller.Pipeline.Extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "entity extractor not configured", nil)
		return
	}

	keys, err := s.recaller.Pipeline.Extractor(req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "entity extraction failed", err)
		return
	}

	promote := req.Promote == nil || *req.Promote
	ttlMillis := s.recaller.DefaultTTLMillis()
	if req.TTLMillis != nil {
		ttlMillis = *req.TTLMillis
	}

	outcomeByKey := map[model.EntityKey]*model.PromotionOutcome{}
	if promote {
		outcomes, err := s.recaller.Promote(r.Context(), s.session, keys, ttlMillis)
		if err != nil {
			writeError(w, statusForError(err), "promotion failed", err)
			return
		}
		for _, outcome := range outcomes {
			outcomeByKey[outcome.Key] = outcome
		}
	}

	entities := []entityPromotion{}
	for _, key := range keys {
		entity := entityPromotion{Name: key.Name, Label: key.Label}
		if outcome, attempted := outcomeByKey[key]; attempted {
			entity.Promotion = outcome
		} else if promote {
			entity.Skipped = true
		}
		entities = append(entities, entity)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text":     req.Text,
		"entities": entities,
		"ttl_ms":   ttlMillis,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question required", nil)
		return
	}

	result, err := s.recaller.Ask(r.Context(), s.session, req.Question, req.TopK)
	if err != nil {
		writeError(w, statusForError(err), "ask failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		TTLMillis *int64 `json:"ttl_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required", nil)
		return
	}

	ttlMillis := s.recaller.DefaultTTLMillis()
	if req.TTLMillis != nil {
		ttlMillis = *req.TTLMillis
	}

	fact, err := s.recaller.Remember(r.Context(), req.Text, ttlMillis)
	if err != nil {
		writeError(w, statusForError(err), "remember failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, fact)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	relations, nodes, err := s.recaller.SweepNow(r.Context())
	if err != nil {
		writeError(w, statusForError(err), "sweep failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"relations": relations,
		"nodes":     nodes,
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	committed, err := s.recaller.CommitNow(r.Context())
	if err != nil {
		writeError(w, statusForError(err), "commit failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"committed": committed})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := s.recaller.ListUnexpiredDocuments(r.Context())
	if err != nil {
		writeError(w, statusForError(err), "list documents failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": documents})
}

func (s *Server) handleRelatedEntities(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	label := r.URL.Query().Get("label")
	if strings.TrimSpace(name) == "" || strings.TrimSpace(label) == "" {
		writeError(w, http.StatusBadRequest, "name and label required", nil)
		return
	}

	hops := 0
	if raw := r.URL.Query().Get("hops"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hops", err)
			return
		}
		hops = parsed
	}

	related, err := s.recaller.RelatedEntities(r.Context(), name, label, hops)
	if err != nil {
		writeError(w, statusForError(err), "related entities failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"related": related})
}
