package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/textmill/textmill/internal/output"
	"github.com/textmill/textmill/internal/preview"
	"github.com/textmill/textmill/internal/tmmetrics"
)

const createOutputBodyLimit = 10 * 1024 * 1024 // 10 MiB

type createOutputRequest struct {
	Content    string         `json:"content"`
	OutputType string         `json:"outputType"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type outputResponse struct {
	OutputID         string `json:"outputId"`
	OutputType       string `json:"outputType,omitempty"`
	Content          string `json:"content"`
	IsTruncated      bool   `json:"isTruncated"`
	FullWordCount    int    `json:"fullWordCount,omitempty"`
	PreviewWordCount int    `json:"previewWordCount,omitempty"`
	IsAnonymous      bool   `json:"isAnonymous"`
	OverrideApplied  bool   `json:"overrideApplied,omitempty"`
}

type outputSummary struct {
	OutputID    string    `json:"outputId"`
	OutputType  string    `json:"outputType,omitempty"`
	IsTruncated bool      `json:"isTruncated"`
	CreatedAt   time.Time `json:"createdAt"`
}

// handleCreateOutput stores a generated output under the caller's identity
// and returns the tier of content the caller is entitled to see.
func (d *Deps) handleCreateOutput(w http.ResponseWriter, r *http.Request) {
	id, err := d.resolveIdentity(r)
	if err != nil {
		log.Error().Err(err).Msg("resolve identity")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	override := ResolveOverride(d.Config, r)

	r.Body = http.MaxBytesReader(w, r.Body, createOutputBodyLimit)
	var req createOutputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	res := preview.Truncate(req.Content)

	var owner output.Owner
	switch {
	case id.User != nil:
		owner = output.UserOwner(id.User.ID)
	case override:
		// Privileged callers without an identity produce untracked outputs.
		owner = output.NoOwner()
	default:
		owner = output.SessionOwner(d.ensureAnonSession(w, r, &id))
	}

	rec := &output.Record{
		ID:          output.NewOutputID(),
		OutputType:  req.OutputType,
		FullContent: req.Content,
		Preview:     res.Preview,
		Truncated:   res.Truncated,
		Owner:       owner,
		Metadata:    req.Metadata,
	}
	if err := d.Outputs.Create(rec); err != nil {
		log.Error().Err(err).Msg("store output")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tmmetrics.OutputsCreatedTotal.WithLabelValues(string(owner.Kind())).Inc()

	// The creator sees full content only when privileged or subscribed.
	full := override || (id.User != nil && id.User.Pro)
	content := res.Preview
	truncated := res.Truncated
	if full {
		content = req.Content
		truncated = false
	}

	log.Info().
		Str("output_id", rec.ID).
		Str("owner_kind", string(owner.Kind())).
		Bool("truncated", truncated).
		Int("full_words", res.FullWordCount).
		Msg("Output created")

	writeJSON(w, http.StatusCreated, outputResponse{
		OutputID:         rec.ID,
		OutputType:       rec.OutputType,
		Content:          content,
		IsTruncated:      truncated,
		FullWordCount:    res.FullWordCount,
		PreviewWordCount: res.PreviewWordCount,
		IsAnonymous:      owner.Kind() == output.OwnerKindSession,
		OverrideApplied:  override,
	})
}

// handleGetOutput retrieves one output at the tier the caller is entitled
// to. Outputs the caller cannot see at all are reported as missing.
func (d *Deps) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	id, err := d.resolveIdentity(r)
	if err != nil {
		log.Error().Err(err).Msg("resolve identity")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	override := ResolveOverride(d.Config, r)

	rec, err := d.Outputs.GetByID(r.PathValue("output_id"))
	if err != nil {
		log.Error().Err(err).Msg("load output")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	decision, err := output.Decide(rec, id.requester(), override)
	if errors.Is(err, output.ErrNotFound) {
		tmmetrics.AccessDecisionsTotal.WithLabelValues("denied").Inc()
		writeError(w, http.StatusNotFound, "output not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tier := "preview"
	if decision.Authorized {
		tier = "full"
	}
	tmmetrics.AccessDecisionsTotal.WithLabelValues(tier).Inc()

	writeJSON(w, http.StatusOK, outputResponse{
		OutputID:        rec.ID,
		OutputType:      decision.OutputType,
		Content:         decision.Content,
		IsTruncated:     !decision.Authorized && rec.Truncated,
		IsAnonymous:     rec.Owner.Kind() == output.OwnerKindSession,
		OverrideApplied: override,
	})
}

// handleListOutputs lists the caller's own outputs, newest first.
func (d *Deps) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	id, err := d.resolveIdentity(r)
	if err != nil {
		log.Error().Err(err).Msg("resolve identity")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var records []*output.Record
	switch {
	case id.User != nil:
		records, err = d.Outputs.ListByUser(id.User.ID)
	case id.SessionID != "":
		records, err = d.Outputs.ListBySession(id.SessionID)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"outputs": []outputSummary{}, "count": 0})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("list outputs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := make([]outputSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, outputSummary{
			OutputID:    rec.ID,
			OutputType:  rec.OutputType,
			IsTruncated: rec.Truncated,
			CreatedAt:   rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"outputs": summaries, "count": len(summaries)})
}
