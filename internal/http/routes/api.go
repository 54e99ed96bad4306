package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/img2prompt/cache"
	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/db"
	"github.com/briangreenhill/img2prompt/internal/generator"
	appmw "github.com/briangreenhill/img2prompt/internal/http/middleware"
	"github.com/briangreenhill/img2prompt/internal/jobs"
)

const (
	historyLimit = 50
	maxFormBytes = coze.MaxImageBytes + 1<<20
)

type generateResponse struct {
	Success    bool        `json:"success"`
	Prompt     string      `json:"prompt"`
	Cached     bool        `json:"cached"`
	CacheStats cache.Stats `json:"cacheStats"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type promptView struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Variant     string    `json:"variant"`
	Source      string    `json:"source,omitempty"`
	Prompt      string    `json:"prompt"`
	FromCache   bool      `json:"fromCache"`
	CreatedAt   time.Time `json:"createdAt"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Success: false, Error: msg})
}

// parseGenerateForm accepts multipart uploads and plain urlencoded forms.
func parseGenerateForm(w http.ResponseWriter, r *http.Request) (generator.Request, error) {
	req := generator.Request{UseCache: true}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return req, err
		}
		file, header, err := r.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return req, err
		default:
			defer file.Close() //nolint:errcheck
			data, err := io.ReadAll(file)
			if err != nil {
				return req, err
			}
			req.Image = data
			req.Filename = header.Filename
			req.ContentType = header.Header.Get("Content-Type")
		}
	} else if err := r.ParseForm(); err != nil {
		return req, err
	}

	req.ImageURL = r.FormValue("imageUrl")
	req.Variant = r.FormValue("aiModel")
	if v := strings.TrimSpace(r.FormValue("useCache")); strings.EqualFold(v, "false") || v == "0" {
		req.UseCache = false
	}
	req.UserID = appmw.UserID(r.Context())
	return req, nil
}

func (s *Server) handleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	if s.Gen == nil {
		writeError(w, r, http.StatusServiceUnavailable, "prompt generation is not configured")
		return
	}

	req, err := parseGenerateForm(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	resp, err := s.Gen.Generate(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		var ge *generator.Error
		if errors.As(err, &ge) {
			status = ge.StatusCode()
		}
		writeError(w, r, status, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, generateResponse{
		Success:    true,
		Prompt:     resp.Result,
		Cached:     resp.FromCache,
		CacheStats: resp.CacheStats,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Store.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := s.Store.Clear()
	hlog.FromRequest(r).Info().Int("removed", removed).Msg("prompt cache cleared")
	writeJSON(w, r, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	if s.Q == nil {
		writeError(w, r, http.StatusServiceUnavailable, "prompt history is unavailable")
		return
	}
	uid, err := uuid.Parse(appmw.UserID(r.Context()))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "sign in required")
		return
	}

	rows, err := s.Q.ListPromptsByUser(r.Context(), db.ListPromptsByUserParams{UserID: uid, Limit: historyLimit})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list prompts failed")
		writeError(w, r, http.StatusInternalServerError, "could not load prompt history")
		return
	}

	prompts := make([]promptView, 0, len(rows))
	for _, p := range rows {
		prompts = append(prompts, promptView{
			ID:          p.ID.String(),
			Fingerprint: p.Fingerprint,
			Variant:     p.Variant,
			Source:      p.Source.String,
			Prompt:      p.Prompt,
			FromCache:   p.FromCache,
			CreatedAt:   p.CreatedAt.Time,
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "prompts": prompts})
}

func (s *Server) handleEnqueuePrompt(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "background generation is unavailable")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form")
		return
	}

	payload := jobs.GeneratePromptPayload{
		UserID:   appmw.UserID(r.Context()),
		ImageURL: strings.TrimSpace(r.Form.Get("imageUrl")),
		Variant:  strings.TrimSpace(r.Form.Get("aiModel")),
	}
	if payload.ImageURL == "" {
		writeError(w, r, http.StatusBadRequest, generator.ErrNoImage.Error())
		return
	}
	if payload.Variant == "" {
		writeError(w, r, http.StatusBadRequest, generator.ErrNoVariant.Error())
		return
	}

	task, err := jobs.NewGeneratePromptTask(payload)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to queue prompt job")
		return
	}
	info, err := s.Jobs.EnqueueContext(r.Context(), task)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("enqueue prompt job failed")
		writeError(w, r, http.StatusInternalServerError, "failed to queue prompt job")
		return
	}

	hlog.FromRequest(r).Info().Str("task_id", info.ID).Str("queue", info.Queue).Msg("prompt job queued")
	writeJSON(w, r, http.StatusAccepted, map[string]any{"success": true, "taskId": info.ID})
}
