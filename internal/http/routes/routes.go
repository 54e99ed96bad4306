package routes

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/img2prompt/cache"
	"github.com/briangreenhill/img2prompt/internal/auth"
	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/db"
	"github.com/briangreenhill/img2prompt/internal/email"
	"github.com/briangreenhill/img2prompt/internal/generator"
	appmw "github.com/briangreenhill/img2prompt/internal/http/middleware"
)

const sessionUserKey = "user_id"

// Queries is the slice of *db.Queries the handlers use.
type Queries interface {
	UpsertUserByEmail(ctx context.Context, arg db.UpsertUserByEmailParams) (db.User, error)
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	ListPromptsByUser(ctx context.Context, arg db.ListPromptsByUserParams) ([]db.PromptHistory, error)
}

// Enqueuer is implemented by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router *chi.Mux
	Sess   *scs.SessionManager
	Tmpl   *template.Template
	Q      Queries // nil when no database is configured
	Gen    *generator.Service
	Store  cache.Maintainer
	Magic  auth.MagicLink
	Email  email.Sender
	Jobs   Enqueuer
}

type ServerOptions struct {
	Sess    *scs.SessionManager
	Tmpl    *template.Template
	Q       Queries
	Gen     *generator.Service
	Store   cache.Maintainer
	Magic   auth.MagicLink
	Email   email.Sender
	Jobs    Enqueuer
	Metrics http.Handler
	Logger  zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	s := &Server{
		Router: r,
		Sess:   opts.Sess,
		Tmpl:   opts.Tmpl,
		Q:      opts.Q,
		Gen:    opts.Gen,
		Store:  opts.Store,
		Magic:  opts.Magic,
		Email:  opts.Email,
		Jobs:   opts.Jobs,
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(s.Sess.LoadAndSave)
	r.Use(s.sessionToContext)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Get("/", s.handleHome)
	r.Get("/image-to-prompt", s.handleImageToPrompt)
	r.Get("/login", s.handleLogin)
	r.Post("/auth/magic-link", s.handleMagicLink)
	r.Get("/auth/callback", s.handleCallback)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(api chi.Router) {
		api.Post("/generate-prompt", s.handleGeneratePrompt)
		api.Get("/cache/stats", s.handleCacheStats)
		api.Delete("/cache", s.handleCacheClear)

		api.Group(func(pr chi.Router) {
			pr.Use(appmw.RequireAuth)
			pr.Get("/prompts", s.handleListPrompts)
			pr.Post("/prompts/jobs", s.handleEnqueuePrompt)
		})
	})

	return s
}

func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := s.Sess.GetString(r.Context(), sessionUserKey); id != "" {
			r = r.WithContext(appmw.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	data["UserID"] = appmw.UserID(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Tmpl.ExecuteTemplate(w, name, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("template", name).Msg("render template failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home", map[string]any{"Title": "img2prompt: turn any image into a prompt"})
}

func (s *Server) handleImageToPrompt(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "image_to_prompt", map[string]any{
		"Title":    "Image to Prompt",
		"Variants": coze.Variants,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login", map[string]any{"Title": "Sign in"})
}

// ---- Magic link flow

func (s *Server) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if s.Q == nil {
		http.Error(w, "sign-in is unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	emailAddr := strings.ToLower(strings.TrimSpace(r.Form.Get("email")))
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}

	if _, err := s.Q.UpsertUserByEmail(r.Context(), db.UpsertUserByEmailParams{
		Email: emailAddr,
		Name:  pgtype.Text{},
	}); err != nil {
		log.Error().Err(err).Str("email", emailAddr).Msg("upsert user failed")
		http.Error(w, "could not issue link", http.StatusInternalServerError)
		return
	}

	link, err := s.Magic.URL(emailAddr, auth.DefaultLinkTTL)
	if err != nil {
		log.Error().Err(err).Msg("build magic link failed")
		http.Error(w, "could not issue link", http.StatusInternalServerError)
		return
	}

	if s.Email != nil {
		html := "<p>Click the link below to sign in:</p><p><a href=\"" + template.HTMLEscapeString(link) + "\">Sign in</a></p>"
		if err := s.Email.Send(emailAddr, "Your img2prompt sign-in link", html); err != nil {
			log.Warn().Err(err).Str("email", emailAddr).Msg("failed to send magic link email")
		}
	}

	s.render(w, r, "magic_sent", map[string]any{"Title": "Magic Link Sent", "Email": emailAddr})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if s.Q == nil {
		http.Error(w, "sign-in is unavailable", http.StatusServiceUnavailable)
		return
	}

	emailAddr, err := s.Magic.Verify(r.URL.Query().Get("token"))
	if err != nil {
		log.Info().Err(err).Msg("magic link verify failed")
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	user, err := s.Q.GetUserByEmail(r.Context(), emailAddr)
	if err != nil {
		log.Warn().Err(err).Str("email", emailAddr).Msg("user lookup failed")
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	if err := s.Sess.RenewToken(r.Context()); err != nil {
		log.Error().Err(err).Msg("renew session token failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.Sess.Put(r.Context(), sessionUserKey, user.ID.String())
	http.Redirect(w, r, "/image-to-prompt", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sess.Destroy(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("destroy session failed")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
