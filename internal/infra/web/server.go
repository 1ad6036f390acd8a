package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/infra/i18n"
	"bedrock-chatbot/internal/infra/logging"
	"bedrock-chatbot/internal/usecase"
)

type Options struct {
	Title          string
	RequestTimeout time.Duration
	Translator     *i18n.Translator // defaults to i18n.Default()
}

type Server struct {
	chat    usecase.ChatUseCase
	stats   usecase.StatsUseCase // optional
	cookies *SessionCookies
	tr      *i18n.Translator
	title   string
	timeout time.Duration
	log     *zerolog.Logger
}

func NewServer(chat usecase.ChatUseCase, stats usecase.StatsUseCase, cookies *SessionCookies, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.Translator == nil {
		opts.Translator = i18n.Default()
	}
	return &Server{
		chat:    chat,
		stats:   stats,
		cookies: cookies,
		tr:      opts.Translator,
		title:   opts.Title,
		timeout: opts.RequestTimeout,
		log:     logger,
	}
}

// Routes builds the router for the chat page, the JSON API and ops endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))

		r.Get("/", s.handleIndex)
		r.Post("/chat", s.handleChatForm)
		r.Post("/reset", s.handleReset)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/messages", s.handleAPIMessage)
			r.Get("/transcript", s.handleAPITranscript)
			r.Get("/memory", s.handleAPIMemory)
			r.Delete("/session", s.handleAPIEndSession)
			r.Get("/usage", s.handleAPIUsage)
		})
	})
	return r
}

// session returns the caller's live session id, starting a new session
// when the cookie is missing, invalid or stale. The cookie is re-minted on
// every call so its expiry slides with activity like the store's idle TTL.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, error) {
	ctx := r.Context()
	id, err := s.cookies.SessionID(r)
	if err == nil {
		if _, err := s.chat.Transcript(ctx, id); errors.Is(err, domain.ErrNotFound) {
			id = ""
		} else if err != nil {
			return "", err
		}
	}
	if id == "" {
		sess, err := s.chat.StartSession(ctx)
		if err != nil {
			return "", err
		}
		id = sess.ID
	}
	if err := s.cookies.Mint(w, id); err != nil {
		return "", err
	}
	return id, nil
}

// ---- HTML ----

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id, err := s.session(w, r)
	if err != nil {
		s.fail(r.Context(), err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	msgs, err := s.chat.Transcript(r.Context(), id)
	if err != nil {
		code, msg := s.errorView(err)
		s.renderPage(w, code, pageData{Error: msg})
		return
	}
	s.renderPage(w, http.StatusOK, pageData{Messages: msgs})
}

func (s *Server) handleChatForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := s.session(w, r)
	if err != nil {
		s.fail(ctx, err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	text := r.FormValue("text")
	if _, err := s.chat.SendMessage(ctx, id, text); err != nil {
		s.fail(logging.WithSessID(ctx, id), err)
		code, msg := s.errorView(err)
		msgs, _ := s.chat.Transcript(ctx, id)
		s.renderPage(w, code, pageData{Messages: msgs, Pending: strings.TrimSpace(text), Error: msg})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if id, err := s.cookies.SessionID(r); err == nil {
		if err := s.chat.EndSession(r.Context(), id); err != nil {
			s.fail(r.Context(), err)
		}
	}
	s.cookies.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ---- JSON API ----

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAPIMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	id, err := s.session(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.chat.SendMessage(ctx, id, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{SessionID: id, Reply: reply})
}

func (s *Server) handleAPITranscript(w http.ResponseWriter, r *http.Request) {
	id, err := s.session(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msgs, err := s.chat.Transcript(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleAPIMemory(w http.ResponseWriter, r *http.Request) {
	id, err := s.session(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mem, err := s.chat.Memory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (s *Server) handleAPIEndSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.cookies.SessionID(r)
	if err == nil {
		if err := s.chat.EndSession(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIUsage(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "usage reporting disabled"})
		return
	}
	report, err := s.stats.Usage(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.fail(r.Context(), err)
	code, msg := s.errorView(err)
	writeJSON(w, code, errorResponse{Error: msg})
}

func (s *Server) fail(ctx context.Context, err error) {
	logging.With(ctx, s.log).Warn().Err(err).Msg("request failed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
