// Package adminhttp serves the operator HTTP surface: key-guarded admin
// endpoints for messaging recipients, plus health and metrics.
package adminhttp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

const shutdownTimeout = 5 * time.Second

// Response is the JSON envelope of every admin endpoint.
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// RecipientView is a recipient as listed by /admin/list.
type RecipientView struct {
	ID           string `json:"id"`
	Handle       string `json:"handle"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	IsSubscribed bool   `json:"is_subscribed"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Server holds the admin handlers.
type Server struct {
	notifier primary.NotificationService
	key      string
	logger   *slog.Logger
}

// NewServer creates a Server. Admin endpoints require key in the "key" query parameter.
func NewServer(notifier primary.NotificationService, key string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{notifier: notifier, key: key, logger: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/admin/personal", s.requireKey(http.HandlerFunc(s.handlePersonal)))
	mux.Handle("/admin/broadcast", s.requireKey(http.HandlerFunc(s.handleBroadcast)))
	mux.Handle("/admin/list", s.requireKey(http.HandlerFunc(s.handleList)))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			s.writeJSON(w, http.StatusUnauthorized, Response{Message: "missing key"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.key)) != 1 {
			s.writeJSON(w, http.StatusForbidden, Response{Message: "invalid key"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ctxutil.WithActorID(r.Context(), ctxutil.ActorAdmin)))
	})
}

// handlePersonal handles /admin/personal?username=&message=
func (s *Server) handlePersonal(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	username, message := query.Get("username"), query.Get("message")
	if username == "" || message == "" {
		s.writeJSON(w, http.StatusBadRequest, Response{Message: "username and message are required"})
		return
	}

	report, err := s.notifier.SendToOne(r.Context(), message, username)
	if errors.Is(err, secondary.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, Response{Message: "unknown username"})
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	if report.Sent == 0 {
		s.writeJSON(w, http.StatusBadGateway, Response{Message: "message was not delivered"})
		return
	}
	s.writeJSON(w, http.StatusOK, Response{OK: true, Message: "Message sent successfully"})
}

// handleBroadcast handles /admin/broadcast?message=[&isSubscribed=]
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		s.writeJSON(w, http.StatusBadRequest, Response{Message: "message is required"})
		return
	}
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	report, err := s.notifier.Broadcast(r.Context(), message, filter)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, Response{OK: true, Message: "Message broadcasted successfully", Result: report})
}

// handleList handles /admin/list[?isSubscribed=]
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	recipients, err := s.notifier.ListRecipients(r.Context(), filter)
	if err != nil {
		s.internalError(w, err)
		return
	}

	views := make([]RecipientView, len(recipients))
	for i, rc := range recipients {
		views[i] = RecipientView{
			ID:           rc.ID,
			Handle:       rc.Handle,
			Username:     rc.Name,
			FirstName:    rc.FirstName,
			IsSubscribed: rc.BroadcastSubscribed,
			State:        rc.ConversationState,
			CreatedAt:    rc.CreatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, Response{OK: true, Result: views})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{OK: true})
}

// parseFilter reads the optional isSubscribed query parameter.
func (s *Server) parseFilter(w http.ResponseWriter, r *http.Request) (primary.RecipientFilter, bool) {
	raw := r.URL.Query().Get("isSubscribed")
	if raw == "" {
		return primary.RecipientFilter{}, true
	}
	subscribed, err := strconv.ParseBool(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, Response{Message: "isSubscribed must be true or false"})
		return primary.RecipientFilter{}, false
	}
	return primary.RecipientFilter{Subscribed: &subscribed}, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("admin request failed", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, Response{Message: "internal error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
