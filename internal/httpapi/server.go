package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/booking"
	"github.com/avilev/frontdesk/internal/bridge"
	"github.com/avilev/frontdesk/internal/config"
	"github.com/avilev/frontdesk/internal/observability"
	"github.com/avilev/frontdesk/internal/session"
)

// Server exposes the telephony webhook, the media-stream websocket,
// and the operational endpoints.
type Server struct {
	cfg      config.Config
	registry *session.Registry
	metrics  *observability.Metrics
	dialer   bridge.Dialer
	tools    bridge.ToolRunner
	cache    bridge.CacheWriter
	store    booking.Store
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, registry *session.Registry, metrics *observability.Metrics, dialer bridge.Dialer, tools bridge.ToolRunner, cache bridge.CacheWriter, store booking.Store, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		metrics:  metrics,
		dialer:   dialer,
		tools:    tools,
		cache:    cache,
		store:    store,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The media stream is opened server-to-server by the
			// telephony provider, which sends no Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Method(http.MethodPost, "/voice/incoming",
		verifySignature(s.cfg.TelephonyAuthToken, http.HandlerFunc(s.handleIncoming)))
	r.Get("/voice/media-stream", s.handleMediaStream)

	r.Get("/v1/calls", s.handleListCalls)
	r.Get("/v1/calls/{sid}", s.handleGetCall)
	r.Get("/v1/appointments", s.handleListAppointments)
	r.Get("/v1/appointments/{confirmation}", s.handleGetAppointment)
	r.Delete("/v1/appointments/{confirmation}", s.handleCancelAppointment)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"active_calls": s.registry.ActiveCount(),
	})
}

// handleIncoming answers the inbound-call webhook with TwiML that
// points the media stream at our websocket endpoint.
func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	callSID := strings.TrimSpace(r.PostFormValue("CallSid"))
	from := strings.TrimSpace(r.PostFormValue("From"))

	base := s.cfg.PublicURL
	if base == "" {
		base = "https://" + r.Host
	}
	streamURL, err := mediaStreamURL(base)
	if err != nil {
		s.log.WithError(err).Error("stream url build failed")
		twiml, rerr := renderRejectTwiML()
		if rerr != nil {
			respondError(w, http.StatusInternalServerError, "twiml_error", rerr.Error())
			return
		}
		respondXML(w, http.StatusOK, twiml)
		return
	}

	twiml, err := renderStreamTwiML(streamURL, from)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "twiml_error", err.Error())
		return
	}
	s.log.WithFields(logrus.Fields{
		"call_sid": callSID,
		"from":     from,
	}).Info("inbound call webhook")
	respondXML(w, http.StatusOK, twiml)
}

// handleMediaStream upgrades the media-stream socket and runs one
// bridge for the lifetime of the call.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// The call SID is unknown until the start frame arrives; a
	// connection id keeps early log lines correlatable.
	log := s.log.WithField("conn_id", uuid.NewString())

	observer := callObserver{registry: s.registry, metrics: s.metrics}
	b := bridge.New(conn, s.dialer, s.tools, s.cache, observer, bridge.Options{
		MaxCallDuration: s.cfg.MaxCallDuration,
		HardCutDelay:    s.cfg.HardCutDelay,
	}, log)

	if err := b.Run(r.Context()); err != nil {
		s.log.WithError(err).Warn("bridge run failed")
	}
}

func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	calls := s.registry.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC(),
		"active":       s.registry.ActiveCount(),
		"calls":        calls,
	})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(chi.URLParam(r, "sid"))
	if sid == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_sid", "missing call sid")
		return
	}
	call, err := s.registry.Get(sid)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, call)
}

// handleListAppointments returns the day's book for the front desk.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := booking.ParseDate(date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	appts, err := s.store.ListByDate(r.Context(), date)
	if err != nil {
		s.log.WithError(err).Error("appointment list failed")
		respondError(w, http.StatusInternalServerError, "store_error", "could not list appointments")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":         date,
		"appointments": appts,
	})
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	confirmation := strings.TrimSpace(chi.URLParam(r, "confirmation"))
	appt, err := s.store.GetByConfirmation(r.Context(), confirmation)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			respondError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		s.log.WithError(err).Error("appointment lookup failed")
		respondError(w, http.StatusInternalServerError, "store_error", "could not load appointment")
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	confirmation := strings.TrimSpace(chi.URLParam(r, "confirmation"))
	if err := s.store.CancelAppointment(r.Context(), confirmation); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			respondError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		s.log.WithError(err).Error("appointment cancel failed")
		respondError(w, http.StatusInternalServerError, "store_error", "could not cancel appointment")
		return
	}
	s.log.WithField("confirmation", confirmation).Info("appointment cancelled")
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": confirmation})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotLatency())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
