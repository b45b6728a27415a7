package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/Dan9191/loan-service/internal/integrations/partner"
	"github.com/Dan9191/loan-service/internal/middleware"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/Dan9191/loan-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 10 << 20

// Pinger reports database liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc *service.Service
	db  Pinger
	log *logrus.Logger
}

func NewHandler(svc *service.Service, db Pinger, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, db: db, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// SubmitApplication accepts and scores a loan application
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := middleware.Caller(r.Context())
	var req service.SubmitRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	app, err := h.svc.Submit(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, app)
}

// GetApplication returns one application by reference
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	userID, role, _ := middleware.Caller(r.Context())
	app, err := h.svc.GetApplication(r.Context(), mux.Vars(r)["reference"], userID, role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// IncomeBarrier returns the high-income threshold currently applied
func (h *Handler) IncomeBarrier(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"incomeBarrier": h.svc.IncomeBarrier(r.Context())})
}

// Rescore runs an interactive rescore batch for an officer or admin
func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := middleware.Caller(r.Context())
	h.rescore(w, r, &userID, service.TriggerInteractive)
}

// ScheduledRescore runs a rescore batch for the external scheduler
func (h *Handler) ScheduledRescore(w http.ResponseWriter, r *http.Request) {
	h.rescore(w, r, nil, service.TriggerScheduled)
}

func (h *Handler) rescore(w http.ResponseWriter, r *http.Request, actor *int64, trigger service.Trigger) {
	var req models.RescoreRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	summary, err := h.svc.Rescore(r.Context(), req, actor, trigger)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// PartnerIngest stores a signed partner batch, JSON or XML
func (h *Handler) PartnerIngest(w http.ResponseWriter, r *http.Request) {
	var req *models.PartnerIngestRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/xml", "text/xml":
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			h.writeError(w, invalidBody("failed to read body"))
			return
		}
		req, err = partner.ParseXML(raw)
		if err != nil {
			h.writeError(w, invalidBody(err.Error()))
			return
		}
	default:
		req = &models.PartnerIngestRequest{}
		if !h.decode(w, r, req, false) {
			return
		}
	}

	result, err := h.svc.IngestPartnerData(r.Context(), *req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// Healthz reports liveness of the service and its database
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.Errorf("Health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v. allowEmpty accepts a missing body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	h.writeError(w, invalidBody("malformed JSON body"))
	return false
}

func invalidBody(message string) error {
	verr := &models.ValidationError{}
	verr.Add("body", message)
	return verr
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.log.Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
