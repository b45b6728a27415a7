package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence the service depends on
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)

	CreateApplication(ctx context.Context, app *models.Application, signals *models.SignalSet, audit *models.AuditLog) error
	GetApplication(ctx context.Context, reference string) (*models.Application, error)
	LoadSignals(ctx context.Context, applicationID int64) (*models.SignalSet, error)
	SaveDecision(ctx context.Context, app *models.Application, audit *models.AuditLog) error
	SelectForRescore(ctx context.Context, filter models.RescoreFilter) ([]*models.Application, error)
	IngestPartnerData(ctx context.Context, app *models.Application, create bool, signals *models.SignalSet, audit *models.AuditLog) error
}

// Scorer calls the external scoring service
type Scorer interface {
	Score(ctx context.Context, payload *models.ScoreRequest) (*models.ScoreResult, error)
}

// BarrierProvider returns the current income barrier, never failing
type BarrierProvider interface {
	Get(ctx context.Context) float64
}

// Notifier delivers decision notifications
type Notifier interface {
	SendDecision(to, username string, app *models.Application) error
}

// Service handles business logic
type Service struct {
	store      Store
	scorer     Scorer
	barrier    BarrierProvider
	notifier   Notifier
	normalizer *Normalizer
	log        *logrus.Logger
	config     *config.Config
	now        func() time.Time
}

// NewService initializes a new service
func NewService(store Store, scorer Scorer, barrier BarrierProvider, notifier Notifier, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		store:      store,
		scorer:     scorer,
		barrier:    barrier,
		notifier:   notifier,
		normalizer: NewNormalizer(cfg.Policy),
		log:        log,
		config:     cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username                string `json:"username"`
	Email                   string `json:"email"`
	Password                string `json:"password"`
	Age                     int    `json:"age"`
	HasChildren             bool   `json:"hasChildren"`
	IsSociallyDisadvantaged bool   `json:"isSociallyDisadvantaged"`
}

// Register creates a new applicant with hashed password
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	verr := &models.ValidationError{}
	if strings.TrimSpace(req.Username) == "" {
		verr.Add("username", "is required")
	}
	if !strings.Contains(req.Email, "@") {
		verr.Add("email", "must be a valid email address")
	}
	if len(req.Password) < 8 {
		verr.Add("password", "must be at least 8 characters")
	}
	if req.Age < 18 || req.Age > 120 {
		verr.Add("age", "must be between 18 and 120")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:                strings.TrimSpace(req.Username),
		Email:                   strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:            string(hashedPassword),
		Role:                    models.RoleApplicant,
		Age:                     req.Age,
		HasChildren:             req.HasChildren,
		IsSociallyDisadvantaged: req.IsSociallyDisadvantaged,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidCredentials
		}
		return "", err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(s.now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// IncomeBarrier returns the current high-income threshold
func (s *Service) IncomeBarrier(ctx context.Context) float64 {
	return s.barrier.Get(ctx)
}

// evaluate runs aggregation, scoring and normalization for one application.
// barrier is read once by the caller per operation. No store handle is held
// across the scorer call.
func (s *Service) evaluate(ctx context.Context, user *models.User, app *models.Application, signals *models.SignalSet, barrier float64) (Decision, error) {
	payload := BuildScoreRequest(user, app, signals, app.DeclaredIncome >= barrier, s.now())

	raw, err := s.scorer.Score(ctx, payload)
	if err != nil {
		return Decision{}, err
	}
	return s.normalizer.Normalize(app, raw), nil
}

// notify sends the decision email; failures are logged only
func (s *Service) notify(user *models.User, app *models.Application) {
	if s.notifier == nil || user == nil || user.Email == "" {
		return
	}
	if err := s.notifier.SendDecision(user.Email, user.Username, app); err != nil {
		s.log.WithFields(logrus.Fields{
			"application": app.Reference,
			"status":      app.Status,
		}).Warnf("Decision notification failed: %v", err)
	}
}

func auditDetails(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}
