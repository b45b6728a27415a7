package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/sirupsen/logrus"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*models.User
	apps    map[string]*models.Application
	signals map[int64]*models.SignalSet
	audits  []models.AuditLog

	saveErr   map[string]error
	createErr error
	// collisions is how many inserts fail with ErrReferenceTaken before one succeeds
	collisions int
	triedRefs  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[int64]*models.User{},
		apps:    map[string]*models.Application{},
		signals: map[int64]*models.SignalSet{},
		saveErr: map[string]error{},
	}
}

func (f *fakeStore) addUser(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addApplication(app *models.Application, signals *models.SignalSet) *models.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	app.ID = f.nextID
	cp := *app
	f.apps[app.Reference] = &cp
	if signals == nil {
		signals = &models.SignalSet{}
	}
	f.signals[app.ID] = signals
	return app
}

func (f *fakeStore) application(ref string) models.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.apps[ref]
}

func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, len(f.audits))
	for i, a := range f.audits {
		actions[i] = a.Action
	}
	return actions
}

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return models.ErrAlreadyExists
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

// takeReference records ref and reports whether it collides. Callers hold f.mu.
func (f *fakeStore) takeReference(ref string) error {
	f.triedRefs = append(f.triedRefs, ref)
	if f.collisions > 0 {
		f.collisions--
		return models.ErrReferenceTaken
	}
	return nil
}

func (f *fakeStore) CreateApplication(_ context.Context, app *models.Application, signals *models.SignalSet, audit *models.AuditLog) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeReference(app.Reference); err != nil {
		return err
	}
	f.nextID++
	app.ID = f.nextID
	app.CreatedAt = fixedNow
	app.UpdatedAt = fixedNow
	cp := *app
	f.apps[app.Reference] = &cp
	sigs := *signals
	f.signals[app.ID] = &sigs
	audit.EntityType = models.EntityApplication
	audit.EntityID = app.Reference
	f.audits = append(f.audits, *audit)
	return nil
}

func (f *fakeStore) GetApplication(_ context.Context, reference string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[reference]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (f *fakeStore) LoadSignals(_ context.Context, applicationID int64) (*models.SignalSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.signals[applicationID]
	if !ok {
		return &models.SignalSet{}, nil
	}
	cp := *set
	return &cp, nil
}

func (f *fakeStore) SaveDecision(_ context.Context, app *models.Application, audit *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.saveErr[app.Reference]; err != nil {
		return err
	}
	if _, ok := f.apps[app.Reference]; !ok {
		return models.ErrNotFound
	}
	app.UpdatedAt = fixedNow
	cp := *app
	f.apps[app.Reference] = &cp
	audit.EntityType = models.EntityApplication
	audit.EntityID = app.Reference
	f.audits = append(f.audits, *audit)
	return nil
}

func (f *fakeStore) SelectForRescore(_ context.Context, filter models.RescoreFilter) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := map[string]bool{}
	for _, r := range filter.References {
		refs[r] = true
	}
	statuses := map[models.ApplicationStatus]bool{}
	for _, s := range filter.Statuses {
		statuses[s] = true
	}

	var out []*models.Application
	for _, app := range f.apps {
		if len(refs) > 0 && !refs[app.Reference] {
			continue
		}
		if len(statuses) > 0 && !statuses[app.Status] {
			continue
		}
		if filter.StaleOnly && app.ProcessedAt != nil && !app.ProcessedAt.Before(filter.StaleBefore) {
			continue
		}
		cp := *app
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) IngestPartnerData(_ context.Context, app *models.Application, create bool, signals *models.SignalSet, audit *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if create {
		if err := f.takeReference(app.Reference); err != nil {
			return err
		}
		f.nextID++
		app.ID = f.nextID
		f.signals[app.ID] = &models.SignalSet{}
	} else if _, ok := f.apps[app.Reference]; !ok {
		return models.ErrNotFound
	}
	app.UpdatedAt = fixedNow
	cp := *app
	f.apps[app.Reference] = &cp

	set := f.signals[app.ID]
	set.BankStatements = append(set.BankStatements, signals.BankStatements...)
	set.Recharges = append(set.Recharges, signals.Recharges...)
	set.Electricity = append(set.Electricity, signals.Electricity...)
	set.Education = append(set.Education, signals.Education...)
	set.Repayments = append(set.Repayments, signals.Repayments...)

	audit.EntityType = models.EntityApplication
	audit.EntityID = app.Reference
	f.audits = append(f.audits, *audit)
	return nil
}

type stubScorer struct {
	mu       sync.Mutex
	fn       func(req *models.ScoreRequest) (*models.ScoreResult, error)
	requests []*models.ScoreRequest
}

func (s *stubScorer) Score(_ context.Context, req *models.ScoreRequest) (*models.ScoreResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.fn(req)
}

func fixedScorer(result models.ScoreResult) *stubScorer {
	return &stubScorer{fn: func(*models.ScoreRequest) (*models.ScoreResult, error) {
		r := result
		return &r, nil
	}}
}

func failingScorer(err error) *stubScorer {
	return &stubScorer{fn: func(*models.ScoreRequest) (*models.ScoreResult, error) {
		return nil, err
	}}
}

// blockingScorer holds every call until the caller's context is done
type blockingScorer struct {
	mu    sync.Mutex
	calls int
}

func (s *blockingScorer) Score(ctx context.Context, _ *models.ScoreRequest) (*models.ScoreResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type staticBarrier float64

func (b staticBarrier) Get(context.Context) float64 { return float64(b) }

type countingBarrier struct {
	mu    sync.Mutex
	value float64
	reads int
}

func (b *countingBarrier) Get(context.Context) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	return b.value
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) SendDecision(to, _ string, app *models.Application) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to+":"+string(app.Status))
	return n.err
}

var errScorerDown = errors.New("context deadline exceeded (Client.Timeout exceeded while awaiting headers)")

func newTestService(t *testing.T, store *fakeStore, scorer Scorer, notifier Notifier) *Service {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{JWTSecret: "test-secret", RescoreWorkers: 2, Policy: config.DefaultPolicy()}
	svc := NewService(store, scorer, staticBarrier(15000), notifier, log, cfg)
	svc.now = func() time.Time { return fixedNow }
	return svc
}
