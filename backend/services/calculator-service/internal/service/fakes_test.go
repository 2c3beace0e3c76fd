package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"gulfsolar/backend/services/calculator-service/internal/models"
	redisstore "gulfsolar/backend/services/calculator-service/internal/redis"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

type fakeAdminRepo struct {
	mu     sync.Mutex
	admins map[string]*models.AdminUser
	nextID int64
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{admins: make(map[string]*models.AdminUser)}
}

func (r *fakeAdminRepo) Create(_ context.Context, admin *models.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.admins[admin.Email]; ok {
		return repository.ErrAdminExists
	}
	r.nextID++
	admin.ID = r.nextID
	admin.CreatedAt = time.Now().UTC()
	stored := *admin
	r.admins[admin.Email] = &stored
	return nil
}

func (r *fakeAdminRepo) GetByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	admin, ok := r.admins[email]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	copyAdmin := *admin
	return &copyAdmin, nil
}

// plainHasher keeps tests fast; bcrypt is covered in the password package.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(hash, p string) error {
	if hash != "hashed:"+p {
		return errors.New("mismatch")
	}
	return nil
}

type fakeSettingsRepo struct {
	mu      sync.Mutex
	stored  *models.StoredSettings
	getErr  error
	saves   int
	authors []int64
}

func (r *fakeSettingsRepo) Get(_ context.Context) (*models.StoredSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.stored == nil {
		return nil, repository.ErrSettingsNotFound
	}
	copyStored := *r.stored
	return &copyStored, nil
}

func (r *fakeSettingsRepo) Save(_ context.Context, s settings.Settings, updatedBy int64, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current int64
	if r.stored != nil {
		current = r.stored.Version
	}
	if expectedVersion != repository.AnyVersion && expectedVersion != current {
		return 0, repository.ErrVersionConflict
	}
	now := time.Now().UTC()
	author := updatedBy
	r.stored = &models.StoredSettings{Settings: s, Version: current + 1, UpdatedBy: &author, UpdatedAt: &now}
	r.saves++
	r.authors = append(r.authors, updatedBy)
	return current + 1, nil
}

type fakeSettingsCache struct {
	mu          sync.Mutex
	stored      *models.StoredSettings
	getErr      error
	gets        int
	sets        int
	invalidated int
}

func (c *fakeSettingsCache) Get(_ context.Context) (*models.StoredSettings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.stored == nil {
		return nil, redisstore.ErrCacheMiss
	}
	copyStored := *c.stored
	return &copyStored, nil
}

func (c *fakeSettingsCache) Set(_ context.Context, stored *models.StoredSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	copyStored := *stored
	c.stored = &copyStored
	return nil
}

func (c *fakeSettingsCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.stored = nil
	return nil
}

type staticSettings struct {
	s   settings.Settings
	err error
}

func (p staticSettings) Current(_ context.Context) (settings.Settings, error) {
	return p.s, p.err
}

type statusUpdate struct {
	id     string
	status models.LeadStatus
}

type fakeLeadRepo struct {
	mu        sync.Mutex
	leads     []models.Lead
	updates   []statusUpdate
	createErr error
	lastLimit int
}

func (r *fakeLeadRepo) Create(_ context.Context, lead *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.leads = append(r.leads, *lead)
	return nil
}

func (r *fakeLeadRepo) UpdateStatus(_ context.Context, id string, status models.LeadStatus, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusUpdate{id: id, status: status})
	return nil
}

func (r *fakeLeadRepo) List(_ context.Context, limit int) ([]models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	return append([]models.Lead(nil), r.leads...), nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	queued []models.Lead
	err    error
}

func (d *fakeDispatcher) Enqueue(lead models.Lead) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.queued = append(d.queued, lead)
	return nil
}
