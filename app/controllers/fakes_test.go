package controllers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/app/repository"
	"github.com/ServiAPP/serviapp/internal/pkg/middleware"
)

// memoryStore backs the repository interfaces for handler tests.
type memoryStore struct {
	mu           sync.Mutex
	profiles     map[string]*models.Profile
	services     map[string]*models.ServiceListing
	transactions []models.Transaction
	deleteErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		profiles: map[string]*models.Profile{},
		services: map[string]*models.ServiceListing{},
	}
}

func (m *memoryStore) addProfile(p *models.Profile, token string) {
	if token != "" {
		h := models.HashAPIToken(token)
		p.APITokenHash = &h
	}
	m.profiles[p.ID] = p
}

func (m *memoryStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		Profile:     profileStore{m},
		Service:     serviceStore{m},
		Transaction: transactionStore{m},
	}
}

type profileStore struct{ m *memoryStore }

func (s profileStore) GetByID(_ context.Context, id string) (*models.Profile, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s profileStore) GetByAPITokenHash(_ context.Context, hash string) (*models.Profile, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.profiles {
		if p.APITokenHash != nil && *p.APITokenHash == hash {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s profileStore) UpdateVerification(_ context.Context, id, status string, at *time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.profiles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.VerificationStatus = status
	p.VerifiedAt = at
	return nil
}

func (s profileStore) DeleteCascade(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.deleteErr != nil {
		return s.m.deleteErr
	}
	if _, ok := s.m.profiles[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.m.profiles, id)
	for sid, svc := range s.m.services {
		if svc.ProfileID == id {
			delete(s.m.services, sid)
		}
	}
	return nil
}

type serviceStore struct{ m *memoryStore }

func (s serviceStore) ListByProfile(_ context.Context, profileID string) ([]models.ServiceListing, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.ServiceListing
	for _, svc := range s.m.services {
		if svc.ProfileID == profileID {
			out = append(out, *svc)
		}
	}
	return out, nil
}

type transactionStore struct{ m *memoryStore }

func (s transactionStore) ListByUser(_ context.Context, userID string, limit int) ([]models.Transaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.m.transactions {
		if tx.UserID == userID && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeFiles struct {
	prefixes []string
	err      error
}

func (f *fakeFiles) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.prefixes = append(f.prefixes, prefix)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

var errStorageDown = errors.New("storage down")

// newAuthedApp mounts handlers behind token auth the way the router does.
func newAuthedApp(store *memoryStore, mount func(r fiber.Router)) *fiber.App {
	app := fiber.New()
	api := app.Group("/api/v1", middleware.TokenAuthMiddleware(store.repositories().Profile))
	mount(api)
	return app
}
