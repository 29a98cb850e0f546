package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paqtrack/paqtrack-be/internal/models"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

type fakeAgentStore struct {
	mu     sync.Mutex
	nextID int64
	agents map[string]models.Agent
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{agents: make(map[string]models.Agent)}
}

func (s *fakeAgentStore) CreateAgent(_ context.Context, agent models.Agent) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.Email]; ok {
		return models.Agent{}, storage.ErrAlreadyExists
	}
	s.nextID++
	agent.ID = s.nextID
	agent.CreatedAt = time.Now()
	s.agents[agent.Email] = agent
	return agent, nil
}

func (s *fakeAgentStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Agent
	for _, a := range s.agents {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeAgentStore) FindAgentByEmail(_ context.Context, email string) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[email]
	if !ok {
		return models.Agent{}, storage.ErrNotFound
	}
	return agent, nil
}

type fakePackageStore struct {
	mu   sync.Mutex
	pkgs map[int64]models.Package
}

func newFakePackageStore(pkgs ...models.Package) *fakePackageStore {
	s := &fakePackageStore{pkgs: make(map[int64]models.Package)}
	for _, p := range pkgs {
		s.pkgs[p.ID] = p
	}
	return s
}

func (s *fakePackageStore) CreatePackage(_ context.Context, pkg models.Package) (models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg.ID = int64(len(s.pkgs) + 1)
	pkg.Status = models.StatusPending
	s.pkgs[pkg.ID] = pkg
	return pkg, nil
}

func (s *fakePackageStore) GetPackage(_ context.Context, id int64) (models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.pkgs[id]
	if !ok {
		return models.Package{}, storage.ErrNotFound
	}
	return pkg, nil
}

func (s *fakePackageStore) ListPackagesByAgent(_ context.Context, agentID int64) ([]models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Package
	for _, p := range s.pkgs {
		if p.AgentID != nil && *p.AgentID == agentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePackageStore) ListDelivered(_ context.Context, agentID int64, from, to *time.Time) ([]models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Package
	for _, p := range s.pkgs {
		if p.AgentID == nil || *p.AgentID != agentID || p.Status != models.StatusDelivered {
			continue
		}
		if from != nil && p.DeliveredAt != nil && p.DeliveredAt.Before(*from) {
			continue
		}
		if to != nil && p.DeliveredAt != nil && !p.DeliveredAt.Before(*to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakePackageStore) MarkDelivered(_ context.Context, id int64, photoURL string, lat, lng float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.pkgs[id]
	if !ok || pkg.Status != models.StatusPending {
		return storage.ErrNotFound
	}
	pkg.Status = models.StatusDelivered
	pkg.PhotoURL = &photoURL
	pkg.DeliveredLat = &lat
	pkg.DeliveredLng = &lng
	pkg.DeliveredAt = &at
	s.pkgs[id] = pkg
	return nil
}

type fakePhotoStore struct {
	mu    sync.Mutex
	saves int
}

func (s *fakePhotoStore) Save(_ context.Context, packageID int64, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return fmt.Sprintf("http://localhost:8080/uploads/photo_%d_%d.jpg", packageID, s.saves), nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	records []models.DeliveryAudit
}

func (s *fakeAuditStore) AppendDeliveryAudit(_ context.Context, rec models.DeliveryAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}
