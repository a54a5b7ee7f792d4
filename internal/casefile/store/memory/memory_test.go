package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/casefile/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite

	ctx     context.Context
	tenantA id.TenantID
	tenantB id.TenantID
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.tenantA = id.NewTenantID()
	s.tenantB = id.NewTenantID()
}

func (s *MemoryStoreSuite) newCase(tenantID id.TenantID) *models.Case {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.Case{
		ID:        id.NewCaseID(),
		TenantID:  tenantID,
		Status:    models.StatusDraft,
		Source:    "intake",
		CreatedBy: id.NewUserID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *MemoryStoreSuite) TestCaseCRUD() {
	store := NewCaseStore()
	c := s.newCase(s.tenantA)
	s.Require().NoError(store.Create(s.ctx, c))

	s.Run("duplicate create conflicts", func() {
		s.ErrorIs(store.Create(s.ctx, c), sentinel.ErrConflict)
	})

	s.Run("get returns a copy", func() {
		got, err := store.Get(s.ctx, s.tenantA, c.ID)
		s.Require().NoError(err)
		got.Status = models.StatusArchived

		again, err := store.Get(s.ctx, s.tenantA, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, again.Status)
	})

	s.Run("update", func() {
		c.Status = models.StatusSubmitted
		s.Require().NoError(store.Update(s.ctx, c))
		got, err := store.Get(s.ctx, s.tenantA, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, got.Status)
	})
}

func (s *MemoryStoreSuite) TestTenantIsolation() {
	store := NewCaseStore()
	c := s.newCase(s.tenantA)
	s.Require().NoError(store.Create(s.ctx, c))

	_, err := store.Get(s.ctx, s.tenantB, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	other := s.newCase(s.tenantB)
	s.Require().NoError(store.Create(s.ctx, other))

	listA, err := store.List(s.ctx, s.tenantA)
	s.Require().NoError(err)
	s.Len(listA, 1)
	s.Equal(c.ID, listA[0].ID)

	countB, err := store.CountActive(s.ctx, s.tenantB)
	s.Require().NoError(err)
	s.Equal(1, countB)
}

func (s *MemoryStoreSuite) TestSoftDelete() {
	store := NewCaseStore()
	c := s.newCase(s.tenantA)
	s.Require().NoError(store.Create(s.ctx, c))
	s.Require().NoError(store.SoftDelete(s.ctx, s.tenantA, c.ID))

	_, err := store.Get(s.ctx, s.tenantA, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	count, err := store.CountActive(s.ctx, s.tenantA)
	s.Require().NoError(err)
	s.Zero(count)

	s.ErrorIs(store.SoftDelete(s.ctx, s.tenantA, c.ID), sentinel.ErrNotFound)
	s.ErrorIs(store.Update(s.ctx, c), sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestSnapshotVersions() {
	store := NewSnapshotStore()
	caseID := id.NewCaseID()

	v, err := store.NextVersion(s.ctx, s.tenantA, caseID)
	s.Require().NoError(err)
	s.Equal(1, v)

	snap := &models.Snapshot{
		ID: id.NewSnapshotID(), TenantID: s.tenantA, CaseID: caseID,
		Version: 1, Payload: []byte(`{"status":"draft"}`),
	}
	s.Require().NoError(store.Append(s.ctx, snap))

	s.Run("versions are dense", func() {
		v, err := store.NextVersion(s.ctx, s.tenantA, caseID)
		s.Require().NoError(err)
		s.Equal(2, v)
	})

	s.Run("duplicate version conflicts", func() {
		dup := *snap
		dup.ID = id.NewSnapshotID()
		s.ErrorIs(store.Append(s.ctx, &dup), sentinel.ErrConflict)
	})

	s.Run("versions are tenant scoped", func() {
		v, err := store.NextVersion(s.ctx, s.tenantB, caseID)
		s.Require().NoError(err)
		s.Equal(1, v)

		snaps, err := store.List(s.ctx, s.tenantB, caseID)
		s.Require().NoError(err)
		s.Empty(snaps)
	})
}

func (s *MemoryStoreSuite) TestEventLog() {
	store := NewEventStore()
	caseID := id.NewCaseID()

	for _, eventType := range []string{models.EventCaseCreated, models.EventCaseSubmitted} {
		s.Require().NoError(store.Append(s.ctx, &models.CaseEvent{
			ID: id.NewEventID(), TenantID: s.tenantA, CaseID: caseID,
			EventType: eventType,
			Metadata:  map[string]string{"from": "draft", "to": "submitted"},
		}))
	}

	events, err := store.List(s.ctx, s.tenantA, caseID)
	s.Require().NoError(err)
	s.Len(events, 2)
	s.Equal(models.EventCaseCreated, events[0].EventType)
	s.Equal("submitted", events[1].Metadata["to"])

	other, err := store.List(s.ctx, s.tenantB, caseID)
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *MemoryStoreSuite) TestDocuments() {
	store := NewDocumentStore()
	caseID := id.NewCaseID()
	s.Require().NoError(store.Add(s.ctx, &models.Document{
		ID: id.NewDocumentID(), TenantID: s.tenantA, CaseID: caseID,
		DocumentType: "passport", Category: "identity", Filename: "passport.pdf", Status: "uploaded",
	}))

	docs, err := store.List(s.ctx, s.tenantA, caseID)
	s.Require().NoError(err)
	s.Len(docs, 1)
	s.Equal("passport", docs[0].DocumentType)
}

func (s *MemoryStoreSuite) TestTenants() {
	store := NewTenantStore()
	tenant := &models.Tenant{ID: s.tenantA, Name: "Northern Gate Immigration", Plan: "pro"}
	s.Require().NoError(store.Create(s.ctx, tenant))
	s.ErrorIs(store.Create(s.ctx, tenant), sentinel.ErrConflict)

	got, err := store.Get(s.ctx, s.tenantA)
	s.Require().NoError(err)
	s.Equal("pro", got.Plan)

	tenant.Plan = "enterprise"
	s.Require().NoError(store.Update(s.ctx, tenant))
	got, err = store.Get(s.ctx, s.tenantA)
	s.Require().NoError(err)
	s.Equal("enterprise", got.Plan)

	_, err = store.Get(s.ctx, s.tenantB)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
