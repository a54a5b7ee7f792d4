package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/billing"
	billingmemory "boreal/internal/billing/store/memory"
	"boreal/internal/casefile/models"
	"boreal/internal/casefile/store/memory"
	"boreal/internal/configbundle"
	"boreal/internal/lifecycle"
	"boreal/internal/profile"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	auditmemory "boreal/pkg/platform/audit/store/memory"
	"boreal/pkg/platform/audit/publisher"
	"boreal/pkg/requestcontext"
)

type CaseServiceSuite struct {
	suite.Suite

	service   *Service
	cases     *memory.CaseStore
	snapshots *memory.SnapshotStore
	events    *memory.EventStore
	auditLog  *auditmemory.InMemoryStore
	tenantID  id.TenantID
	userID    id.UserID
	ctx       context.Context
}

func TestCaseServiceSuite(t *testing.T) {
	suite.Run(t, new(CaseServiceSuite))
}

func (s *CaseServiceSuite) SetupTest() {
	bundle, err := configbundle.Load("../../../config/domain")
	s.Require().NoError(err)

	s.cases = memory.NewCaseStore()
	s.snapshots = memory.NewSnapshotStore()
	s.events = memory.NewEventStore()
	documents := memory.NewDocumentStore()
	tenants := memory.NewTenantStore()
	s.auditLog = auditmemory.NewInMemoryStore()

	billingSvc := billing.NewService(billingmemory.NewUsageStore(),
		func() *configbundle.Bundle { return bundle })

	s.tenantID = id.NewTenantID()
	s.userID = id.NewUserID()
	s.Require().NoError(tenants.Create(context.Background(), &models.Tenant{
		ID:   s.tenantID,
		Name: "northern-consulting",
		Plan: "pro",
	}))

	s.service = NewService(s.cases, s.snapshots, s.events, documents, tenants, billingSvc,
		WithAudit(publisher.NewPublisher(s.auditLog)))

	ctx := requestcontext.WithTenantID(context.Background(), s.tenantID)
	ctx = requestcontext.WithUserID(ctx, s.userID)
	s.ctx = requestcontext.WithTime(ctx, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
}

func (s *CaseServiceSuite) TestCreateCase() {
	p := profile.Profile{}
	p.Personal.GivenName = "Asha"

	c, err := s.service.CreateCase(s.ctx, "api", p)
	s.Require().NoError(err)
	s.False(c.ID.IsNil())
	s.Equal(models.StatusDraft, c.Status)
	s.Equal(s.tenantID, c.TenantID)
	s.Equal(s.userID, c.CreatedBy)
	s.Equal("Asha", c.Profile.Personal.GivenName)

	events, err := s.auditLog.ListByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("case_created", events[0].Action)
	s.Equal(c.ID, events[0].CaseID)

	s.Run("version 1 snapshot written at creation", func() {
		snaps, err := s.snapshots.List(s.ctx, s.tenantID, c.ID)
		s.Require().NoError(err)
		s.Require().Len(snaps, 1)
		s.Equal(1, snaps[0].Version)

		var stored models.Case
		s.Require().NoError(json.Unmarshal(snaps[0].Payload, &stored))
		s.Equal(models.StatusDraft, stored.Status)
		s.Equal("Asha", stored.Profile.Personal.GivenName)
	})

	s.Run("creation event recorded", func() {
		log, err := s.events.List(s.ctx, s.tenantID, c.ID)
		s.Require().NoError(err)
		s.Require().Len(log, 1)
		s.Equal(models.EventCaseCreated, log[0].EventType)
		s.Equal(s.userID, log[0].ActorID)
	})
}

// The snapshot chain spans the whole lifecycle: creation writes version 1
// and each transition appends the next, so an archived case carries five.
func (s *CaseServiceSuite) TestSnapshotChainAcrossLifecycle() {
	c, err := s.service.CreateCase(s.ctx, "api", profile.Profile{})
	s.Require().NoError(err)

	lc := lifecycle.NewService(s.cases, s.snapshots, s.events)
	ctx := requestcontext.WithRole(s.ctx, id.RoleRCIC)
	for _, target := range []models.CaseStatus{
		models.StatusSubmitted,
		models.StatusInReview,
		models.StatusComplete,
		models.StatusArchived,
	} {
		_, err := lc.Transition(ctx, c.ID, target)
		s.Require().NoError(err)
	}

	snaps, err := s.snapshots.List(s.ctx, s.tenantID, c.ID)
	s.Require().NoError(err)
	s.Require().Len(snaps, 5)
	for i, snap := range snaps {
		s.Equal(i+1, snap.Version)
	}

	log, err := s.events.List(s.ctx, s.tenantID, c.ID)
	s.Require().NoError(err)
	s.Require().Len(log, 5)
	s.Equal([]string{
		models.EventCaseCreated,
		models.EventCaseSubmitted,
		models.EventCaseReviewStarted,
		models.EventCaseCompleted,
		models.EventCaseArchived,
	}, []string{log[0].EventType, log[1].EventType, log[2].EventType, log[3].EventType, log[4].EventType})
}

func (s *CaseServiceSuite) TestCreateCaseUnknownTenant() {
	ctx := requestcontext.WithTenantID(context.Background(), id.NewTenantID())
	_, err := s.service.CreateCase(ctx, "api", profile.Profile{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CaseServiceSuite) TestCaseQuotaEnforced() {
	limit := 200 // pro plan max_cases
	for i := 0; i < limit; i++ {
		_, err := s.service.CreateCase(s.ctx, "api", profile.Profile{})
		s.Require().NoError(err)
	}

	_, err := s.service.CreateCase(s.ctx, "api", profile.Profile{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePlanLimit))
}

func (s *CaseServiceSuite) TestUpdateProfile() {
	c, err := s.service.CreateCase(s.ctx, "api", profile.Profile{})
	s.Require().NoError(err)

	p := c.Profile
	p.Personal.GivenName = "Noor"
	updated, err := s.service.UpdateProfile(s.ctx, c.ID, p)
	s.Require().NoError(err)
	s.Equal("Noor", updated.Profile.Personal.GivenName)

	s.Run("immutable after draft", func() {
		c.Status = models.StatusSubmitted
		s.Require().NoError(s.cases.Update(s.ctx, c))

		_, err := s.service.UpdateProfile(s.ctx, c.ID, p)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *CaseServiceSuite) TestDocuments() {
	c, err := s.service.CreateCase(s.ctx, "api", profile.Profile{})
	s.Require().NoError(err)

	doc, err := s.service.AddDocument(s.ctx, c.ID, "passport", "identity", "passport.pdf")
	s.Require().NoError(err)
	s.Equal("uploaded", doc.Status)

	docs, err := s.service.ListDocuments(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("passport", docs[0].DocumentType)

	s.Run("empty type rejected", func() {
		_, err := s.service.AddDocument(s.ctx, c.ID, "", "identity", "x.pdf")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown case rejected", func() {
		_, err := s.service.AddDocument(s.ctx, id.NewCaseID(), "passport", "identity", "x.pdf")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CaseServiceSuite) TestTenantIsolation() {
	c, err := s.service.CreateCase(s.ctx, "api", profile.Profile{})
	s.Require().NoError(err)

	otherTenant := id.NewTenantID()
	other := requestcontext.WithTenantID(context.Background(), otherTenant)
	_, err = s.service.GetCase(other, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
