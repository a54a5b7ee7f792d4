//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/casefile/models"
	"boreal/internal/profile"
	"boreal/internal/rules"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
	"boreal/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite

	pg        *containers.PostgresContainer
	cases     *CaseStore
	snapshots *SnapshotStore
	events    *EventStore
	documents *DocumentStore
	tenants   *TenantStore
	ctx       context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.cases = NewCaseStore(s.pg.DB)
	s.snapshots = NewSnapshotStore(s.pg.DB)
	s.events = NewEventStore(s.pg.DB)
	s.documents = NewDocumentStore(s.pg.DB)
	s.tenants = NewTenantStore(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"tenants", "cases", "case_snapshots", "case_events", "case_documents"))
}

func (s *PostgresStoreSuite) newCase(tenantID id.TenantID) *models.Case {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Case{
		ID:        id.NewCaseID(),
		TenantID:  tenantID,
		Status:    models.StatusDraft,
		Source:    "intake",
		CreatedBy: id.NewUserID(),
		Profile: profile.Profile{
			Personal:  profile.Personal{GivenName: "Asha", FamilyName: "Rao", MaritalStatus: "single"},
			Education: profile.Education{HighestLevel: "bachelors"},
		},
		ConfigFingerprint: "deadbeef",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *PostgresStoreSuite) TestCaseRoundTrip() {
	tenantID := id.NewTenantID()
	c := s.newCase(tenantID)
	c.CRSBreakdown = &rules.CRSBreakdown{Total: 502, Core: 404, Transferability: 98, ConfigVersion: "2026.1"}
	c.RequiredArtifacts = []string{"passport", "language_test_report"}

	s.Require().NoError(s.cases.Create(s.ctx, c))

	got, err := s.cases.Get(s.ctx, tenantID, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Profile, got.Profile)
	s.Equal(502, got.CRSBreakdown.Total)
	s.Equal(c.RequiredArtifacts, got.RequiredArtifacts)
	s.Equal("deadbeef", got.ConfigFingerprint)

	s.Run("duplicate insert conflicts", func() {
		s.ErrorIs(s.cases.Create(s.ctx, c), sentinel.ErrConflict)
	})

	s.Run("update", func() {
		got.Status = models.StatusSubmitted
		got.UpdatedAt = time.Now().UTC()
		s.Require().NoError(s.cases.Update(s.ctx, got))
		again, err := s.cases.Get(s.ctx, tenantID, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, again.Status)
	})
}

func (s *PostgresStoreSuite) TestTenantIsolationAndSoftDelete() {
	tenantA, tenantB := id.NewTenantID(), id.NewTenantID()
	c := s.newCase(tenantA)
	s.Require().NoError(s.cases.Create(s.ctx, c))

	_, err := s.cases.Get(s.ctx, tenantB, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.cases.SoftDelete(s.ctx, tenantB, c.ID), sentinel.ErrNotFound)
	s.Require().NoError(s.cases.SoftDelete(s.ctx, tenantA, c.ID))

	_, err = s.cases.Get(s.ctx, tenantA, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	count, err := s.cases.CountActive(s.ctx, tenantA)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresStoreSuite) TestSnapshotVersioning() {
	tenantID, caseID := id.NewTenantID(), id.NewCaseID()

	v, err := s.snapshots.NextVersion(s.ctx, tenantID, caseID)
	s.Require().NoError(err)
	s.Equal(1, v)

	snap := &models.Snapshot{
		ID: id.NewSnapshotID(), TenantID: tenantID, CaseID: caseID,
		Version: 1, Payload: []byte(`{"status":"draft"}`),
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.snapshots.Append(s.ctx, snap))

	dup := *snap
	dup.ID = id.NewSnapshotID()
	s.ErrorIs(s.snapshots.Append(s.ctx, &dup), sentinel.ErrConflict)

	v, err = s.snapshots.NextVersion(s.ctx, tenantID, caseID)
	s.Require().NoError(err)
	s.Equal(2, v)
}

func (s *PostgresStoreSuite) TestEventsAndDocuments() {
	tenantID, caseID := id.NewTenantID(), id.NewCaseID()

	s.Require().NoError(s.events.Append(s.ctx, &models.CaseEvent{
		ID: id.NewEventID(), TenantID: tenantID, CaseID: caseID,
		EventType: models.EventCaseSubmitted, ActorID: id.NewUserID(),
		Metadata:  map[string]string{"from": "draft", "to": "submitted"},
		CreatedAt: time.Now().UTC(),
	}))

	events, err := s.events.List(s.ctx, tenantID, caseID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("draft", events[0].Metadata["from"])

	s.Require().NoError(s.documents.Add(s.ctx, &models.Document{
		ID: id.NewDocumentID(), TenantID: tenantID, CaseID: caseID,
		DocumentType: "passport", Category: "identity", Filename: "passport.pdf",
		Status: "uploaded", UploadedAt: time.Now().UTC(),
	}))

	docs, err := s.documents.List(s.ctx, tenantID, caseID)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("identity", docs[0].Category)
}

func (s *PostgresStoreSuite) TestTenantRoundTrip() {
	tenant := &models.Tenant{
		ID: id.NewTenantID(), Name: "Northern Gate Immigration", Plan: "pro",
		Metadata:  map[string]string{"region": "ca-central"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.tenants.Create(s.ctx, tenant))
	s.ErrorIs(s.tenants.Create(s.ctx, tenant), sentinel.ErrConflict)

	got, err := s.tenants.Get(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal("pro", got.Plan)
	s.Equal("ca-central", got.Metadata["region"])
}
