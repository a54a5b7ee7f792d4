// Package postgres implements the case stores on PostgreSQL. Engine outputs
// are stored as JSONB so stored decisions replay byte-for-byte. Writes join
// the caller's transaction when the context carries one.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"boreal/internal/casefile/models"
	"boreal/internal/rules"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
	txcontext "boreal/pkg/platform/tx"
)

const uniqueViolation = "23505"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// CaseStore implements store.CaseStore.
type CaseStore struct {
	db *sql.DB
}

func NewCaseStore(db *sql.DB) *CaseStore {
	return &CaseStore{db: db}
}

func (s *CaseStore) Create(ctx context.Context, c *models.Case) error {
	profileJSON, eligibilityJSON, crsJSON, artifactsJSON, err := marshalCaseColumns(c)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO cases (
			id, tenant_id, status, source, created_by, profile,
			program_eligibility, crs_breakdown, required_artifacts,
			config_fingerprint, automation_eligible, deleted, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12, $13)
	`
	_, err = execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.TenantID), string(c.Status), c.Source,
		uuid.UUID(c.CreatedBy), profileJSON, eligibilityJSON, crsJSON,
		artifactsJSON, c.ConfigFingerprint, c.AutomationEligible,
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *CaseStore) Get(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (*models.Case, error) {
	query := `
		SELECT id, tenant_id, status, source, created_by, profile,
			   program_eligibility, crs_breakdown, required_artifacts,
			   config_fingerprint, automation_eligible, deleted, created_at, updated_at
		FROM cases
		WHERE tenant_id = $1 AND id = $2 AND NOT deleted
	`
	row := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID))
	return scanCase(row)
}

func (s *CaseStore) Update(ctx context.Context, c *models.Case) error {
	profileJSON, eligibilityJSON, crsJSON, artifactsJSON, err := marshalCaseColumns(c)
	if err != nil {
		return err
	}
	query := `
		UPDATE cases
		SET status = $3, source = $4, profile = $5, program_eligibility = $6,
			crs_breakdown = $7, required_artifacts = $8, config_fingerprint = $9,
			automation_eligible = $10, updated_at = $11
		WHERE tenant_id = $1 AND id = $2 AND NOT deleted
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.TenantID), uuid.UUID(c.ID), string(c.Status), c.Source,
		profileJSON, eligibilityJSON, crsJSON, artifactsJSON,
		c.ConfigFingerprint, c.AutomationEligible, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return requireRow(result)
}

func (s *CaseStore) List(ctx context.Context, tenantID id.TenantID) ([]*models.Case, error) {
	query := `
		SELECT id, tenant_id, status, source, created_by, profile,
			   program_eligibility, crs_breakdown, required_artifacts,
			   config_fingerprint, automation_eligible, deleted, created_at, updated_at
		FROM cases
		WHERE tenant_id = $1 AND NOT deleted
		ORDER BY created_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s *CaseStore) SoftDelete(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) error {
	query := `UPDATE cases SET deleted = TRUE WHERE tenant_id = $1 AND id = $2 AND NOT deleted`
	result, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return fmt.Errorf("soft delete case: %w", err)
	}
	return requireRow(result)
}

func (s *CaseStore) CountActive(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM cases WHERE tenant_id = $1 AND NOT deleted`
	if err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cases: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c                                                    models.Case
		caseID, tenantID                                     uuid.UUID
		createdBy                                            *uuid.UUID
		status                                               string
		profileJSON, eligibilityJSON, crsJSON, artifactsJSON []byte
	)
	err := row.Scan(&caseID, &tenantID, &status, &c.Source, &createdBy,
		&profileJSON, &eligibilityJSON, &crsJSON, &artifactsJSON,
		&c.ConfigFingerprint, &c.AutomationEligible, &c.Deleted, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}

	c.ID = id.CaseID(caseID)
	c.TenantID = id.TenantID(tenantID)
	c.Status = models.CaseStatus(status)
	if createdBy != nil {
		c.CreatedBy = id.UserID(*createdBy)
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &c.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal case profile: %w", err)
		}
	}
	if len(eligibilityJSON) > 0 {
		c.ProgramEligibility = &rules.EligibilityResult{}
		if err := json.Unmarshal(eligibilityJSON, c.ProgramEligibility); err != nil {
			return nil, fmt.Errorf("unmarshal eligibility: %w", err)
		}
	}
	if len(crsJSON) > 0 {
		c.CRSBreakdown = &rules.CRSBreakdown{}
		if err := json.Unmarshal(crsJSON, c.CRSBreakdown); err != nil {
			return nil, fmt.Errorf("unmarshal crs breakdown: %w", err)
		}
	}
	if len(artifactsJSON) > 0 {
		if err := json.Unmarshal(artifactsJSON, &c.RequiredArtifacts); err != nil {
			return nil, fmt.Errorf("unmarshal required artifacts: %w", err)
		}
	}
	return &c, nil
}

func marshalCaseColumns(c *models.Case) (profileJSON, eligibilityJSON, crsJSON, artifactsJSON []byte, err error) {
	if profileJSON, err = json.Marshal(c.Profile); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal profile: %w", err)
	}
	if c.ProgramEligibility != nil {
		if eligibilityJSON, err = json.Marshal(c.ProgramEligibility); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal eligibility: %w", err)
		}
	}
	if c.CRSBreakdown != nil {
		if crsJSON, err = json.Marshal(c.CRSBreakdown); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal crs breakdown: %w", err)
		}
	}
	if c.RequiredArtifacts != nil {
		if artifactsJSON, err = json.Marshal(c.RequiredArtifacts); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal required artifacts: %w", err)
		}
	}
	return profileJSON, eligibilityJSON, crsJSON, artifactsJSON, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
