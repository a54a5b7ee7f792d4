package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"boreal/internal/autofill"
	"boreal/internal/billing"
	"boreal/internal/casefile/models"
	"boreal/internal/matrix"
	"boreal/internal/preparation"
	"boreal/internal/readiness"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/platform/httputil"
	strutil "boreal/pkg/platform/strings"
)

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.evaluation.EvaluateCase(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleChecklist(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	program := r.URL.Query().Get("program")
	if program == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "program query parameter is required"))
		return
	}
	c, err := h.cases.GetCase(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	profileMap, err := c.Profile.Map()
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "profile map"))
		return
	}
	items, err := matrix.Checklist(h.bundle(), program, profileMap)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"program": program, "checklist": items})
}

// readinessInput assembles the readiness engine input from the stored case
// and its documents. The eligible program list comes from the last
// evaluation; an unevaluated case yields an UNKNOWN report.
func (h *Handler) readinessInput(ctx context.Context, caseID id.CaseID, program string) (*models.Case, readiness.Input, error) {
	c, err := h.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, readiness.Input{}, err
	}
	profileMap, err := c.Profile.Map()
	if err != nil {
		return nil, readiness.Input{}, dErrors.Wrap(err, dErrors.CodeInternal, "profile map")
	}
	docs, err := h.cases.ListDocuments(ctx, caseID)
	if err != nil {
		return nil, readiness.Input{}, err
	}

	in := readiness.Input{
		CaseID:     c.ID.String(),
		TenantID:   c.TenantID.String(),
		Program:    program,
		ProfileMap: profileMap,
	}
	if c.ProgramEligibility != nil {
		in.EligiblePrograms = strutil.DedupeAndTrim(c.ProgramEligibility.EligiblePrograms())
	}
	for _, doc := range docs {
		in.Documents = append(in.Documents, readiness.UploadedDocument{
			DocumentType: doc.DocumentType,
			Category:     doc.Category,
			Filename:     doc.Filename,
		})
	}
	return c, in, nil
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	_, in, err := h.readinessInput(r.Context(), caseID, r.URL.Query().Get("program"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := readiness.NewEngine(h.bundle()).Evaluate(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	_, in, err := h.readinessInput(r.Context(), caseID, r.URL.Query().Get("program"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := readiness.NewEngine(h.bundle()).Evaluate(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	evidence, err := readiness.NewVerifier().BuildEvidenceBundle(r.Context(), report)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// The bundle embeds the readiness result it judges.
	httputil.WriteJSON(w, http.StatusOK, evidence)
}

type autofillRequest struct {
	Program  string `json:"program"`
	BundleID string `json:"bundle_id,omitempty"`
}

func (h *Handler) autofillResult(ctx context.Context, caseID id.CaseID, program, bundleID string) (autofill.Result, error) {
	c, err := h.cases.GetCase(ctx, caseID)
	if err != nil {
		return autofill.Result{}, err
	}
	profileMap, err := c.Profile.Map()
	if err != nil {
		return autofill.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "profile map")
	}
	docs, err := h.cases.ListDocuments(ctx, caseID)
	if err != nil {
		return autofill.Result{}, err
	}
	documents := make(map[string]any, len(docs))
	for _, doc := range docs {
		documents[doc.DocumentType] = doc.Filename
	}
	return autofill.NewEngine(h.bundle()).Fill(program, bundleID, profileMap, documents)
}

func (h *Handler) handleAutofill(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req autofillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Program == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "program is required"))
		return
	}
	result, err := h.autofillResult(r.Context(), caseID, req.Program, req.BundleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type packageRequest struct {
	Program  string `json:"program"`
	BundleID string `json:"bundle_id,omitempty"`
}

// buildInput runs readiness, verification and autofill for the package
// builder.
func (h *Handler) buildInput(ctx context.Context, caseID id.CaseID, program, bundleID string) (*models.Case, preparation.BuildInput, error) {
	c, in, err := h.readinessInput(ctx, caseID, program)
	if err != nil {
		return nil, preparation.BuildInput{}, err
	}
	report, err := readiness.NewEngine(h.bundle()).Evaluate(ctx, in)
	if err != nil {
		return nil, preparation.BuildInput{}, err
	}
	evidence, err := readiness.NewVerifier().BuildEvidenceBundle(ctx, report)
	if err != nil {
		return nil, preparation.BuildInput{}, err
	}
	filled, err := h.autofillResult(ctx, caseID, report.Program, bundleID)
	if err != nil {
		return nil, preparation.BuildInput{}, err
	}
	return c, preparation.BuildInput{
		Autofill:  filled,
		Readiness: report,
		Evidence:  evidence,
		Documents: in.Documents,
	}, nil
}

func (h *Handler) handleBuildPackage(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req packageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	_, in, err := h.buildInput(r.Context(), caseID, req.Program, req.BundleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pkg, err := h.builder.BuildPackage(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pkg)
}

func (h *Handler) handleAssistedDraft(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req packageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	tenant, err := h.cases.Tenant(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, in, err := h.buildInput(r.Context(), caseID, req.Program, req.BundleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	gate := preparation.DraftGate{
		AssistedAutomationEnabled: h.billing.Limits(tenant.Plan).AssistedDraftsEnabled,
		AutomationEligible:        c.AutomationEligible,
	}
	draft, err := h.builder.BuildAssistedDraft(r.Context(), gate, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.billing.RecordUsage(r.Context(), tenant.ID, billing.UsageDraft); err != nil {
		h.logger.ErrorContext(r.Context(), "record draft usage failed", "error", err)
	}
	httputil.WriteJSON(w, http.StatusOK, draft)
}

func (h *Handler) handleIntakeTemplate(w http.ResponseWriter, r *http.Request) {
	program := r.URL.Query().Get("program")
	if program == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "program query parameter is required"))
		return
	}
	tenant, err := h.cases.Tenant(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tpl, err := matrix.ResolveIntakeTemplate(h.bundle(), program, tenant.Plan)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.cases.Tenant(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	usage := map[string]int64{}
	for _, event := range []string{billing.UsageCaseCreated, billing.UsageEvaluation, billing.UsageDraft} {
		count, err := h.billing.UsageThisMonth(r.Context(), tenant.ID, event)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		usage[event] = count
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"plan":   tenant.Plan,
		"limits": h.billing.Limits(tenant.Plan),
		"usage":  usage,
	})
}
