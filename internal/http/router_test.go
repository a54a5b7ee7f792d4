package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"boreal/internal/agent"
	agentmemory "boreal/internal/agent/store/memory"
	"boreal/internal/billing"
	billingmemory "boreal/internal/billing/store/memory"
	casemodels "boreal/internal/casefile/models"
	caseservice "boreal/internal/casefile/service"
	casememory "boreal/internal/casefile/store/memory"
	"boreal/internal/configbundle"
	"boreal/internal/evaluation"
	jwttoken "boreal/internal/jwt_token"
	"boreal/internal/lifecycle"
	"boreal/internal/platform/metrics"
	"boreal/internal/platform/middleware"
	"boreal/internal/tasks"
	tasksmemory "boreal/internal/tasks/store/memory"
	id "boreal/pkg/domain"
	auditmemory "boreal/pkg/platform/audit/store/memory"
	"boreal/pkg/platform/audit/publisher"
)

const signingKey = "handler-test-signing-key"

type RouterSuite struct {
	suite.Suite

	server   *httptest.Server
	jwt      *jwttoken.JWTService
	tenantID id.TenantID
	userID   id.UserID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	bundle, err := configbundle.Load("../../config/domain")
	s.Require().NoError(err)
	bundleFn := func() *configbundle.Bundle { return bundle }

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := casememory.NewCaseStore()
	snapshots := casememory.NewSnapshotStore()
	events := casememory.NewEventStore()
	documents := casememory.NewDocumentStore()
	tenants := casememory.NewTenantStore()

	auditPub := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	billingSvc := billing.NewService(billingmemory.NewUsageStore(), bundleFn,
		billing.WithLogger(logger))

	s.tenantID = id.NewTenantID()
	s.userID = id.NewUserID()
	s.Require().NoError(tenants.Create(context.Background(), &casemodels.Tenant{
		ID:   s.tenantID,
		Name: "granite-advisory",
		Plan: "pro",
	}))

	handler := NewHandler(Config{
		Cases: caseservice.NewService(cases, snapshots, events, documents, tenants, billingSvc,
			caseservice.WithAudit(auditPub), caseservice.WithLogger(logger)),
		Lifecycle: lifecycle.NewService(cases, snapshots, events,
			lifecycle.WithAudit(auditPub), lifecycle.WithLogger(logger)),
		Evaluation: evaluation.NewService(cases, tenants, billingSvc, bundleFn,
			evaluation.WithAudit(auditPub), evaluation.WithLogger(logger)),
		Tasks: tasks.NewService(tasksmemory.NewTaskStore(), tasks.WithLogger(logger)),
		Agent: agent.NewService(agentmemory.NewSessionStore(), agentmemory.NewActionStore(),
			agentmemory.NewThrottleStore(), tenants, billingSvc, agent.WithLogger(logger)),
		Billing:   billingSvc,
		Bundle:    bundleFn,
		DomainDir: "../../config/domain",
		Metrics:   metrics.NewWith(prometheus.NewRegistry()),
		Audit:     auditPub,
		Logger:    logger,
	})

	s.jwt = jwttoken.NewJWTService(signingKey, "boreal", "boreal-api")
	router := NewRouter(handler, middleware.NewValidator(signingKey))
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
}

func (s *RouterSuite) request(method, path, token string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *RouterSuite) token(role id.Role) string {
	token, err := s.jwt.GenerateAccessToken(s.userID, s.tenantID, role, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) createCase(token string) string {
	resp := s.request(http.MethodPost, "/v1/cases", token, map[string]any{
		"source": "api",
		"profile": map[string]any{
			"personal": map[string]any{"given_name": "Asha", "family_name": "Rahman"},
		},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	s.decode(resp, &created)
	s.Require().NotEmpty(created.ID)
	return created.ID
}

func (s *RouterSuite) TestAuthRequired() {
	resp := s.request(http.MethodGet, "/v1/cases", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	s.Run("garbage token", func() {
		resp := s.request(http.MethodGet, "/v1/cases", "not-a-token", nil)
		defer resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("health is open", func() {
		resp := s.request(http.MethodGet, "/healthz", "", nil)
		defer resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
	})
}

func (s *RouterSuite) TestCaseFlow() {
	token := s.token("rcic")
	caseID := s.createCase(token)

	resp := s.request(http.MethodGet, "/v1/cases/"+caseID, token, nil)
	var c struct {
		Status string `json:"status"`
	}
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &c)
	s.Equal("draft", c.Status)

	s.Run("transition", func() {
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/transitions", token,
			map[string]string{"to": "submitted"})
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.decode(resp, &c)
		s.Equal("submitted", c.Status)
	})

	s.Run("illegal transition conflicts", func() {
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/transitions", token,
			map[string]string{"to": "complete"})
		defer resp.Body.Close()
		s.Equal(http.StatusConflict, resp.StatusCode)
	})

	s.Run("events recorded", func() {
		resp := s.request(http.MethodGet, "/v1/cases/"+caseID+"/events", token, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var body struct {
			Events []struct {
				EventType string `json:"event_type"`
			} `json:"events"`
		}
		s.decode(resp, &body)
		s.Require().Len(body.Events, 2)
		s.Equal("CASE_CREATED", body.Events[0].EventType)
		s.Equal("CASE_SUBMITTED", body.Events[1].EventType)
	})

	s.Run("client cannot transition", func() {
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/transitions", s.token("client"),
			map[string]string{"to": "in_review"})
		defer resp.Body.Close()
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("unknown case id", func() {
		resp := s.request(http.MethodGet, "/v1/cases/"+id.NewCaseID().String(), token, nil)
		defer resp.Body.Close()
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

func (s *RouterSuite) TestEvaluationAndReadiness() {
	token := s.token("rcic")
	caseID := s.createCase(token)

	resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/evaluation", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var eval struct {
		CRS struct {
			Total int `json:"total"`
		} `json:"crs"`
		ConfigHash string `json:"config_hash"`
	}
	s.decode(resp, &eval)
	s.NotEmpty(eval.ConfigHash)

	s.Run("readiness without eligibility is unknown", func() {
		resp := s.request(http.MethodGet, "/v1/cases/"+caseID+"/readiness", token, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var report struct {
			Status  string `json:"status"`
			Program string `json:"program"`
		}
		s.decode(resp, &report)
		s.Equal("UNKNOWN", report.Status)
	})

	s.Run("explicit program readiness", func() {
		resp := s.request(http.MethodGet, "/v1/cases/"+caseID+"/readiness?program=FSW", token, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var report struct {
			Status   string `json:"status"`
			Ready    bool   `json:"ready"`
			Blockers []struct {
				Code       string `json:"code"`
				DocumentID string `json:"document_id"`
			} `json:"blockers"`
			MissingDocuments []string `json:"missing_documents"`
		}
		s.decode(resp, &report)
		s.Equal("NOT_READY", report.Status)
		s.False(report.Ready)
		s.Require().NotEmpty(report.Blockers)
		s.Equal("missing_required_document", report.Blockers[0].Code)
		s.NotEmpty(report.MissingDocuments)
	})

	s.Run("evidence bundle", func() {
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/evidence?program=FSW", token, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var bundle struct {
			BundleVersion      string `json:"bundle_version"`
			VerificationResult struct {
				Verdict string `json:"verdict"`
			} `json:"verification_result"`
			ReadinessResult struct {
				Status string `json:"status"`
			} `json:"readiness_result"`
		}
		s.decode(resp, &bundle)
		s.Equal("v1", bundle.BundleVersion)
		s.Equal("FAIL", bundle.VerificationResult.Verdict)
		s.Equal("NOT_READY", bundle.ReadinessResult.Status)
	})

	s.Run("checklist requires program", func() {
		resp := s.request(http.MethodGet, "/v1/cases/"+caseID+"/checklist", token, nil)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *RouterSuite) TestDocumentsAndAutofill() {
	token := s.token("rcic")
	caseID := s.createCase(token)

	resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/documents", token, map[string]string{
		"document_type": "passport",
		"category":      "identity",
		"filename":      "passport.pdf",
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	s.Run("autofill", func() {
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/autofill", token,
			map[string]string{"program": "FSW"})
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var result struct {
			BundleID string `json:"bundle_id"`
			Forms    []any  `json:"forms"`
		}
		s.decode(resp, &result)
		s.NotEmpty(result.BundleID)
		s.NotEmpty(result.Forms)
	})

	s.Run("package", func() {
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/package", token,
			map[string]string{"program": "FSW"})
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var pkg struct {
			PackageVersion    string `json:"package_version"`
			DeterministicHash string `json:"deterministic_hash"`
		}
		s.decode(resp, &pkg)
		s.Equal("v1", pkg.PackageVersion)
		s.NotEmpty(pkg.DeterministicHash)
	})

	s.Run("draft gated on automation eligibility", func() {
		// The pro plan allows assisted drafts; the unevaluated case fails the
		// eligibility precondition, which is a conflict, not a permission error.
		resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/draft", token,
			map[string]string{"program": "FSW"})
		defer resp.Body.Close()
		s.Equal(http.StatusConflict, resp.StatusCode)
	})
}

func (s *RouterSuite) TestTasks() {
	token := s.token("rcic")
	caseID := s.createCase(token)

	resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/tasks", token,
		map[string]string{"title": "collect passport"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var task struct {
		ID string `json:"id"`
	}
	s.decode(resp, &task)

	s.Run("transition", func() {
		resp := s.request(http.MethodPost, "/v1/tasks/"+task.ID+"/transitions", token,
			map[string]string{"to": "in_progress"})
		defer resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
	})

	s.Run("self dependency conflicts", func() {
		resp := s.request(http.MethodPost, "/v1/tasks/"+task.ID+"/dependencies", token,
			map[string]string{"depends_on": task.ID})
		defer resp.Body.Close()
		s.Equal(http.StatusConflict, resp.StatusCode)
	})
}

func (s *RouterSuite) TestAgentSessions() {
	token := s.token("rcic")
	caseID := s.createCase(token)

	resp := s.request(http.MethodPost, "/v1/cases/"+caseID+"/agent/sessions", token,
		map[string]any{"agent_name": "readiness-review"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var session struct {
		ID string `json:"id"`
	}
	s.decode(resp, &session)

	s.Run("record suggestion", func() {
		resp := s.request(http.MethodPost, "/v1/agent/sessions/"+session.ID+"/actions", token,
			map[string]any{
				"action_type": "suggest_document",
				"payload":     map[string]any{"document": "language_test_results"},
			})
		defer resp.Body.Close()
		s.Equal(http.StatusCreated, resp.StatusCode)
	})

	s.Run("executed case mutation refused", func() {
		resp := s.request(http.MethodPost, "/v1/agent/sessions/"+session.ID+"/actions", token,
			map[string]any{
				"action_type": "case_transition",
				"status":      "executed",
				"payload":     map[string]any{"to": "submitted"},
			})
		defer resp.Body.Close()
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})
}

func (s *RouterSuite) TestConfigReload() {
	resp := s.request(http.MethodPost, "/v1/admin/config/reload", s.token("rcic"), nil)
	defer resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)

	s.Run("admin reloads", func() {
		resp := s.request(http.MethodPost, "/v1/admin/config/reload", s.token("admin"), nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var body struct {
			Hash string `json:"hash"`
		}
		s.decode(resp, &body)
		s.NotEmpty(body.Hash)
	})
}

func (s *RouterSuite) TestUsage() {
	token := s.token("rcic")
	s.createCase(token)

	resp := s.request(http.MethodGet, "/v1/usage", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Plan  string           `json:"plan"`
		Usage map[string]int64 `json:"usage"`
	}
	s.decode(resp, &body)
	s.Equal("pro", body.Plan)
	s.Equal(int64(1), body.Usage["case_created"])
}
