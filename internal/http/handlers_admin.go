package httpapi

import (
	"net/http"

	"boreal/internal/configbundle"
	dErrors "boreal/pkg/domain-errors"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/httputil"
	"boreal/pkg/requestcontext"
)

// handleConfigReload reloads the domain config bundle from disk and swaps
// the process-wide pointer. In-flight evaluations keep their captured
// reference.
func (h *Handler) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requestcontext.Role(ctx).IsAdmin() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "config reload requires an admin role"))
		return
	}

	bundle, err := configbundle.Load(h.domainDir)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "reload config bundle"))
		return
	}
	configbundle.SetCurrent(bundle)
	h.metrics.IncrementConfigReloads()
	h.logger.InfoContext(ctx, "config bundle reloaded",
		"version", bundle.Version(), "hash", bundle.Hash())

	if h.audit != nil {
		if err := h.audit.Emit(ctx, audit.Event{
			Timestamp: requestcontext.Now(ctx),
			TenantID:  requestcontext.TenantID(ctx),
			ActorID:   requestcontext.UserID(ctx),
			Subject:   bundle.Hash(),
			Action:    "config_reloaded",
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			h.logger.ErrorContext(ctx, "audit emit failed", "error", err)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"version": bundle.Version(),
		"hash":    bundle.Hash(),
	})
}
