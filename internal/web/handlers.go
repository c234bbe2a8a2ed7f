package web

import (
	"net/http"
	"strconv"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
)

// dashboardHistory is how many audit runs the dashboard lists.
const dashboardHistory = 10

// Handlers contains HTTP route handlers for the rules API and admin pages.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandleRules handles GET /v1/rules/{lang}: the effective rule set the
// blocking runtime enforces.
func (h *Handlers) HandleRules(w http.ResponseWriter, r *http.Request) {
	result, err := ops.EffectiveRules(r.Context(), h.env, ops.EffectiveRulesInput{
		Language: r.PathValue("lang"),
		Force:    parseBoolParam(r, "force"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleServices handles GET /v1/services/{lang}.
func (h *Handlers) HandleServices(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GroupServices(r.Context(), h.env, ops.GroupServicesInput{
		Language: r.PathValue("lang"),
		Force:    parseBoolParam(r, "force"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAlert handles GET /v1/alert.
func (h *Handlers) HandleAlert(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetAlert(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Store.DB().PingContext(r.Context()); err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.renderer.version})
}

// HandleDashboard handles GET / with the alert notice and recent audits.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alert, err := ops.GetAlert(ctx, h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	history, err := ops.AuditHistory(ctx, h.env, ops.HistoryInput{Limit: dashboardHistory})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	page, err := h.pageData(r, "Integrations", "dashboard")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "dashboard", DashboardPageData{
		PageData:   page,
		Alert:      alert,
		NoticeHTML: renderMarkdown(audit.Notice(alert.Alert)),
		History:    history.Runs,
		Dismissed:  r.URL.Query().Get("dismissed") == "1",
	})
}

// HandleServicesPage handles GET /services/{lang}.
func (h *Handlers) HandleServicesPage(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GroupServices(r.Context(), h.env, ops.GroupServicesInput{
		Language: r.PathValue("lang"),
		Force:    parseBoolParam(r, "force"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	page, err := h.pageData(r, "Services ("+result.Language+")", result.Language)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "services", ServicesPageData{
		PageData:   page,
		Language:   result.Language,
		Categories: result.Categories,
	})
}

// HandleDismiss handles POST /alert/dismiss and redirects to the dashboard.
// JSON clients get the cleared alert instead.
func (h *Handlers) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	result, err := ops.DismissAlert(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/?dismissed=1", http.StatusSeeOther)
}

func (h *Handlers) pageData(r *http.Request, title, nav string) (PageData, error) {
	langs, err := ops.Languages(r.Context(), h.env)
	if err != nil {
		return PageData{}, err
	}
	return PageData{
		Title:     title,
		Version:   h.renderer.version,
		Nav:       nav,
		Languages: langs.Languages,
	}, nil
}

// parseBoolParam reads a boolean query parameter. Invalid values are false.
func parseBoolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
