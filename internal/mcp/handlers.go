package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// SaveRulesRequest represents the arguments for consent_save_rules.
type SaveRulesRequest struct {
	Rules map[string]map[string]rules.RawEntry `json:"rules"`
}

// ForceRequest represents the arguments for tools that only take force.
type ForceRequest struct {
	Force bool `json:"force,omitempty"`
}

// LanguageRequest represents the arguments for language-scoped tools.
type LanguageRequest struct {
	Language string `json:"language"`
	Force    bool   `json:"force,omitempty"`
}

// AlertRequest represents the arguments for consent_alert.
type AlertRequest struct {
	Dismiss bool `json:"dismiss,omitempty"`
}

// HistoryRequest represents the arguments for consent_history.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// PresetsRequest represents the arguments for consent_presets.
type PresetsRequest struct {
	Slug string `json:"slug,omitempty"`
}

// LanguagesRequest represents the arguments for consent_languages.
type LanguagesRequest struct {
	Languages []string `json:"languages,omitempty"`
}

// CategoriesRequest represents the arguments for consent_categories.
type CategoriesRequest struct {
	Categories []services.CategoryMeta `json:"categories,omitempty"`
}

// NotificationsRequest represents the arguments for consent_notifications.
type NotificationsRequest struct {
	EmailEnabled *bool     `json:"email_enabled,omitempty"`
	Recipients   *[]string `json:"recipients,omitempty"`
}

// ExportRequest represents the arguments for consent_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for consent_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// HandleSaveRules handles the consent_save_rules tool.
func (h *Handlers) HandleSaveRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[SaveRulesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.SaveRules(ctx, h.env, ops.SaveRulesInput{Rules: args.Rules})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePrimeRules handles the consent_prime_rules tool.
func (h *Handlers) HandlePrimeRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[ForceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.PrimeRules(ctx, h.env, ops.PrimeRulesInput{Force: args.Force})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEffectiveRules handles the consent_effective_rules tool.
func (h *Handlers) HandleEffectiveRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[LanguageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.EffectiveRules(ctx, h.env, ops.EffectiveRulesInput{Language: args.Language, Force: args.Force})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleServices handles the consent_services tool.
func (h *Handlers) HandleServices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[LanguageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GroupServices(ctx, h.env, ops.GroupServicesInput{Language: args.Language, Force: args.Force})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAudit handles the consent_audit tool.
func (h *Handlers) HandleAudit(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.RunAudit(ctx, h.env)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAlert handles the consent_alert tool.
func (h *Handlers) HandleAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[AlertRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	var result *ops.AlertOutput
	if args.Dismiss {
		result, err = ops.DismissAlert(ctx, h.env)
	} else {
		result, err = ops.GetAlert(ctx, h.env)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the consent_history tool.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.AuditHistory(ctx, h.env, ops.HistoryInput{Limit: args.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePresets handles the consent_presets tool.
func (h *Handlers) HandlePresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[PresetsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Presets(ctx, h.env, ops.PresetsInput{Slug: args.Slug})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLanguages handles the consent_languages tool.
func (h *Handlers) HandleLanguages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[LanguagesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	var result *ops.LanguagesOutput
	if args.Languages != nil {
		result, err = ops.SetLanguages(ctx, h.env, ops.SetLanguagesInput{Languages: args.Languages})
	} else {
		result, err = ops.Languages(ctx, h.env)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCategories handles the consent_categories tool.
func (h *Handlers) HandleCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[CategoriesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	var result *ops.CategoriesOutput
	if args.Categories != nil {
		result, err = ops.SetCategories(ctx, h.env, ops.SetCategoriesInput{Categories: args.Categories})
	} else {
		result, err = ops.Categories(ctx, h.env)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleNotifications handles the consent_notifications tool.
func (h *Handlers) HandleNotifications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[NotificationsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	var result *ops.NotificationsOutput
	if args.EmailEnabled != nil || args.Recipients != nil {
		result, err = ops.SetNotifications(ctx, h.env, ops.SetNotificationsInput{
			EmailEnabled: args.EmailEnabled,
			Recipients:   args.Recipients,
		})
	} else {
		result, err = ops.GetNotifications(ctx, h.env)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the consent_export tool.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Export(ctx, h.env, ops.ExportInput{Path: args.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the consent_import tool.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Import(ctx, h.env, ops.ImportInput{Path: args.Path, Mode: ops.ImportMode(args.Mode)})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Helper functions

// errorResult creates an MCP error result from any error.
// Internal errors never expose their details.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := err.(*errors.ConsentError); ok {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
