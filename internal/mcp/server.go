package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"consent_save_rules": {
		def:     saveRulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSaveRules },
	},
	"consent_prime_rules": {
		def:     primeRulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePrimeRules },
	},
	"consent_effective_rules": {
		def:     effectiveRulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEffectiveRules },
	},
	"consent_services": {
		def:     servicesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleServices },
	},
	"consent_audit": {
		def:     auditToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAudit },
	},
	"consent_alert": {
		def:     alertToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAlert },
	},
	"consent_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"consent_presets": {
		def:     presetsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePresets },
	},
	"consent_languages": {
		def:     languagesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLanguages },
	},
	"consent_categories": {
		def:     categoriesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategories },
	},
	"consent_notifications": {
		def:     notificationsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNotifications },
	},
	"consent_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"consent_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
}

// AllToolNames returns every tool name in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the consent tools registered.
// Tools listed in the config's DisabledTools are skipped.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fpconsent",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool)
	for _, name := range env.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, version string) error {
	return server.ServeStdio(NewServer(env, version))
}
