package mcp

import "github.com/mark3labs/mcp-go/mcp"

var saveRulesToolDef = mcp.NewTool("consent_save_rules",
	mcp.WithDescription("Save operator blocking rules. Keys are language then category; each entry may carry "+
		"script_handles, style_handles, patterns, iframes (list or newline separated string) and an optional managed flag. "+
		"Editing an auto-managed entry without a managed flag turns it into an operator override that detection never touches."),
	mcp.WithObject("rules", mcp.Required(),
		mcp.Description(`Rules by language and category, e.g. {"en":{"statistics":{"script_handles":["ga4"]}}}`)),
	mcp.WithDestructiveHintAnnotation(true),
)

var primeRulesToolDef = mcp.NewTool("consent_prime_rules",
	mcp.WithDescription("Fold the presets of currently detected services into every stored rule entry that is not an operator override."),
	mcp.WithBoolean("force", mcp.Description("Bypass the detection cache")),
)

var effectiveRulesToolDef = mcp.NewTool("consent_effective_rules",
	mcp.WithDescription("Return the rule set enforced for a language: stored rules layered over the defaults of detected services."),
	mcp.WithString("language", mcp.Required(), mcp.Description("Active language code, e.g. en")),
	mcp.WithBoolean("force", mcp.Description("Bypass the detection cache")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var servicesToolDef = mcp.NewTool("consent_services",
	mcp.WithDescription("List consent categories for a language with their detected and manually declared services."),
	mcp.WithString("language", mcp.Required(), mcp.Description("Active language code, e.g. en")),
	mcp.WithBoolean("force", mcp.Description("Bypass the detection cache")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var auditToolDef = mcp.NewTool("consent_audit",
	mcp.WithDescription("Run the integration audit now: detect services, diff against the last snapshot, update the alert, prime rules and notify."),
)

var alertToolDef = mcp.NewTool("consent_alert",
	mcp.WithDescription("Show the integration change alert and its admin notice, or dismiss it."),
	mcp.WithBoolean("dismiss", mcp.Description("Clear the active alert")),
)

var historyToolDef = mcp.NewTool("consent_history",
	mcp.WithDescription("List recent integration audit runs, newest first."),
	mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20, max 200)"), mcp.Min(1), mcp.Max(200)),
	mcp.WithReadOnlyHintAnnotation(true),
)

var presetsToolDef = mcp.NewTool("consent_presets",
	mcp.WithDescription("List the blocking rule presets for known integrations, or one preset by slug."),
	mcp.WithString("slug", mcp.Description("Preset slug, e.g. ga4")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var languagesToolDef = mcp.NewTool("consent_languages",
	mcp.WithDescription("Show the active languages, or replace them when languages is given."),
	mcp.WithArray("languages", mcp.WithStringItems(), mcp.Description("New active language codes")),
)

var categoriesToolDef = mcp.NewTool("consent_categories",
	mcp.WithDescription("Show the consent categories, or replace them when categories is given. "+
		"Each category has slug, locked, labels and descriptions by language, and services by language for manual entries."),
	mcp.WithArray("categories", mcp.Items(map[string]any{"type": "object"}), mcp.Description("New category list")),
)

var notificationsToolDef = mcp.NewTool("consent_notifications",
	mcp.WithDescription("Show or update alert email preferences. Omitted fields are unchanged."),
	mcp.WithBoolean("email_enabled", mcp.Description("Send alert emails")),
	mcp.WithArray("recipients", mcp.WithStringItems(), mcp.Description("Alert recipients; empty falls back to the admin address")),
)

var exportToolDef = mcp.NewTool("consent_export",
	mcp.WithDescription("Back up every stored setting to a JSONL file in ~/.fpconsent/backups or an allowed path."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file (default: timestamped file in ~/.fpconsent/backups)")),
)

var importToolDef = mcp.NewTool("consent_import",
	mcp.WithDescription("Restore settings from a JSONL backup."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup .jsonl file")),
	mcp.WithString("mode", mcp.Enum("error", "replace", "skip"),
		mcp.Description("error aborts on any existing key (default), replace overwrites, skip keeps existing keys")),
	mcp.WithDestructiveHintAnnotation(true),
)
