package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/web"
)

// maxInputBytes caps JSON read from stdin or --file.
const maxInputBytes = 8 << 20

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "fpconsent",
		Usage:   "Integration detection and consent rule reconciliation",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(env),
			primeCmd(env),
			effectiveCmd(env),
			servicesCmd(env),
			auditCmd(env),
			alertCmd(env),
			historyCmd(env),
			presetsCmd(env),
			languagesCmd(env),
			categoriesCmd(env),
			notifyCmd(env),
			exportCmd(env),
			importCmd(env),
			serveCmd(env),
			daemonCmd(env),
		},
	}
	// Return errors from Run instead of exiting, so tests can inspect them.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Bypass the detection cache"}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{Name: "file", Usage: "Read JSON input from this file instead of stdin"}
}

// saveCmd creates the save command.
func saveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: `Save blocking rules (reads {"<lang>":{"<category>":{...}}} JSON from stdin)`,
		Flags: []cli.Flag{fileFlag()},
		Action: func(c *cli.Context) error {
			var payload map[string]map[string]rules.RawEntry
			if err := readJSONInput(c, &payload); err != nil {
				return outputError(err)
			}
			output, err := ops.SaveRules(c.Context, env, ops.SaveRulesInput{Rules: payload})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// primeCmd creates the prime command.
func primeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "prime",
		Usage: "Fold presets of detected services into stored rules",
		Flags: []cli.Flag{forceFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.PrimeRules(c.Context, env, ops.PrimeRulesInput{Force: c.Bool("force")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// effectiveCmd creates the effective command.
func effectiveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "effective",
		Usage: "Show the rules enforced for a language",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Required: true, Usage: "Language code"},
			forceFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.EffectiveRules(c.Context, env, ops.EffectiveRulesInput{
				Language: c.String("lang"),
				Force:    c.Bool("force"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// servicesCmd creates the services command.
func servicesCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "services",
		Usage: "List categories with their detected and manual services",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Required: true, Usage: "Language code"},
			forceFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.GroupServices(c.Context, env, ops.GroupServicesInput{
				Language: c.String("lang"),
				Force:    c.Bool("force"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// auditCmd creates the audit command.
func auditCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Run the integration audit now",
		Action: func(c *cli.Context) error {
			output, err := ops.RunAudit(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// alertCmd creates the alert command.
func alertCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "alert",
		Usage: "Show the integration change alert",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dismiss", Usage: "Clear the active alert"},
		},
		Action: func(c *cli.Context) error {
			var (
				output *ops.AlertOutput
				err    error
			)
			if c.Bool("dismiss") {
				output, err = ops.DismissAlert(c.Context, env)
			} else {
				output, err = ops.GetAlert(c.Context, env)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent audit runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum runs to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.AuditHistory(c.Context, env, ops.HistoryInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// presetsCmd creates the presets command.
func presetsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "presets",
		Usage:     "List rule presets for known integrations",
		ArgsUsage: "[slug]",
		Action: func(c *cli.Context) error {
			output, err := ops.Presets(c.Context, env, ops.PresetsInput{Slug: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// languagesCmd creates the languages command.
func languagesCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "languages",
		Usage:     "Show the active languages, or replace them",
		ArgsUsage: "[code...]",
		Action: func(c *cli.Context) error {
			var (
				output *ops.LanguagesOutput
				err    error
			)
			if c.NArg() > 0 {
				output, err = ops.SetLanguages(c.Context, env, ops.SetLanguagesInput{Languages: parseList(c.Args().Slice())})
			} else {
				output, err = ops.Languages(c.Context, env)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// categoriesCmd creates the categories command.
func categoriesCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "Show the consent categories, or replace them with --set (JSON array from stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "set", Usage: "Replace the categories"},
			fileFlag(),
		},
		Action: func(c *cli.Context) error {
			var (
				output *ops.CategoriesOutput
				err    error
			)
			if c.Bool("set") {
				var cats []services.CategoryMeta
				if err := readJSONInput(c, &cats); err != nil {
					return outputError(err)
				}
				output, err = ops.SetCategories(c.Context, env, ops.SetCategoriesInput{Categories: cats})
			} else {
				output, err = ops.Categories(c.Context, env)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// notifyCmd creates the notify command.
func notifyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Show or update alert email preferences",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "email", Usage: "Send alert emails (--email=false to disable)"},
			&cli.StringFlag{Name: "recipients", Usage: "Comma-separated recipients; empty falls back to the admin address"},
		},
		Action: func(c *cli.Context) error {
			var input ops.SetNotificationsInput
			if c.IsSet("email") {
				enabled := c.Bool("email")
				input.EmailEnabled = &enabled
			}
			if c.IsSet("recipients") {
				recipients := parseList(strings.Split(c.String("recipients"), ","))
				input.Recipients = &recipients
			}

			var (
				output *ops.NotificationsOutput
				err    error
			)
			if input.EmailEnabled != nil || input.Recipients != nil {
				output, err = ops.SetNotifications(c.Context, env, input)
			} else {
				output, err = ops.GetNotifications(c.Context, env)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Back up stored settings to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.fpconsent/backups/<site>-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Restore settings from a JSONL backup",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, env, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

func httpFlags(env *ops.Env) []cli.Flag {
	bind, port := "127.0.0.1", 8787
	if env != nil {
		bind, port = env.Config.HTTPBind, env.Config.HTTPPort
	}
	return []cli.Flag{
		&cli.StringFlag{Name: "bind", Value: bind, Usage: "Address to bind"},
		&cli.IntFlag{Name: "port", Value: port, Usage: "Port to listen on"},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the rules API and admin pages over HTTP",
		Flags: httpFlags(env),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveHTTP(ctx, c, env)
		},
	}
}

// daemonCmd creates the daemon command.
func daemonCmd(env *ops.Env) *cli.Command {
	flags := append(httpFlags(env),
		&cli.BoolFlag{Name: "audit-now", Usage: "Run one audit before the first scheduled run"},
	)
	return &cli.Command{
		Name:  "daemon",
		Usage: "Serve HTTP and run the integration audit on the configured cron schedule",
		Flags: flags,
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if c.Bool("audit-now") {
				if _, err := ops.RunAudit(ctx, env); err != nil {
					env.Logger.Error("startup audit failed", "err", err)
				}
			}

			scheduler := audit.NewScheduler(env.Auditor, env.Config.AuditSchedule, env.Logger)
			if err := scheduler.Start(ctx); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			defer scheduler.Stop()
			if next := scheduler.NextRun(); next != nil {
				env.Logger.Info("next audit scheduled", "at", next.UTC())
			}

			return serveHTTP(ctx, c, env)
		},
	}
}

func serveHTTP(ctx context.Context, c *cli.Context, env *ops.Env) error {
	srv, err := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	if err := web.Run(ctx, srv, env.Logger); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.ConsentError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readJSONInput decodes JSON from --file, or from stdin when it is piped.
func readJSONInput(c *cli.Context, v any) error {
	var r io.Reader
	if path := c.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.NewFileNotFound(path)
			}
			return errors.NewInternal(err)
		}
		defer f.Close()
		r = f
	} else {
		if f, ok := c.App.Reader.(*os.File); ok && !stdinHasData(f) {
			return errors.NewInvalidRequest("JSON input must be piped via stdin or given with --file")
		}
		r = c.App.Reader
	}

	data, err := readWithLimit(r, maxInputBytes)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.NewInvalidRequest("JSON input is empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewInvalidRequest("invalid JSON input: " + err.Error())
	}
	return nil
}

// readWithLimit reads all of r, failing when it exceeds limit bytes.
func readWithLimit(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

// stdinHasData returns true if f is piped data (not a terminal).
func stdinHasData(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// parseList trims entries and drops empty ones.
func parseList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
