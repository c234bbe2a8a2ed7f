package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/settings"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any problem (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite existing keys
	ImportModeSkip    ImportMode = "skip"    // keep existing keys
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     `json:"path"`           // required
	Mode ImportMode `json:"mode,omitempty"` // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a record that was not imported.
type ImportError struct {
	Line    int    `json:"line"`
	Key     string `json:"key,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	ExportRecord
}

// Import restores settings from an Export file inside one transaction.
//
// In error mode any malformed line, unknown key or existing key aborts the
// import and nothing is written. Replace and skip modes import what they can
// and report the rest.
func Import(ctx context.Context, env *Env, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	switch input.Mode {
	case ImportModeError, ImportModeReplace, ImportModeSkip:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, env.Config); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, problems := parseExportFile(file)
	out := &ImportOutput{Errors: problems}
	if input.Mode == ImportModeError && len(problems) > 0 {
		return out, nil
	}
	out.Skipped = len(problems)

	var collision *ImportError
	err = db.WithTx(ctx, env.Store.DB(), func(tx *sql.Tx) error {
		for _, r := range records {
			_, exists, err := db.GetSetting(ctx, tx, r.Key)
			if err != nil {
				return err
			}
			if exists {
				switch input.Mode {
				case ImportModeError:
					collision = &ImportError{
						Line:    r.line,
						Key:     r.Key,
						Code:    "KEY_COLLISION",
						Message: fmt.Sprintf("setting %q already exists", r.Key),
					}
					return errors.NewInvalidRequest(collision.Message)
				case ImportModeSkip:
					out.Skipped++
					continue
				}
			}
			if err := db.PutSetting(ctx, tx, r.Key, r.Value); err != nil {
				return err
			}
			out.Imported++
		}
		return nil
	})
	if collision != nil {
		return &ImportOutput{Errors: []ImportError{*collision}}, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}

	env.Logger.Info("settings imported", "path", input.Path, "mode", input.Mode,
		"imported", out.Imported, "skipped", out.Skipped)
	return out, nil
}

// parseExportFile reads records from an export, skipping the header and
// reporting malformed lines, unknown keys and values of the wrong shape.
func parseExportFile(r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var problems []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal(raw, &header); err == nil && header.Export {
			continue
		}

		var rec ExportRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			problems = append(problems, ImportError{
				Line:    line,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.Key == "" {
			problems = append(problems, ImportError{Line: line, Code: "INVALID_RECORD", Message: "missing key field"})
			continue
		}
		if err := settings.ValidateValue(rec.Key, rec.Value); err != nil {
			var msg string
			if cErr, ok := err.(*errors.ConsentError); ok {
				msg = cErr.Message
			} else {
				msg = err.Error()
			}
			problems = append(problems, ImportError{Line: line, Key: rec.Key, Code: "INVALID_RECORD", Message: msg})
			continue
		}
		records = append(records, importRecord{line: line, ExportRecord: rec})
	}
	if err := scanner.Err(); err != nil {
		problems = append(problems, ImportError{
			Line:    line,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return records, problems
}
