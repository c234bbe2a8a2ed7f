package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string `json:"path,omitempty"` // optional, default: ~/.fpconsent/backups/<site>-<timestamp>.jsonl
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a settings export.
type ExportHeader struct {
	Export        bool   `json:"_fpconsent_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportRecord is one stored setting.
type ExportRecord struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Export writes every stored setting to a JSONL file: a header line, then one
// record per key in key order. The file is written to a temp name and renamed
// into place so an existing backup survives a failed export.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	path := input.Path
	if path == "" {
		var err error
		if path, err = defaultExportPath(env.Config.SiteName, now); err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(path, PathCheckWrite, env.Config); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create backup directory: %w", err))
	}

	conn := env.Store.DB()
	keys, err := db.SettingKeys(ctx, conn)
	if err != nil {
		return nil, err
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(suffix) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	if err := enc.Encode(ExportHeader{Export: true, SchemaVersion: ExportSchemaVersion, ExportedAt: now.Unix()}); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		value, ok, err := db.GetSetting(ctx, conn, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := enc.Encode(ExportRecord{Key: key, Value: value}); err != nil {
			return nil, errors.NewInternal(err)
		}
		count++
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename follows a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	env.Logger.Info("settings exported", "path", path, "count", count)
	return &ExportOutput{Path: path, Count: count, ExportedAt: now.Unix()}, nil
}

// defaultExportPath returns ~/.fpconsent/backups/<site>-<timestamp>.jsonl.
func defaultExportPath(site string, now time.Time) (string, error) {
	dir, err := DefaultBackupDir()
	if err != nil {
		return "", err
	}
	name := SanitizeForFilename(site)
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, now.Format("2006-01-02T150405"), BackupExt)), nil
}
