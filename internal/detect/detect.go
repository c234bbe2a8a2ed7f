// Package detect provides Detection Provider implementations.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// Inventory is the on-disk detection report: the integrations a site scanner
// found, in the order it found them.
type Inventory struct {
	Services []services.Service `json:"services" yaml:"services"`
}

// FileProvider reads detection output from a JSON or YAML inventory file that an
// external scanner keeps up to date. A missing file means nothing was detected.
type FileProvider struct {
	Path string
}

// DetectServices implements services.Detector. The file is re-read on every call.
func (p *FileProvider) DetectServices(ctx context.Context, _ bool) ([]services.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return []services.Service{}, nil
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []services.Service{}, nil
		}
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	inv, err := ParseInventory(data, filepath.Ext(p.Path))
	if err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", p.Path, err)
	}
	return inv.Services, nil
}

// ParseInventory decodes an inventory. ext selects the format; ".json" uses
// encoding/json, anything else YAML. A bare list of services is accepted too.
func ParseInventory(data []byte, ext string) (*Inventory, error) {
	var inv Inventory
	if strings.EqualFold(ext, ".json") {
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(data, &inv.Services); err != nil {
				return nil, err
			}
		} else if err := json.Unmarshal(data, &inv); err != nil {
			return nil, err
		}
	} else {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Content[0].Decode(&inv.Services); err != nil {
				return nil, err
			}
		} else if err := node.Decode(&inv); err != nil {
			return nil, err
		}
	}
	if inv.Services == nil {
		inv.Services = []services.Service{}
	}
	return &inv, nil
}

// Cached memoizes non-forced detections for a TTL window. Forced calls always
// reach the wrapped detector and refresh the cache.
type Cached struct {
	next services.Detector
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	result  []services.Service
	fetched time.Time
}

// NewCached wraps next with a cache of ttl. A zero ttl disables caching.
func NewCached(next services.Detector, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, now: time.Now}
}

// DetectServices implements services.Detector.
func (c *Cached) DetectServices(ctx context.Context, force bool) ([]services.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.result != nil && c.ttl > 0 && c.now().Sub(c.fetched) < c.ttl {
		return clone(c.result), nil
	}

	list, err := c.next.DetectServices(ctx, force)
	if err != nil {
		return nil, err
	}
	c.result = clone(list)
	c.fetched = c.now()
	return list, nil
}

// Invalidate drops the cached result.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
}

func clone(in []services.Service) []services.Service {
	out := make([]services.Service, len(in))
	copy(out, in)
	return out
}
