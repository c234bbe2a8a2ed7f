package services

import (
	"context"
)

// CookieDescriptor describes one cookie set by a service.
type CookieDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Domain      string `json:"domain" yaml:"domain"`
	Duration    string `json:"duration" yaml:"duration"`
	Description string `json:"description" yaml:"description"`
}

// Service is a third-party integration as reported by detection or entered manually.
// It is produced fresh on every detection run and only persisted inside a snapshot.
type Service struct {
	Slug           string             `json:"slug" yaml:"slug"`
	Name           string             `json:"name" yaml:"name"`
	Provider       string             `json:"provider" yaml:"provider"`
	Category       string             `json:"category" yaml:"category"`
	Purpose        string             `json:"purpose,omitempty" yaml:"purpose"`
	PolicyURL      string             `json:"policy_url,omitempty" yaml:"policy_url"`
	Retention      string             `json:"retention,omitempty" yaml:"retention"`
	LegalBasis     string             `json:"legal_basis,omitempty" yaml:"legal_basis"`
	DataCollected  string             `json:"data_collected,omitempty" yaml:"data_collected"`
	DataTransfer   string             `json:"data_transfer,omitempty" yaml:"data_transfer"`
	ConsentSignals []string           `json:"consent_signals,omitempty" yaml:"consent_signals"`
	Cookies        []CookieDescriptor `json:"cookies,omitempty" yaml:"cookies"`
	Detected       bool               `json:"detected" yaml:"detected"`
}

// Summary is the identifying subset of a Service carried in alerts.
type Summary struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Provider string `json:"provider"`
}

// Summary returns the identifying fields of s.
func (s Service) Summary() Summary {
	return Summary{
		Slug:     s.Slug,
		Name:     s.Name,
		Category: s.Category,
		Provider: s.Provider,
	}
}

// Category is a consent category resolved for one language, with its services attached.
type Category struct {
	Slug        string    `json:"slug"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Locked      bool      `json:"locked"`
	Services    []Service `json:"services"`
}

// CategoryMeta is the stored, language-independent form of a category.
type CategoryMeta struct {
	Slug         string                     `json:"slug"`
	Locked       bool                       `json:"locked"`
	Labels       map[string]string          `json:"labels,omitempty"`
	Descriptions map[string]string          `json:"descriptions,omitempty"`
	Services     map[string][]ManualService `json:"services,omitempty"`
}

// Label returns the label for lang, falling back to the slug.
func (m CategoryMeta) Label(lang string) string {
	if l := m.Labels[lang]; l != "" {
		return l
	}
	return m.Slug
}

// Description returns the description for lang, or empty.
func (m CategoryMeta) Description(lang string) string {
	return m.Descriptions[lang]
}

// Detector is the Detection Provider: it inspects the site and returns the
// integrations it recognized. Calls with force=false may be served from a cache.
type Detector interface {
	DetectServices(ctx context.Context, force bool) ([]Service, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, force bool) ([]Service, error)

// DetectServices implements Detector.
func (f DetectorFunc) DetectServices(ctx context.Context, force bool) ([]Service, error) {
	return f(ctx, force)
}

// OnlyDetected returns the services flagged as currently detected, in input order.
func OnlyDetected(list []Service) []Service {
	out := make([]Service, 0, len(list))
	for _, s := range list {
		if s.Detected {
			out = append(out, s)
		}
	}
	return out
}
