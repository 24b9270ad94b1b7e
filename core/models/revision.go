package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReferenceLabel is the sentinel label of the baseline revision
const ReferenceLabel = "reference"

// Revision represents a named snapshot of validation results
type Revision struct {
	Label        string                    `json:"label" validate:"required"`
	CreationDate Timestamp                 `json:"creation_date"`
	Packages     []PackageExecutionSummary `json:"packages" validate:"dive"`
}

// IsReference reports whether the revision is the reference sentinel
func (r *Revision) IsReference() bool {
	return r.Label == ReferenceLabel
}

// Package returns the execution summary of the named package
func (r *Revision) Package(name string) (*PackageExecutionSummary, bool) {
	for i := range r.Packages {
		if r.Packages[i].Name == name {
			return &r.Packages[i], true
		}
	}
	return nil, false
}

// PackageExecutionSummary holds the script outcomes of one package in one revision
type PackageExecutionSummary struct {
	Name        string       `json:"name" validate:"required"`
	FailCount   int          `json:"fail_count" validate:"gte=0"`
	ScriptFiles []ScriptFile `json:"scriptfiles"`
}

// ScriptStatus is the outcome of a validation script
type ScriptStatus string

const (
	ScriptFailed   ScriptStatus = "failed"
	ScriptFinished ScriptStatus = "finished"
	ScriptSkipped  ScriptStatus = "skipped"
)

// ScriptFile is one validation script of a package
type ScriptFile struct {
	Name   string       `json:"name"`
	Path   string       `json:"path,omitempty"`
	Status ScriptStatus `json:"status,omitempty"`
	LogURL string       `json:"log_url,omitempty"`
}

// RevisionList is the payload of the revision metadata source
type RevisionList struct {
	Revisions []Revision `json:"revisions" validate:"required,dive"`
}

// timestampLayouts are the creation date formats accepted from the backend
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Timestamp is a revision creation date. The zero value means "unknown".
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses a creation date in any accepted layout
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized creation date %q", s)
}

// UnmarshalJSON accepts a date string or null
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("creation date must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes the date in the backend's layout
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(timestampLayouts[0]))
}
