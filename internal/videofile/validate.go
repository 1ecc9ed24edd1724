// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package videofile

import (
	"fmt"
	"mime"
	"slices"
	"sort"
	"strings"
)

// DefaultMaxSizeBytes keeps uploads below the 32 MB request-body limit of the
// hosting platform.
const DefaultMaxSizeBytes int64 = 30 * 1024 * 1024

// Rule identifies which check rejected a file.
type Rule string

const (
	RuleEmpty    Rule = "empty"
	RuleTooLarge Rule = "too_large"
	RuleType     Rule = "type"
)

// Rejection is returned by Validate.
type Rejection struct {
	Rule   Rule
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// Constraints bounds acceptable files. AcceptedTypes maps a MIME type to the
// extensions (with leading dot) accepted for it.
type Constraints struct {
	MaxSizeBytes  int64
	AcceptedTypes map[string][]string
}

// DefaultConstraints returns the default ceiling and MP4/MOV/WebM types.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxSizeBytes: DefaultMaxSizeBytes,
		AcceptedTypes: map[string][]string{
			"video/mp4":       {".mp4"},
			"video/quicktime": {".mov"},
			"video/webm":      {".webm"},
		},
	}
}

// Validate checks file against c. The first failing rule wins: empty file,
// size ceiling, then type (declared MIME or file extension).
func Validate(f File, c Constraints) error {
	if f.Size <= 0 {
		return &Rejection{Rule: RuleEmpty, Reason: "file is empty"}
	}
	if c.MaxSizeBytes > 0 && f.Size > c.MaxSizeBytes {
		return &Rejection{
			Rule:   RuleTooLarge,
			Reason: fmt.Sprintf("file is too large (%s): maximum is %s", FormatSize(f.Size), FormatSize(c.MaxSizeBytes)),
		}
	}
	if !c.accepts(f) {
		return &Rejection{
			Rule:   RuleType,
			Reason: fmt.Sprintf("unsupported file type %q: accepted extensions are %s", f.ContentType, strings.Join(c.Extensions(), ", ")),
		}
	}
	return nil
}

func (c Constraints) accepts(f File) bool {
	if mt, _, err := mime.ParseMediaType(f.ContentType); err == nil {
		if _, ok := c.AcceptedTypes[strings.ToLower(mt)]; ok {
			return true
		}
	}
	name := strings.ToLower(f.Name)
	for _, exts := range c.AcceptedTypes {
		for _, ext := range exts {
			if ext != "" && strings.HasSuffix(name, strings.ToLower(ext)) {
				return true
			}
		}
	}
	return false
}

// Extensions lists all accepted extensions, sorted.
func (c Constraints) Extensions() []string {
	var out []string
	for _, exts := range c.AcceptedTypes {
		for _, ext := range exts {
			if !slices.Contains(out, ext) {
				out = append(out, ext)
			}
		}
	}
	sort.Strings(out)
	return out
}
