// Package validator runs non-fatal and fatal checks over a parsed
// scenario.TestScenario before it is handed to the orchestrator.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
)

// Validator accumulates warnings and errors across one Validate call.
type Validator struct {
	Warnings []string
	Errors   []string
}

// New creates an empty validator.
func New() *Validator {
	return &Validator{Warnings: make([]string, 0), Errors: make([]string, 0)}
}

// Validate checks a scenario for structural and semantic issues.
func (v *Validator) Validate(s *scenario.TestScenario) error {
	v.Warnings = v.Warnings[:0]
	v.Errors = v.Errors[:0]

	v.validateName(s)
	v.validateLinks(s)
	v.checkDangerousScenarios(s)

	if len(v.Errors) > 0 {
		return fmt.Errorf("validation failed with %d errors", len(v.Errors))
	}
	return nil
}

// HasWarnings reports whether the last Validate call produced warnings.
func (v *Validator) HasWarnings() bool { return len(v.Warnings) > 0 }

// HasErrors reports whether the last Validate call produced errors.
func (v *Validator) HasErrors() bool { return len(v.Errors) > 0 }

// GetReport formats the accumulated warnings and errors for display.
func (v *Validator) GetReport() string {
	var sb strings.Builder
	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, err := range v.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err))
		}
	}
	if len(v.Warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, warn := range v.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("Validation passed with no issues.\n")
	}
	return sb.String()
}

var nameRegex = regexp.MustCompile(`^[a-z0-9]([-_a-z0-9]*[a-z0-9])?$`)

func (v *Validator) validateName(s *scenario.TestScenario) {
	if s.Name == "" {
		v.Errors = append(v.Errors, "name is required")
		return
	}
	if !nameRegex.MatchString(s.Name) {
		v.Errors = append(v.Errors, "name must be lowercase alphanumeric with hyphens/underscores")
	}
	if s.DurationSeconds != nil && *s.DurationSeconds > 24*3600 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("duration_seconds is very long (%d s)", *s.DurationSeconds))
	}
}

func (v *Validator) validateLinks(s *scenario.TestScenario) {
	if len(s.Links) == 0 {
		v.Errors = append(v.Errors, "at least one link is required")
		return
	}

	seenNames := make(map[string]bool, len(s.Links))
	seenIfaces := make(map[string]string, len(s.Links)*2)

	for i, l := range s.Links {
		if l.Name == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("links[%d].name is required", i))
		} else if seenNames[l.Name] {
			v.Errors = append(v.Errors, fmt.Sprintf("links[%d].name %q is duplicated", i, l.Name))
		}
		seenNames[l.Name] = true

		if l.TxIface == "" || l.RxIface == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("links[%d] requires tx_iface and rx_iface", i))
			continue
		}
		if l.TxIface == l.RxIface {
			v.Errors = append(v.Errors, fmt.Sprintf("links[%d]: tx_iface and rx_iface must differ", i))
		}
		for _, iface := range []string{l.TxIface, l.RxIface} {
			if owner, ok := seenIfaces[iface]; ok && owner != l.Name {
				v.Errors = append(v.Errors, fmt.Sprintf("interface %q is used by both link %q and link %q", iface, owner, l.Name))
			}
			seenIfaces[iface] = l.Name
		}
		if l.TxSched == nil || l.RxSched == nil {
			v.Errors = append(v.Errors, fmt.Sprintf("links[%d] is missing a schedule", i))
		}
	}
}

func (v *Validator) checkDangerousScenarios(s *scenario.TestScenario) {
	if s.DurationSeconds != nil && *s.DurationSeconds > 3600 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("long test duration (%d s) - ensure this is intentional", *s.DurationSeconds))
	}
	if len(s.Links) > 8 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("scenario bonds %d links - verify the host can sustain that many namespaces", len(s.Links)))
	}
}
