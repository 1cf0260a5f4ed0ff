// Package parser loads scenario YAML files into scenario.TestScenario
// values, with ${VAR} / $VAR environment substitution applied before
// decoding.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
)

// Parser decodes scenario files, substituting variables first.
type Parser struct {
	Variables map[string]string
}

// New creates a parser with optional variables.
func New(variables map[string]string) *Parser {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Parser{Variables: variables}
}

// scenarioFile is the YAML-facing representation of a scenario; schedules
// are expressed as a discriminated "kind" field rather than Go interfaces.
type scenarioFile struct {
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	DurationSeconds *uint64           `yaml:"duration_seconds,omitempty"`
	Seed            int64             `yaml:"seed"`
	Metadata        map[string]string `yaml:"metadata,omitempty"`
	Links           []linkFile        `yaml:"links"`
}

type linkFile struct {
	Name       string         `yaml:"name"`
	TxIface    string         `yaml:"tx_iface"`
	RxIface    string         `yaml:"rx_iface"`
	TxSchedule scheduleFile   `yaml:"tx_schedule"`
	RxSchedule *scheduleFile  `yaml:"rx_schedule,omitempty"`
}

type scheduleFile struct {
	Kind  string            `yaml:"kind"`
	Spec  *direction.Spec   `yaml:"spec,omitempty"`
	Steps []stepFile        `yaml:"steps,omitempty"`
	// Markov fields
	Stable     *direction.Spec `yaml:"stable,omitempty"`
	Bursty     *direction.Spec `yaml:"bursty,omitempty"`
	ReplayFile string          `yaml:"replay_file,omitempty"`
	Points     []stepFile      `yaml:"points,omitempty"`
}

type stepFile struct {
	AtMs uint64         `yaml:"at_ms"`
	Spec direction.Spec `yaml:"spec"`
}

// ParseFile loads and decodes a scenario YAML file.
func (p *Parser) ParseFile(path string) (*scenario.TestScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return p.Parse(data)
}

// Parse decodes scenario YAML bytes after variable substitution.
func (p *Parser) Parse(data []byte) (*scenario.TestScenario, error) {
	substituted := p.substituteVariables(string(data))

	var sf scenarioFile
	if err := yaml.Unmarshal([]byte(substituted), &sf); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}
	if sf.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(sf.Links) == 0 {
		return nil, fmt.Errorf("at least one link is required")
	}

	ts := scenario.TestScenario{
		Name:            sf.Name,
		Description:     sf.Description,
		DurationSeconds: sf.DurationSeconds,
		Metadata:        sf.Metadata,
		Seed:            sf.Seed,
	}

	for i, lf := range sf.Links {
		tx, err := buildSchedule(lf.TxSchedule, sf.Seed^int64(i))
		if err != nil {
			return nil, fmt.Errorf("link %q tx_schedule: %w", lf.Name, err)
		}
		rx := tx
		if lf.RxSchedule != nil {
			rx, err = buildSchedule(*lf.RxSchedule, sf.Seed^int64(i)^1)
			if err != nil {
				return nil, fmt.Errorf("link %q rx_schedule: %w", lf.Name, err)
			}
		}
		if lf.TxIface == "" || lf.RxIface == "" {
			return nil, fmt.Errorf("link %q: tx_iface and rx_iface are required", lf.Name)
		}
		ts.Links = append(ts.Links, scenario.LinkSpec{
			Name: lf.Name, TxIface: lf.TxIface, RxIface: lf.RxIface,
			TxSched: tx, RxSched: rx,
		})
	}

	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return &ts, nil
}

func buildSchedule(sf scheduleFile, seed int64) (schedule.Schedule, error) {
	switch strings.ToLower(sf.Kind) {
	case "", "constant":
		if sf.Spec == nil {
			return nil, fmt.Errorf("constant schedule requires spec")
		}
		if err := sf.Spec.Validate(); err != nil {
			return nil, err
		}
		return schedule.Constant{Spec: *sf.Spec}, nil

	case "steps":
		if len(sf.Steps) == 0 {
			return nil, fmt.Errorf("steps schedule requires at least one step")
		}
		steps := make([]schedule.Step, 0, len(sf.Steps))
		for _, s := range sf.Steps {
			if err := s.Spec.Validate(); err != nil {
				return nil, err
			}
			steps = append(steps, schedule.Step{At: time.Duration(s.AtMs) * time.Millisecond, Spec: s.Spec})
		}
		return schedule.Steps{Steps: steps}, nil

	case "markov":
		if sf.Stable == nil || sf.Bursty == nil {
			return nil, fmt.Errorf("markov schedule requires stable and bursty specs")
		}
		return schedule.BurstyMarkov(*sf.Stable, *sf.Bursty, seed), nil

	case "replay":
		if len(sf.Points) == 0 {
			return nil, fmt.Errorf("replay schedule requires at least one point")
		}
		points := make([]schedule.ReplayPoint, 0, len(sf.Points))
		for _, p := range sf.Points {
			points = append(points, schedule.ReplayPoint{At: time.Duration(p.AtMs) * time.Millisecond, Spec: p.Spec})
		}
		return schedule.Replay{Points: points}, nil

	default:
		return nil, fmt.Errorf("unknown schedule kind %q", sf.Kind)
	}
}

// substituteVariables replaces ${VAR} and $VAR with values from parser
// variables, falling back to the environment.
func (p *Parser) substituteVariables(content string) string {
	re := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if val, ok := p.Variables[varName]; ok {
			return val
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// SetVariable sets a substitution variable.
func (p *Parser) SetVariable(key, value string) {
	p.Variables[key] = value
}

// ParseOverrides parses CLI override strings of the form key=value.
func ParseOverrides(overrides []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, override := range overrides {
		parts := strings.SplitN(override, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid override format: %s (expected key=value)", override)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("empty key in override: %s", override)
		}
		result[key] = value
	}
	return result, nil
}
