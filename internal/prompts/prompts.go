// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompts holds the templates that drive the adaptive RAG workflow:
// the router, the document grader, the answer generator, and the
// hallucination and answer graders.
//
// Templates use {name} placeholders. A doubled brace ({{ or }}) is a literal
// brace, and a brace that does not wrap an identifier is left alone so JSON
// examples can appear in a template unescaped.
package prompts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/ragrun/internal/util"
)

// Template names. They match the keys of the [prompts] config section.
const (
	RouterInstruction              = "router_instruction"
	DocGraderInstruction           = "doc_grader_instruction"
	DocGraderPrompt                = "doc_grader_prompt"
	RAGPrompt                      = "rag_prompt"
	HallucinationGraderInstruction = "hallucination_grader_instruction"
	HallucinationGraderPrompt      = "hallucination_grader_prompt"
	AnswerGraderInstruction        = "answer_grader_instruction"
	AnswerGraderPrompt             = "answer_grader_prompt"
)

// Placeholder variable names.
const (
	VarQuestion   = "question"
	VarDocument   = "document"
	VarDocuments  = "documents"
	VarContext    = "context"
	VarGeneration = "generation"
)

var (
	// ErrMissingVariable is returned by Format when a placeholder has no value.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrUnknownTemplate is returned for a name outside Names().
	ErrUnknownTemplate = errors.New("unknown prompt template")
)

// varRules lists the placeholders a template must and may reference.
type varRules struct {
	required []string
	allowed  []string
}

var templateVars = map[string]varRules{
	RouterInstruction:              {},
	DocGraderInstruction:           {allowed: []string{VarDocument, VarQuestion}},
	DocGraderPrompt:                {required: []string{VarDocument, VarQuestion}},
	RAGPrompt:                      {required: []string{VarContext, VarQuestion}},
	HallucinationGraderInstruction: {},
	HallucinationGraderPrompt:      {required: []string{VarDocuments, VarGeneration}},
	AnswerGraderInstruction:        {},
	AnswerGraderPrompt:             {required: []string{VarQuestion, VarGeneration}},
}

// Names returns every template name in a stable order.
func Names() []string {
	return []string{
		RouterInstruction,
		DocGraderInstruction,
		DocGraderPrompt,
		RAGPrompt,
		HallucinationGraderInstruction,
		HallucinationGraderPrompt,
		AnswerGraderInstruction,
		AnswerGraderPrompt,
	}
}

// Required returns the placeholders template name must reference.
func Required(name string) []string {
	return append([]string(nil), templateVars[name].required...)
}

// =============================================================================
// SET
// =============================================================================

// Set is one complete collection of workflow templates.
type Set struct {
	RouterInstruction              string `yaml:"router_instruction"`
	DocGraderInstruction           string `yaml:"doc_grader_instruction"`
	DocGraderPrompt                string `yaml:"doc_grader_prompt"`
	RAGPrompt                      string `yaml:"rag_prompt"`
	HallucinationGraderInstruction string `yaml:"hallucination_grader_instruction"`
	HallucinationGraderPrompt      string `yaml:"hallucination_grader_prompt"`
	AnswerGraderInstruction        string `yaml:"answer_grader_instruction"`
	AnswerGraderPrompt             string `yaml:"answer_grader_prompt"`
}

// Default returns the built-in templates.
func Default() Set {
	return Set{
		RouterInstruction:              defaultRouterInstruction,
		DocGraderInstruction:           defaultDocGraderInstruction,
		DocGraderPrompt:                defaultDocGraderPrompt,
		RAGPrompt:                      defaultRAGPrompt,
		HallucinationGraderInstruction: defaultHallucinationGraderInstruction,
		HallucinationGraderPrompt:      defaultHallucinationGraderPrompt,
		AnswerGraderInstruction:        defaultAnswerGraderInstruction,
		AnswerGraderPrompt:             defaultAnswerGraderPrompt,
	}
}

func (s *Set) field(name string) (*string, error) {
	switch name {
	case RouterInstruction:
		return &s.RouterInstruction, nil
	case DocGraderInstruction:
		return &s.DocGraderInstruction, nil
	case DocGraderPrompt:
		return &s.DocGraderPrompt, nil
	case RAGPrompt:
		return &s.RAGPrompt, nil
	case HallucinationGraderInstruction:
		return &s.HallucinationGraderInstruction, nil
	case HallucinationGraderPrompt:
		return &s.HallucinationGraderPrompt, nil
	case AnswerGraderInstruction:
		return &s.AnswerGraderInstruction, nil
	case AnswerGraderPrompt:
		return &s.AnswerGraderPrompt, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

// Get returns the template called name.
func (s Set) Get(name string) (string, error) {
	p, err := s.field(name)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// With returns a copy of s with template name replaced.
func (s Set) With(name, template string) (Set, error) {
	p, err := s.field(name)
	if err != nil {
		return s, err
	}
	*p = template
	return s, nil
}

// Merge returns a copy of s with every non-blank override applied. Unknown
// names are reported together.
func (s Set) Merge(overrides map[string]string) (Set, error) {
	var unknown []string
	for name, tmpl := range overrides {
		if strings.TrimSpace(tmpl) == "" {
			continue
		}
		p, err := s.field(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		*p = tmpl
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return s, fmt.Errorf("%w: %s", ErrUnknownTemplate, strings.Join(unknown, ", "))
	}
	return s, nil
}

// Validate checks that every template is non-blank, references all of its
// required placeholders and nothing it cannot be given.
func (s Set) Validate() error {
	var errs []error
	for _, name := range Names() {
		tmpl, _ := s.Get(name)
		if strings.TrimSpace(tmpl) == "" {
			errs = append(errs, fmt.Errorf("%s: template is empty", name))
			continue
		}

		sp := templateVars[name]
		used := make(map[string]bool)
		for _, v := range Placeholders(tmpl) {
			used[v] = true
		}
		for _, req := range sp.required {
			if !used[req] {
				errs = append(errs, fmt.Errorf("%s: missing placeholder {%s}", name, req))
			}
			delete(used, req)
		}
		for _, a := range sp.allowed {
			delete(used, a)
		}
		extra := make([]string, 0, len(used))
		for v := range used {
			extra = append(extra, v)
		}
		sort.Strings(extra)
		for _, v := range extra {
			errs = append(errs, fmt.Errorf("%s: unknown placeholder {%s}", name, v))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// FORMATTING
// =============================================================================

// Format substitutes {name} placeholders in tmpl with vars.
func Format(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	var missing []string
	scan(tmpl, func(literal string) {
		b.WriteString(literal)
	}, func(name string) {
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return
		}
		b.WriteString(v)
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(missing, ", "))
	}
	return b.String(), nil
}

// Placeholders returns the placeholder names in tmpl in order of first use.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var out []string
	scan(tmpl, func(string) {}, func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	})
	return out
}

// scan walks tmpl, reporting literal runs and placeholder names.
func scan(tmpl string, literal func(string), placeholder func(string)) {
	start := 0
	for i := 0; i < len(tmpl); i++ {
		switch tmpl[i] {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				literal(tmpl[start:i] + "{")
				i++
				start = i + 1
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				continue
			}
			name := tmpl[i+1 : i+1+end]
			if !isIdentifier(name) {
				continue
			}
			literal(tmpl[start:i])
			placeholder(name)
			i += end + 1
			start = i + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				literal(tmpl[start:i] + "}")
				i++
				start = i + 1
			}
		}
	}
	literal(tmpl[start:])
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// YAML IMPORT/EXPORT
// =============================================================================

// WriteYAML encodes s to w.
func (s Set) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode prompts: %w", err)
	}
	return enc.Close()
}

// ReadYAML decodes a Set from r. Templates absent from the document keep
// their values from base.
func ReadYAML(r io.Reader, base Set) (Set, error) {
	var overrides map[string]string
	if err := yaml.NewDecoder(r).Decode(&overrides); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return base, fmt.Errorf("failed to decode prompts: %w", err)
	}
	return base.Merge(overrides)
}

// ExportFile writes s to path as YAML.
func (s Set) ExportFile(path string) error {
	var b strings.Builder
	if err := s.WriteYAML(&b); err != nil {
		return err
	}
	return util.AtomicWriteFile(path, []byte(b.String()), 0644)
}

// ImportFile reads a YAML prompt file over base and validates the result.
func ImportFile(path string, base Set) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("failed to open prompt file: %w", err)
	}
	defer f.Close()

	set, err := ReadYAML(f, base)
	if err != nil {
		return base, err
	}
	if err := set.Validate(); err != nil {
		return base, fmt.Errorf("invalid prompt file %s: %w", path, err)
	}
	return set, nil
}

// Overrides returns the templates in s that differ from the defaults, keyed
// by name. Saving these into the config keeps it minimal.
func (s Set) Overrides() map[string]string {
	d := Default()
	out := make(map[string]string)
	for _, name := range Names() {
		got, _ := s.Get(name)
		def, _ := d.Get(name)
		if got != def {
			out[name] = got
		}
	}
	return out
}
