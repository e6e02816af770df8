package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ruleDecoders maps a rule type to its config decoder.
var ruleDecoders = map[string]func(json.RawMessage) (Rule, error){
	RemoveDuplicates{}.Type(): decodeAs[RemoveDuplicates],
	FillMissing{}.Type():      decodeAs[FillMissing],
	DropMissing{}.Type():      decodeAs[DropMissing],
	ConvertType{}.Type():      decodeAs[ConvertType],
	RenameColumns{}.Type():    decodeAs[RenameColumns],
	FilterRows{}.Type():       decodeAs[FilterRows],
	TrimStrings{}.Type():      decodeAs[TrimStrings],
	ReplaceValues{}.Type():    decodeAs[ReplaceValues],
	NormalizeText{}.Type():    decodeAs[NormalizeText],
	ExtractPattern{}.Type():   decodeAs[ExtractPattern],
	RowHash{}.Type():          decodeAs[RowHash],
}

func decodeAs[T Rule](raw json.RawMessage) (Rule, error) {
	var r T
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return r, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

// RuleTypes lists the accepted "type" values, sorted.
func RuleTypes() []string {
	out := make([]string, 0, len(ruleDecoders))
	for k := range ruleDecoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DecodeRule builds a rule from its type name and JSON config.
func DecodeRule(typ string, config json.RawMessage) (Rule, error) {
	dec, ok := ruleDecoders[typ]
	if !ok {
		return nil, fmt.Errorf("unknown rule type %q", typ)
	}
	r, err := dec(config)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", typ, err)
	}
	return r, nil
}

type stepJSON struct {
	Name    string          `json:"name,omitempty"`
	Type    string          `json:"type"`
	Config  json.RawMessage `json:"config,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
}

type pipelineJSON struct {
	Name  string     `json:"name"`
	Rules []stepJSON `json:"rules"`
}

// MarshalJSON writes {"name", "rules": [{"name","type","config","enabled"}]}.
func (p Pipeline) MarshalJSON() ([]byte, error) {
	out := pipelineJSON{Name: p.Name, Rules: make([]stepJSON, 0, len(p.Steps))}
	for i, s := range p.Steps {
		if s.Rule == nil {
			return nil, fmt.Errorf("pipeline %s: step %d has no rule", p.Name, i)
		}
		cfg, err := json.Marshal(s.Rule)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: step %s: %w", p.Name, s.Name, err)
		}
		enabled := !s.Disabled
		out.Rules = append(out.Rules, stepJSON{Name: s.Name, Type: s.Rule.Type(), Config: cfg, Enabled: &enabled})
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the MarshalJSON form. Steps without "enabled" are
// enabled; unknown types and unknown config keys are errors.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var in pipelineJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	steps := make([]Step, 0, len(in.Rules))
	for i, s := range in.Rules {
		r, err := DecodeRule(s.Type, s.Config)
		if err != nil {
			return fmt.Errorf("pipeline %s: rule %d: %w", in.Name, i, err)
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("%s_%d", s.Type, i+1)
		}
		steps = append(steps, Step{Name: name, Rule: r, Disabled: s.Enabled != nil && !*s.Enabled})
	}
	p.Name, p.Steps = in.Name, steps
	return nil
}

type pipelinesFile struct {
	Pipelines []*Pipeline `json:"pipelines"`
}

// LoadPipelines reads a pipelines file ({"pipelines": [...]}). A missing
// file yields no pipelines and no error.
func LoadPipelines(path string) ([]*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load pipelines: %w", err)
	}
	var f pipelinesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("load pipelines %s: %w", path, err)
	}
	return f.Pipelines, nil
}

// SavePipelines writes ps to path, replacing it atomically.
func SavePipelines(path string, ps []*Pipeline) error {
	if ps == nil {
		ps = []*Pipeline{}
	}
	data, err := json.MarshalIndent(pipelinesFile{Pipelines: ps}, "", "  ")
	if err != nil {
		return fmt.Errorf("save pipelines: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save pipelines: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save pipelines: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save pipelines: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save pipelines: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save pipelines: %w", err)
	}
	return nil
}
