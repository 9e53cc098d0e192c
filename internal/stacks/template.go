// Package stacks implements the stack orchestrator (component E): template
// parsing and validation, DAG resource ordering, create/update/delete
// driving the function registry, log ledger and object store through
// narrow adapter interfaces, a never-compacted event journal, and
// update-with-rollback.
//
// Grounded on the teacher's internal/workflow state-machine-over-a-
// declarative-definition shape, generalized from workflow steps to stack
// resources, and on the teacher's mutex-guarded repository pattern for the
// aggregate root (see Orchestrator in orchestrator.go).
package stacks

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/oriys/microstack/internal/apierr"
)

// ResourceDef is one entry of a template's Resources mapping, in document
// order.
type ResourceDef struct {
	LogicalID  string
	Type       string
	Properties map[string]any
	DependsOn  []string
}

// Template is a structurally validated template: a Resources mapping
// whose entries each carry a Type and, optionally, Properties and
// DependsOn.
type Template struct {
	Resources []ResourceDef
}

// ParseTemplate parses body as JSON first, falling back to YAML on
// failure, per §4.E. It validates the top-level shape (a mapping with a
// non-empty Resources mapping, each entry carrying a non-empty Type, and
// DependsOn referencing only resources present in the same template) but
// does not validate per-type property schemas — that is validateProperties's
// job, run separately so unsupported resource types can still reach the
// creation pass and fail there as the spec requires.
func ParseTemplate(body string) (*Template, error) {
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		if yerr := yaml.Unmarshal([]byte(body), &raw); yerr != nil {
			return nil, apierr.InvalidArgumentf("ValidationError", "template is neither valid JSON nor YAML: %v", yerr)
		}
	}

	resourcesRaw, ok := raw["Resources"]
	if !ok {
		return nil, apierr.InvalidArgumentf("ValidationError", "template missing Resources")
	}
	resources, ok := toMap(resourcesRaw)
	if !ok || len(resources) == 0 {
		return nil, apierr.InvalidArgumentf("ValidationError", "Resources must be a non-empty mapping")
	}

	order := resourceOrder(body)
	if len(order) != len(resources) {
		order = sortedKeys(resources)
	}

	tmpl := &Template{}
	for _, id := range order {
		entry, ok := toMap(resources[id])
		if !ok {
			return nil, apierr.InvalidArgumentf("ValidationError", "resource %q must be a mapping", id)
		}
		typ, _ := entry["Type"].(string)
		if typ == "" {
			return nil, apierr.InvalidArgumentf("ValidationError", "resource %q missing Type", id)
		}
		props, _ := toMap(entry["Properties"])
		dependsOn, err := toStringList(entry["DependsOn"])
		if err != nil {
			return nil, apierr.InvalidArgumentf("ValidationError", "resource %q has invalid DependsOn: %v", id, err)
		}
		for _, dep := range dependsOn {
			if _, ok := resources[dep]; !ok {
				return nil, apierr.InvalidArgumentf("ValidationError", "resource %q depends on unknown resource %q", id, dep)
			}
		}
		tmpl.Resources = append(tmpl.Resources, ResourceDef{
			LogicalID:  id,
			Type:       typ,
			Properties: props,
			DependsOn:  dependsOn,
		})
	}
	return tmpl, nil
}

// validateTemplate runs the per-type property schema (§4.E) against every
// resource of a known type. Resources of an unknown type are left
// unvalidated here; they are rejected later, during the creation pass,
// with the CREATE_FAILED terminal state the spec requires.
func validateTemplate(tmpl *Template) error {
	for _, r := range tmpl.Resources {
		if !knownTypes[r.Type] {
			continue
		}
		if err := validateProperties(r.Type, r.Properties); err != nil {
			return err
		}
	}
	return nil
}

// resourceOrder recovers the document order of the Resources mapping's
// keys via a YAML node walk. JSON object syntax is valid YAML flow
// syntax, so a single node-based walk covers both of ParseTemplate's
// accepted dialects without a second, JSON-specific tokenizer. Returns
// nil if the order could not be recovered; the caller falls back to a
// lexicographic order.
func resourceOrder(body string) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "Resources" {
			continue
		}
		res := root.Content[i+1]
		if res.Kind != yaml.MappingNode {
			return nil
		}
		var order []string
		for j := 0; j+1 < len(res.Content); j += 2 {
			order = append(order, res.Content[j].Value)
		}
		return order
	}
	return nil
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	case nil:
		return map[string]any{}, true
	default:
		return nil, false
	}
}

func toStringList(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
