package gateway

import (
	"fmt"
	"strings"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

// Parameter schemas are data, one per operation; validate runs them before
// anything touches storage.

type paramKind int

const (
	kindInt paramKind = iota
	kindString
	kindFields
)

type paramSpec struct {
	name        string
	kind        paramKind
	required    bool
	positive    bool
	nonEmpty    bool
	enum        []string
	allowedKeys []string
}

const (
	OpLookupOne      = "lookup-one"
	OpListWithFilter = "list-with-filter"
	OpUpdateFields   = "update-fields"
	OpCreateRecord   = "create-record"
	OpListHistory    = "list-history"
)

var updatableFields = []string{"email", "name", "phone", "status"}

var opSchemas = map[string][]paramSpec{
	OpLookupOne: {
		{name: "id", kind: kindInt, required: true, positive: true},
	},
	OpListWithFilter: {
		{name: "status", kind: kindString, enum: []string{contractx.CustomerActive, contractx.CustomerDisabled}},
		{name: "limit", kind: kindInt, positive: true},
	},
	OpUpdateFields: {
		{name: "id", kind: kindInt, required: true, positive: true},
		{name: "fields", kind: kindFields, required: true, nonEmpty: true, allowedKeys: updatableFields},
	},
	OpCreateRecord: {
		{name: "id", kind: kindInt, required: true, positive: true},
		{name: "issue", kind: kindString, required: true, nonEmpty: true},
		{name: "priority", kind: kindString, required: true, enum: []string{
			string(contractx.PriorityLow), string(contractx.PriorityMedium), string(contractx.PriorityHigh),
		}},
	},
	OpListHistory: {
		{name: "id", kind: kindInt, required: true, positive: true},
	},
}

func validate(op string, params map[string]any) error {
	specs, ok := opSchemas[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", contractx.ErrValidation, op)
	}

	known := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		known[spec.name] = struct{}{}
		raw, present := params[spec.name]
		if !present {
			if spec.required {
				return fmt.Errorf("%w: %s: parameter %q is required", contractx.ErrValidation, op, spec.name)
			}
			continue
		}
		if err := spec.check(raw); err != nil {
			return fmt.Errorf("%w: %s: %v", contractx.ErrValidation, op, err)
		}
	}
	for name := range params {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: %s: unexpected parameter %q", contractx.ErrValidation, op, name)
		}
	}
	return nil
}

func (spec paramSpec) check(raw any) error {
	switch spec.kind {
	case kindInt:
		v, ok := asInt64(raw)
		if !ok {
			return fmt.Errorf("parameter %q: expected integer, got %T", spec.name, raw)
		}
		if spec.positive && v <= 0 {
			return fmt.Errorf("parameter %q: must be > 0, got %d", spec.name, v)
		}
	case kindString:
		v, ok := raw.(string)
		if !ok {
			return fmt.Errorf("parameter %q: expected string, got %T", spec.name, raw)
		}
		if spec.nonEmpty && strings.TrimSpace(v) == "" {
			return fmt.Errorf("parameter %q: must be non-empty", spec.name)
		}
		if len(spec.enum) > 0 && !contains(spec.enum, v) {
			return fmt.Errorf("parameter %q: %q is not one of %v", spec.name, v, spec.enum)
		}
	case kindFields:
		v, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("parameter %q: expected map, got %T", spec.name, raw)
		}
		if spec.nonEmpty && len(v) == 0 {
			return fmt.Errorf("parameter %q: must be non-empty", spec.name)
		}
		for key, val := range v {
			if !contains(spec.allowedKeys, key) {
				return fmt.Errorf("parameter %q: key %q is not in the allowed set %v", spec.name, key, spec.allowedKeys)
			}
			if _, ok := val.(string); !ok {
				return fmt.Errorf("parameter %q: key %q must be a string, got %T", spec.name, key, val)
			}
		}
	}
	return nil
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
