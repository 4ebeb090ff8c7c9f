package vectorstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// whereBuilder turns a metadata filter into a SQL condition over the
// metadata JSONB column, collecting positional arguments as it goes.
//
// Filters are JSON objects. Plain keys are containment matches
// ({"kind": "report"}), {"key": {"$in": [...]}} matches any listed value, and
// "$and", "$or" and "$not" combine nested filters. Keys of one object are
// joined with AND.
type whereBuilder struct {
	args []interface{}
}

// arg registers v as the next positional argument and returns its placeholder.
func (b *whereBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) build(filter map[string]interface{}) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	for _, key := range keys {
		cond, err := b.condition(key, filter[key])
		if err != nil {
			return "", err
		}
		if cond != "" {
			conds = append(conds, cond)
		}
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), nil
}

func (b *whereBuilder) condition(key string, value interface{}) (string, error) {
	switch key {
	case "$and", "$or":
		list, ok := value.([]interface{})
		if !ok {
			return "", fmt.Errorf("value for %s must be a list of conditions", key)
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			sub, ok := item.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("item in %s list must be a JSON object", key)
			}
			cond, err := b.build(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+cond+")")
		}
		if len(parts) == 0 {
			return "", nil
		}
		op := " AND "
		if key == "$or" {
			op = " OR "
		}
		return "(" + strings.Join(parts, op) + ")", nil

	case "$not":
		sub, ok := value.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("value for $not must be a JSON object")
		}
		cond, err := b.build(sub)
		if err != nil {
			return "", err
		}
		return "NOT (" + cond + ")", nil
	}

	if ops, ok := value.(map[string]interface{}); ok && len(ops) == 1 {
		if in, ok := ops["$in"]; ok {
			return b.in(key, in)
		}
	}

	pair, err := json.Marshal(map[string]interface{}{key: value})
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata pair: %w", err)
	}
	return "metadata @> " + b.arg(pair), nil
}

func (b *whereBuilder) in(key string, value interface{}) (string, error) {
	list, ok := value.([]interface{})
	if !ok {
		return "", fmt.Errorf("value for $in on %s must be a list", key)
	}
	if len(list) == 0 {
		return "FALSE", nil
	}
	values := make([]string, 0, len(list))
	for _, v := range list {
		values = append(values, fmt.Sprint(v))
	}
	field := b.arg(key)
	return fmt.Sprintf("metadata->>%s = ANY(%s)", field, b.arg(values)), nil
}
