package storage

import (
	"fmt"
	"sort"
	"strings"
)

// MatchQuery evaluates an equality filter against a document. $or takes a
// list of alternative filters; nested fields use dotted paths like
// "author._id".
func MatchQuery(doc, query map[string]any) bool {
	for key, want := range query {
		if key == "$or" {
			alternatives, _ := want.([]any)
			matched := false
			for _, alt := range alternatives {
				if filter, ok := alt.(map[string]any); ok && MatchQuery(doc, filter) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !looseEqual(ValueAt(doc, key), want) {
			return false
		}
	}
	return true
}

// ValueAt resolves a dotted path like "author._id" within a document.
func ValueAt(doc map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// SetValueAt writes a dotted path, creating intermediate maps as needed.
func SetValueAt(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// RunPipeline executes an aggregation stage pipeline over in-memory rows.
// Supported stages: $match, $sort, $limit, $project, $count. An unknown
// stage fails with the driver's unrecognized-stage code.
func RunPipeline(rows []map[string]any, stages []map[string]any) ([]map[string]any, error) {
	for _, stage := range stages {
		name, spec, err := singleStage(stage)
		if err != nil {
			return nil, err
		}

		switch name {
		case "$match":
			filter, _ := spec.(map[string]any)
			matched := rows[:0:0]
			for _, row := range rows {
				if MatchQuery(row, filter) {
					matched = append(matched, row)
				}
			}
			rows = matched

		case "$sort":
			keys, _ := spec.(map[string]any)
			sortRows(rows, keys)

		case "$limit":
			n := asInt(spec)
			if n >= 0 && n < len(rows) {
				rows = rows[:n]
			}

		case "$project":
			fields, _ := spec.(map[string]any)
			projected := make([]map[string]any, len(rows))
			for i, row := range rows {
				out := make(map[string]any, len(fields))
				for field, include := range fields {
					if asInt(include) != 0 {
						if v := ValueAt(row, field); v != nil {
							out[field] = v
						}
					}
				}
				projected[i] = out
			}
			rows = projected

		case "$count":
			field, _ := spec.(string)
			if field == "" {
				field = "count"
			}
			rows = []map[string]any{{field: len(rows)}}

		default:
			return nil, &DriverError{
				Code:    CodeUnrecognizedStage,
				Message: fmt.Sprintf("Unrecognized pipeline stage name: '%s'", name),
			}
		}
	}
	return rows, nil
}

// CloneDoc deep-copies a document.
func CloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return CloneDoc(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// SetModifier extracts the $set document from an update, rejecting any
// other modifier as a driver failure.
func SetModifier(update map[string]any) (map[string]any, error) {
	set, ok := update["$set"].(map[string]any)
	if !ok {
		names := make([]string, 0, len(update))
		for name := range update {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &DriverError{
			Driver:  true,
			Message: fmt.Sprintf("update document requires a $set modifier, got %v", names),
		}
	}
	for name := range update {
		if name != "$set" {
			return nil, &DriverError{
				Driver:  true,
				Message: fmt.Sprintf("unknown modifier: %s", name),
			}
		}
	}
	return set, nil
}

// Paginate slices matched rows into a page envelope.
func Paginate(rows []map[string]any, params ListParams) *ListResult {
	total := len(rows)

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &ListResult{
		Rows:       rows[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}

func singleStage(stage map[string]any) (string, any, error) {
	if len(stage) != 1 {
		return "", nil, &DriverError{
			Code:    CodeUnrecognizedStage,
			Message: fmt.Sprintf("A pipeline stage specification object must contain exactly one field, got %d", len(stage)),
		}
	}
	for name, spec := range stage {
		return name, spec, nil
	}
	return "", nil, nil
}

// looseEqual compares values the way a JSON document store does: numbers
// compare by value regardless of Go type, everything else by string form.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asInt(v any) int {
	if f, ok := asFloat(v); ok {
		return int(f)
	}
	return -1
}

func sortRows(rows []map[string]any, keys map[string]any) {
	fields := make([]string, 0, len(keys))
	for field := range keys {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	sort.SliceStable(rows, func(i, j int) bool {
		for _, field := range fields {
			direction := asInt(keys[field])
			cmp := compareValues(ValueAt(rows[i], field), ValueAt(rows[j], field))
			if cmp == 0 {
				continue
			}
			if direction < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
