// Package validation checks snapshots posted to the data server.
package validation

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"rhystmorgan/mira/internal/models"
	"rhystmorgan/mira/internal/store"
)

// ValidateSnapshot checks that body is a JSON array of objects with unique,
// non-empty string ids. Records keep whatever fields the client sent, so
// odd value shapes only produce warnings. The decoded records are returned
// when the snapshot is valid.
func ValidateSnapshot(body []byte) ([]models.Fields, ValidationResult) {
	result := ValidationResult{
		IsValid:     true,
		ValidatedAt: time.Now(),
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		result.fail(ValidationError{
			Index:   -1,
			Code:    ErrorInvalidFormat,
			Message: fmt.Sprintf("Invalid JSON: %v", err),
		})
		return nil, result
	}

	items, ok := raw.([]any)
	if !ok {
		result.fail(ValidationError{
			Index:   -1,
			Code:    ErrorNotArray,
			Message: "Snapshot must be an array of contacts",
		})
		return nil, result
	}

	records := make([]models.Fields, 0, len(items))
	seen := make(map[string]int, len(items))

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			result.fail(ValidationError{
				Index:   i,
				Code:    ErrorInvalidRecord,
				Message: "Contact must be an object",
			})
			continue
		}

		id, _ := obj[models.IDKey].(string)
		switch {
		case id == "":
			result.fail(ValidationError{
				Index:   i,
				Field:   models.IDKey,
				Code:    ErrorIDRequired,
				Message: "Contact id is required",
			})
		default:
			if first, dup := seen[id]; dup {
				result.fail(ValidationError{
					Index:   i,
					Field:   models.IDKey,
					Code:    ErrorDuplicateID,
					Message: fmt.Sprintf("Duplicate id %s (first seen at %d)", id, first),
				})
			} else {
				seen[id] = i
			}
		}

		checkFields(&result, i, obj)
		records = append(records, models.Fields(obj))
	}

	if !result.IsValid {
		return nil, result
	}
	return records, result
}

func checkFields(result *ValidationResult, index int, obj map[string]any) {
	for key, value := range obj {
		if key == models.IDKey || value == nil {
			continue
		}

		switch {
		case models.IsSingle(key):
			s, ok := value.(string)
			if !ok {
				result.warn(ValidationError{
					Index:   index,
					Field:   key,
					Code:    ErrorInvalidValue,
					Message: fmt.Sprintf("Expected text, got %s", describe(value)),
				}, ValidationSeverityWarning)
				continue
			}
			if key == "last" && s != "" {
				if _, ok := store.ParseDate(s); !ok {
					result.warn(ValidationError{
						Index:   index,
						Field:   key,
						Code:    ErrorInvalidDate,
						Message: fmt.Sprintf("Unrecognised date %q sorts as undated", s),
					}, ValidationSeverityWarning)
				}
			}

		case models.IsMulti(key):
			if !isStringList(value) {
				result.warn(ValidationError{
					Index:   index,
					Field:   key,
					Code:    ErrorInvalidValue,
					Message: fmt.Sprintf("Expected a list of text, got %s", describe(value)),
				}, ValidationSeverityWarning)
			}

		default:
			result.warn(ValidationError{
				Index:   index,
				Field:   key,
				Code:    ErrorUnknownField,
				Message: "Unknown field kept as is",
			}, ValidationSeverityInfo)
		}
	}
}

func isStringList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "text"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
