package middleware

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ExtractGroups reads group identifiers from token claims. Handles both flat
// string arrays (["S-1-5-32-544", "ops"]) and arrays of objects with a named
// field ([{"id": "S-1-5-32-544"}] with claimPath="id").
func ExtractGroups(claims map[string]any, claimField, claimPath string) ([]string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		// Absent claim means no groups, not an error.
		return []string{}, nil
	}

	if groups, ok := rawValue.([]any); ok {
		result := make([]string, 0, len(groups))
		for _, g := range groups {
			if str, ok := g.(string); ok {
				result = append(result, str)
			}
		}
		if len(result) > 0 || claimPath == "" {
			return result, nil
		}
	}

	if claimPath != "" {
		return extractNestedGroups(rawValue, claimPath)
	}

	return nil, fmt.Errorf("groups claim %q has invalid format (expected []string or []object with path)", claimField)
}

// extractNestedGroups decodes object-shaped group entries. Only single-level
// paths are supported.
func extractNestedGroups(rawValue any, path string) ([]string, error) {
	var objects []map[string]any
	if err := mapstructure.Decode(rawValue, &objects); err != nil {
		return nil, fmt.Errorf("decode nested groups: %w", err)
	}

	result := make([]string, 0, len(objects))
	for _, obj := range objects {
		if val, ok := obj[path].(string); ok {
			result = append(result, val)
		}
	}
	return result, nil
}

// extractClaimString reads an optional string claim, empty when absent or
// not a string.
func extractClaimString(claims map[string]any, field string) string {
	v, _ := claims[field].(string)
	return v
}
