// Package completion validates a complete_task result against an optional
// JSON-Schema-subset description attached to an agent definition. Built on
// the standard library by design: the schema subset is small, bespoke, and
// needs exact control over error-message shape, so no third-party
// JSON-Schema validator in the example pack was a better fit than a direct
// hand-rolled walk (see DESIGN.md).
package completion

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Validate checks rawOutput (the string result a model passed to
// complete_task) against schema. If schema's declared type is anything
// other than "string", rawOutput is first parsed as JSON. Returns "" when
// valid, otherwise a message prefixed "Completion output does not satisfy
// schema: ".
func Validate(rawOutput string, schema map[string]any) string {
	if schema == nil {
		return ""
	}

	expectedType, _ := schema["type"]
	var value any = rawOutput

	if expectedType != nil && expectedType != "string" {
		if err := json.Unmarshal([]byte(rawOutput), &value); err != nil {
			return fmt.Sprintf("Completion output does not satisfy schema: output must be valid JSON for schema type '%v': %v", expectedType, err)
		}
	}

	if err := validateValue(value, schema, "$"); err != "" {
		return "Completion output does not satisfy schema: " + err
	}
	return ""
}

func validateValue(value any, schema map[string]any, path string) string {
	if constVal, ok := schema["const"]; ok {
		if !deepEqual(value, constVal) {
			return fmt.Sprintf("%s must equal %v", path, constVal)
		}
	}

	if enumValues, ok := schema["enum"].([]any); ok {
		matched := false
		for _, v := range enumValues {
			if deepEqual(value, v) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("%s must be one of %v", path, enumValues)
		}
	}

	if allOf, ok := schema["allOf"].([]any); ok {
		for _, item := range allOf {
			if itemSchema, ok := item.(map[string]any); ok {
				if err := validateValue(value, itemSchema, path); err != "" {
					return err
				}
			}
		}
	}

	if anyOf, ok := schema["anyOf"].([]any); ok {
		matched := false
		for _, item := range anyOf {
			itemSchema, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if validateValue(value, itemSchema, path) == "" {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("%s must match at least one schema in anyOf", path)
		}
	}

	if oneOf, ok := schema["oneOf"].([]any); ok {
		matchCount := 0
		for _, item := range oneOf {
			itemSchema, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if validateValue(value, itemSchema, path) == "" {
				matchCount++
			}
		}
		if matchCount != 1 {
			return fmt.Sprintf("%s must match exactly one schema in oneOf (matched %d)", path, matchCount)
		}
	}

	if notSchema, ok := schema["not"].(map[string]any); ok {
		if validateValue(value, notSchema, path) == "" {
			return fmt.Sprintf("%s must not match schema in not", path)
		}
	}

	schemaType, hasType := schema["type"]
	if !hasType || schemaType == nil {
		return ""
	}

	if typeList, ok := schemaType.([]any); ok {
		if len(typeList) == 0 {
			return fmt.Sprintf("%s has invalid empty type union", path)
		}
		var errs []string
		for _, t := range typeList {
			typeName, ok := t.(string)
			if !ok {
				continue
			}
			candidate := make(map[string]any, len(schema))
			for k, v := range schema {
				candidate[k] = v
			}
			candidate["type"] = typeName
			if err := validateValue(value, candidate, path); err == "" {
				return ""
			} else {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return strings.Join(errs, " or ")
		}
		return fmt.Sprintf("%s has unsupported type union %v", path, typeList)
	}

	typeName, ok := schemaType.(string)
	if !ok {
		return fmt.Sprintf("%s has invalid type declaration", path)
	}

	switch typeName {
	case "string":
		return validateString(value, schema, path)
	case "number":
		return validateNumber(value, schema, path, false)
	case "integer":
		return validateNumber(value, schema, path, true)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("%s must be a boolean", path)
		}
		return ""
	case "null":
		if value != nil {
			return fmt.Sprintf("%s must be null", path)
		}
		return ""
	case "array":
		return validateArray(value, schema, path)
	case "object":
		return validateObject(value, schema, path)
	default:
		return fmt.Sprintf("%s has unsupported schema type '%s'", path, typeName)
	}
}

func validateString(value any, schema map[string]any, path string) string {
	s, ok := value.(string)
	if !ok {
		return fmt.Sprintf("%s must be a string", path)
	}
	if minLen, ok := asInt(schema["minLength"]); ok && len(s) < minLen {
		return fmt.Sprintf("%s length must be >= %d", path, minLen)
	}
	if maxLen, ok := asInt(schema["maxLength"]); ok && len(s) > maxLen {
		return fmt.Sprintf("%s length must be <= %d", path, maxLen)
	}
	if pattern, ok := schema["pattern"].(string); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Sprintf("%s has invalid regex pattern %q", path, pattern)
		}
		if !re.MatchString(s) {
			return fmt.Sprintf("%s must match pattern %q", path, pattern)
		}
	}
	return ""
}

func validateNumber(value any, schema map[string]any, path string, integer bool) string {
	f, ok := asFloat(value)
	if !ok {
		if integer {
			return fmt.Sprintf("%s must be an integer", path)
		}
		return fmt.Sprintf("%s must be a number", path)
	}
	if integer && f != math.Trunc(f) {
		return fmt.Sprintf("%s must be an integer", path)
	}
	return validateNumericConstraints(f, schema, path)
}

func validateNumericConstraints(value float64, schema map[string]any, path string) string {
	if min, ok := asFloat(schema["minimum"]); ok && value < min {
		return fmt.Sprintf("%s must be >= %v", path, schema["minimum"])
	}
	if max, ok := asFloat(schema["maximum"]); ok && value > max {
		return fmt.Sprintf("%s must be <= %v", path, schema["maximum"])
	}
	if exclMin, ok := asFloat(schema["exclusiveMinimum"]); ok && value <= exclMin {
		return fmt.Sprintf("%s must be > %v (exclusiveMinimum)", path, schema["exclusiveMinimum"])
	}
	if exclMax, ok := asFloat(schema["exclusiveMaximum"]); ok && value >= exclMax {
		return fmt.Sprintf("%s must be < %v (exclusiveMaximum)", path, schema["exclusiveMaximum"])
	}
	if multipleOf, ok := asFloat(schema["multipleOf"]); ok && multipleOf > 0 {
		quotient := value / multipleOf
		if math.Abs(math.Round(quotient)-quotient) > 1e-9 {
			return fmt.Sprintf("%s must be a multiple of %v", path, schema["multipleOf"])
		}
	}
	return ""
}

func validateArray(value any, schema map[string]any, path string) string {
	arr, ok := value.([]any)
	if !ok {
		return fmt.Sprintf("%s must be an array", path)
	}
	if minItems, ok := asInt(schema["minItems"]); ok && len(arr) < minItems {
		return fmt.Sprintf("%s must have at least %d items", path, minItems)
	}
	if maxItems, ok := asInt(schema["maxItems"]); ok && len(arr) > maxItems {
		return fmt.Sprintf("%s must have at most %d items", path, maxItems)
	}
	if unique, ok := schema["uniqueItems"].(bool); ok && unique {
		seen := make(map[string]bool, len(arr))
		for _, item := range arr {
			b, _ := json.Marshal(item)
			key := string(b)
			if seen[key] {
				return fmt.Sprintf("%s must not contain duplicate items", path)
			}
			seen[key] = true
		}
	}
	if itemSchema, ok := schema["items"].(map[string]any); ok {
		for i, item := range arr {
			if err := validateValue(item, itemSchema, fmt.Sprintf("%s[%d]", path, i)); err != "" {
				return err
			}
		}
	}
	return ""
}

func validateObject(value any, schema map[string]any, path string) string {
	obj, ok := value.(map[string]any)
	if !ok {
		return fmt.Sprintf("%s must be an object", path)
	}
	if minProps, ok := asInt(schema["minProperties"]); ok && len(obj) < minProps {
		return fmt.Sprintf("%s must have at least %d properties", path, minProps)
	}
	if maxProps, ok := asInt(schema["maxProperties"]); ok && len(obj) > maxProps {
		return fmt.Sprintf("%s must have at most %d properties", path, maxProps)
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			key, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := obj[key]; !present {
				return fmt.Sprintf("%s.%s is required", path, key)
			}
		}
	}

	knownProperties := map[string]map[string]any{}
	if properties, ok := schema["properties"].(map[string]any); ok {
		for key, itemSchema := range properties {
			if s, ok := itemSchema.(map[string]any); ok {
				knownProperties[key] = s
			}
		}
	}

	additionalProperties, hasAdditional := schema["additionalProperties"]
	if !hasAdditional {
		additionalProperties = true
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		item := obj[key]
		if childSchema, ok := knownProperties[key]; ok {
			if err := validateValue(item, childSchema, path+"."+key); err != "" {
				return err
			}
			continue
		}
		switch allowed := additionalProperties.(type) {
		case bool:
			if !allowed {
				return fmt.Sprintf("%s.%s is not allowed", path, key)
			}
		case map[string]any:
			if err := validateValue(item, allowed, path+"."+key); err != "" {
				return err
			}
		}
	}
	return ""
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func deepEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
