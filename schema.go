package structstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles a JSON Schema (draft 2020-12) for the end-of-stream
// strict validation pass.
func CompileSchema(schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("schema.json", strings.NewReader(string(schemaJSON))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// validateFinalDocument strictly decodes rawJSON and, when a schema is
// configured, validates the decoded document against it. It returns the
// decoded document on success, or a *ValidationError describing what failed.
func validateFinalDocument(schema *jsonschema.Schema, rawJSON string) (any, *ValidationError) {
	normalized := normalizePayload(rawJSON)
	var doc any
	if err := json.Unmarshal([]byte(normalized), &doc); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if schema == nil {
		return doc, nil
	}
	err := schema.Validate(doc)
	if err == nil {
		return doc, nil
	}
	var issues []ValidationIssue
	if validationErr, ok := err.(*jsonschema.ValidationError); ok {
		issues = extractValidationIssues(validationErr)
	} else {
		issues = []ValidationIssue{{Message: err.Error()}}
	}
	return nil, &ValidationError{Message: "schema validation failed", Issues: issues}
}

// extractValidationIssues recursively flattens jsonschema errors, converting
// instance locations ("#/items/0/name") to dot notation ("items.0.name").
func extractValidationIssues(err *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue

	if err.Message != "" {
		path := err.InstanceLocation
		var pathPtr *string
		if path != "" && path != "#" {
			cleanPath := strings.TrimPrefix(path, "#")
			cleanPath = strings.TrimPrefix(cleanPath, "/")
			cleanPath = strings.ReplaceAll(cleanPath, "/", ".")
			if cleanPath != "" {
				pathPtr = &cleanPath
			}
		}
		issues = append(issues, ValidationIssue{Path: pathPtr, Message: err.Message})
	}
	for _, cause := range err.Causes {
		issues = append(issues, extractValidationIssues(cause)...)
	}
	return issues
}
