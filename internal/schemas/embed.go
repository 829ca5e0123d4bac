// Package schemas holds the JSON response schemas for structured AI output.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed *.json
var fs embed.FS

// GetSchema returns the content of a schema file by name
func GetSchema(name string) ([]byte, error) {
	return fs.ReadFile(name)
}

// GetSchemaMap returns a schema decoded into its generic map form
func GetSchemaMap(name string) (map[string]interface{}, error) {
	data, err := GetSchema(name)
	if err != nil {
		return nil, fmt.Errorf("schema '%s' not found: %w", name, err)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema '%s': %w", name, err)
	}
	return schema, nil
}
