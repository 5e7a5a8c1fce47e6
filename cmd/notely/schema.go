package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/notely/pkg/config"
)

// SchemaCmd generates JSON Schema from the notely config structs, for editor
// completion and validation of config files. Output goes to stdout.
type SchemaCmd struct {
	// Compact enables compact JSON output (no indentation)
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

// Run executes the schema generation command.
func (c *SchemaCmd) Run() error {
	return c.write(os.Stdout)
}

func (c *SchemaCmd) write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(configSchema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}

func configSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		// Unknown keys are rejected by the loader too
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://github.com/kadirpekel/notely/schemas/config.json"
	schema.Title = "notely Configuration Schema"
	schema.Description = "Configuration for the notely rate-limited notes assistant"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []any{
		map[string]any{
			"server": map[string]any{
				"port":         8080,
				"cors_origins": []string{"http://localhost:3000"},
			},
			"rate_limit": map[string]any{
				"requests_per_minute": 5,
				"requests_per_day":    20,
			},
			"llm": map[string]any{
				"provider": "gemini",
				"model":    "gemini-2.0-flash",
				"api_key":  "${GEMINI_API_KEY}",
			},
		},
	}
	return schema
}
