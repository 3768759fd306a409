package world

import "github.com/invopop/jsonschema"

// BuildConfigSchema reflects the scenario config into a machine-readable
// JSON schema for validation and editor tooling.
func BuildConfigSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Config))
	schema.Title = "Kiln Scenario Config"
	schema.Description = "Validates scenario files consumed by the simulation server"
	return schema
}
