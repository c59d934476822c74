package tool

import (
	"sort"

	"github.com/cloudwego/eino/schema"
)

// InputSchema renders the tool parameters as a JSON Schema object
// for transports that do not speak eino (MCP, the /tools listing).
func (t *Tool) InputSchema() map[string]any {
	properties, required := t.SchemaProperties()
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// SchemaProperties returns the property map and the sorted required list.
func (t *Tool) SchemaProperties() (map[string]any, []string) {
	return objectProperties(t.Params)
}

func objectProperties(params map[string]*schema.ParameterInfo) (map[string]any, []string) {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for name, p := range params {
		if p == nil {
			continue
		}
		properties[name] = parameterSchema(p)
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return properties, required
}

func parameterSchema(p *schema.ParameterInfo) map[string]any {
	out := map[string]any{
		"type": string(p.Type),
	}
	if p.Desc != "" {
		out["description"] = p.Desc
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}

	switch p.Type {
	case schema.Array:
		if p.ElemInfo != nil {
			out["items"] = parameterSchema(p.ElemInfo)
		}
	case schema.Object:
		properties, required := objectProperties(p.SubParams)
		out["properties"] = properties
		if len(required) > 0 {
			out["required"] = required
		}
	}
	return out
}
