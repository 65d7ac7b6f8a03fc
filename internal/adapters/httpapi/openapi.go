package httpapi

import (
	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/usecase"
)

func openapiSpec() map[string]any {
	kinds := make([]string, 0, len(domain.Kinds()))
	schemas := make(map[string]any, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		kinds = append(kinds, string(kind))
		schemas[string(kind)] = usecase.PayloadSchema(domain.SchemaFor(kind))
	}
	kindParam := map[string]any{
		"name":     "kind",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string", "enum": kinds},
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "caprepair",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/records/{kind}": map[string]any{
				"parameters": []any{kindParam},
				"get":        map[string]any{"summary": "List records ordered by identity"},
				"post":       map[string]any{"summary": "Validate and insert a record"},
				"put":        map[string]any{"summary": "Validate and update a record addressed by its identity fields"},
				"delete":     map[string]any{"summary": "Delete a record; requires confirm=true"},
			},
			"/v1/records/{kind}/lookup": map[string]any{
				"parameters": []any{kindParam},
				"get":        map[string]any{"summary": "Get a record by its identity fields"},
			},
			"/v1/records/{kind}/validate": map[string]any{
				"parameters": []any{kindParam},
				"post":       map[string]any{"summary": "Run admission checks without writing"},
			},
			"/v1/capacity/check": map[string]any{
				"post": map[string]any{"summary": "Check a flat against its apartment's capacity"},
			},
			"/v1/changes": map[string]any{
				"get": map[string]any{"summary": "List change events, newest first"},
			},
		},
		"components": map[string]any{"schemas": schemas},
	}
}
