package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

// PayloadValidator checks that a submitted JSON document has the shape of an
// entity record: an object of string properties named by the entity's schema.
type PayloadValidator struct {
	cache sync.Map // key: domain.Kind → *santhosh.Schema
}

func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{}
}

// Decode validates data against kind's payload schema and returns its fields.
// Returns *domain.PayloadViolation on failure.
func (v *PayloadValidator) Decode(kind domain.Kind, data json.RawMessage) (domain.Fields, error) {
	compiled, err := v.schema(kind)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &domain.PayloadViolation{Kind: kind, Errors: []string{"body must be valid json"}}
	}
	if err := compiled.Validate(doc); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return nil, &domain.PayloadViolation{Kind: kind, Errors: collectValidationErrors(ve)}
		}
		return nil, &domain.PayloadViolation{Kind: kind, Errors: []string{err.Error()}}
	}

	var fields domain.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s fields: %w", kind, err)
	}
	return fields, nil
}

func (v *PayloadValidator) schema(kind domain.Kind) (*santhosh.Schema, error) {
	if cached, ok := v.cache.Load(kind); ok {
		return cached.(*santhosh.Schema), nil
	}

	schema := domain.SchemaFor(kind)
	if schema.Kind == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	compiled, err := compileSchema(PayloadSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("compile %s payload schema: %w", kind, err)
	}
	v.cache.Store(kind, compiled)
	return compiled, nil
}

// PayloadSchema renders the JSON Schema document for records of schema's kind.
func PayloadSchema(schema domain.Schema) json.RawMessage {
	props := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		props[f.Name] = map[string]any{"type": "string", "description": f.Label}
	}
	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                string(schema.Kind),
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	out, _ := json.Marshal(doc)
	return out
}

// compileSchema builds a *santhosh.Schema from raw JSON.
func compileSchema(schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
