package apihttp

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"explorer/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed explore.schema.json
var exploreSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func exploreSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("explore.schema.json", bytes.NewReader(exploreSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("explore.schema.json")
	})
	return schema, schemaErr
}

// exploreRequest is an InputRecord plus optional pre-extracted page context.
type exploreRequest struct {
	types.InputRecord
	Context *types.ExtractedContext `json:"extractedInfo,omitempty"`
}

// decodeExplore validates raw against the request schema and decodes it.
func decodeExplore(raw []byte) (exploreRequest, error) {
	var req exploreRequest
	sch, err := exploreSchema()
	if err != nil {
		return req, fmt.Errorf("request schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return req, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return req, fmt.Errorf("invalid request: %s", schemaMessage(err))
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("malformed request: %w", err)
	}
	return req, nil
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			return leaf.Message
		}
		return loc + ": " + leaf.Message
	}
	return err.Error()
}
