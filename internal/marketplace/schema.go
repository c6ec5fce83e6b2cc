package marketplace

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var definitionSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("marketplace.json", bytes.NewReader(definitionSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to load marketplace schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("marketplace.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile marketplace schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a definition against the marketplace schema.
func Validate(def Definition) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode definition: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("marketplace %q does not match schema: %w", def.Name, err)
	}
	return nil
}
