package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/minios-linux/tmplsync/catalog"
)

//go:embed catalog.schema.json
var defaultSchema []byte

const schemaURL = "catalog.schema.json"

// CompileSchema compiles the catalog schema at path, or the built-in schema
// when path is empty.
func CompileSchema(path string) (*jsonschema.Schema, error) {
	data := defaultSchema
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", path, err)
		}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return schema, nil
}

// schemaFailure is one leaf of a schema validation error.
type schemaFailure struct {
	Location string
	Message  string
}

// schemaFailures validates raw catalog JSON and flattens the error tree
// into its leaves.
func schemaFailures(schema *jsonschema.Schema, data []byte) ([]schemaFailure, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}

	var out []schemaFailure
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			loc := strings.TrimSpace(node.InstanceLocation)
			if loc == "" {
				loc = "/"
			}
			out = append(out, schemaFailure{Location: loc, Message: node.Message})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return out, nil
}

// templateAt maps a JSON pointer like /2/templates/5/name back to the
// template name, or "" when the pointer does not reach a template.
func templateAt(c catalog.Catalog, pointer string) string {
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	if len(parts) < 3 || parts[1] != "templates" {
		return ""
	}
	ci, err := strconv.Atoi(parts[0])
	if err != nil || ci < 0 || ci >= len(c) {
		return ""
	}
	ti, err := strconv.Atoi(parts[2])
	if err != nil || ti < 0 || ti >= len(c[ci].Templates) {
		return ""
	}
	return c[ci].Templates[ti].Name()
}
