// Package v1 is the wire contract of the render job payload that the API
// enqueues and the worker consumes.
//
//   - downloadType.download_type: requested format, only "pdf" today
//   - informationDownloadProduct: requester contact
//   - productDataForPdf: datasheet snapshot taken at request time
package v1

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("renderjob.v1.json", bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("renderjob.v1.json")
	})
	return compiled, compileErr
}

// Validate checks a raw payload against the contract.
func Validate(data []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("payload does not match renderjob v1: %w", err)
	}
	return nil
}
