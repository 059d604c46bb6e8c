// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		jsonschema.Loaders["embedFS"] = loadSchemaFile
		compiled, compileErr = jsonschema.Compile("embedFS://schemas/pipeline.schema.json")
	})
	return compiled, compileErr
}

// Validate checks doc (a YAML document decoded into an interface{}
// tree) against the embedded pipeline schema. YAML is re-marshaled
// through encoding/json first since jsonschema validates over
// JSON-shaped data (map[string]interface{}/float64/...), exactly as
// pkg/schema.Validate does for the teacher's own JSON config, only
// here the source document started life as YAML instead of JSON.
func Validate(doc interface{}) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal document for validation: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("config: unmarshal document for validation: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return err
	}
	return nil
}
