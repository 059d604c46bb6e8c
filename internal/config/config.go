// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads a pipeline run's YAML configuration (spec §6):
// the `run`/`reader`/`algs` top-level sections, a custom `!include`
// tag resolved relative to the including file's directory, and
// validation against an embedded JSON Schema — the same shape as the
// teacher's own pkg/schema.Validate, retargeted from JSON onto YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
)

// Run mirrors spec §6's `run` options.
type Run struct {
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`
	NEvents     int64  `yaml:"nEvents"`
	RunNumber   int    `yaml:"runNumber"`
	PoolIndex   int    `yaml:"poolIndex"`
	MC          bool   `yaml:"MC"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Alg is one entry of the `algs` sequence: a declared type, an
// instance name (defaults to Type when omitted), and its own cfg node
// handed to registry.AlgRegistry.Create verbatim.
type Alg struct {
	Type string     `yaml:"type"`
	Name string     `yaml:"name"`
	Cfg  *yaml.Node `yaml:"cfg"`
}

// Config is the fully assembled, include-resolved, schema-validated
// pipeline configuration. Reader stays a raw node since its shape
// (treename, filename, inputlist, ...) depends on its own `type` field
// — internal/algs/ioreader.Config decodes it fully.
type Config struct {
	Run         Run         `yaml:"run"`
	Reader      *yaml.Node  `yaml:"reader"`
	Algs        []Alg       `yaml:"algs"`
	Calibration Calibration `yaml:"calibration"`
}

// Load reads, include-resolves, validates, and decodes the YAML
// configuration at path.
func Load(path string) (*Config, error) {
	root, err := loadIncluded(path)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: %w: decode %q: %v", errkind.ErrConfigError, path, err)
	}
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("config: %w: %q fails schema: %v", errkind.ErrConfigError, path, err)
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w: decode %q: %v", errkind.ErrConfigError, path, err)
	}
	if cfg.Run.LogLevel == "" {
		cfg.Run.LogLevel = "info"
	}
	if cfg.Run.NEvents == 0 {
		cfg.Run.NEvents = -1
	}
	return &cfg, nil
}

// loadIncluded parses path and resolves every !include tag in its tree,
// relative to path's own directory, recursively.
func loadIncluded(path string) (*yaml.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w: read %q: %v", errkind.ErrMissingInput, path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: %w: parse %q: %v", errkind.ErrConfigError, path, err)
	}
	if len(doc.Content) == 0 {
		return &doc, nil
	}

	dir := filepath.Dir(path)
	if err := resolveIncludes(doc.Content[0], dir); err != nil {
		return nil, err
	}
	return doc.Content[0], nil
}

// resolveIncludes walks node's tree in place, replacing every scalar
// tagged !include <path> with the parsed (and itself include-resolved)
// contents of that path.
func resolveIncludes(node *yaml.Node, dir string) error {
	if node.Tag == "!include" {
		if node.Kind != yaml.ScalarNode {
			return fmt.Errorf("config: %w: !include requires a scalar path", errkind.ErrConfigError)
		}
		included := node.Value
		if !filepath.IsAbs(included) {
			included = filepath.Join(dir, included)
		}
		resolved, err := loadIncluded(included)
		if err != nil {
			return err
		}
		*node = *resolved
		return resolveIncludes(node, filepath.Dir(included))
	}

	for _, child := range node.Content {
		if err := resolveIncludes(child, dir); err != nil {
			return err
		}
	}
	return nil
}
