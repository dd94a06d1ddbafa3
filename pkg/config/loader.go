package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads engine.yaml plus prompts/ and tools/ from dir, merges it over
// the built-in defaults (user values win), validates the result, and
// returns a ready-to-use Config. This is the only place numeric safety and
// concurrency limits are ever set; they are immutable for the lifetime of
// the returned Config. There is no live reload of numeric limits.
func Load(ctx context.Context, dir string) (*Config, error) {
	log := slog.With("config_dir", dir)
	log.Info("loading engine configuration")

	doc := defaultDocument()
	userDoc, err := loadDocument(dir)
	if err != nil {
		return nil, fmt.Errorf("loading engine.yaml: %w", err)
	}
	if err := mergo.Merge(&doc, userDoc, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging engine.yaml over defaults: %w", err)
	}

	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	prompts, err := loadPrompts(dir)
	if err != nil {
		return nil, err
	}
	schemas, err := loadToolSchemas(dir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{configDir: dir, Doc: doc}
	cfg.setPrompts(prompts)
	cfg.setToolSchemas(schemas)

	log.Info("configuration loaded",
		"max_cycles", doc.Safety.MaxCyclesPerInvestigation,
		"processor_pool_size", doc.Concurrency.ProcessorPoolSize,
		"prompts", len(prompts),
		"tool_schemas", len(schemas))

	return cfg, nil
}

func loadDocument(dir string) (Document, error) {
	path := filepath.Join(dir, "engine.yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}
