package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/factory"
)

func runCreateDataset(args []string) error {
	config := tabula.DefaultConfig()
	flags := newFlagSet("create-dataset", "-name <name> -schema-file <path> [options]")
	dbFlags(flags, config)
	name := flags.String("name", "", "dataset name")
	description := flags.String("description", "", "dataset description")
	schemaFile := flags.String("schema-file", "", "JSON schema document (storage shape or {\"fields\": [...]})")
	if ok, err := parseFlags(flags, args); !ok {
		return err
	}

	input, err := loadDatasetInput(*name, *description, *schemaFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := factory.NewDatabasePool(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager, err := factory.NewDatasetManagerWithConfig(config, pool)
	if err != nil {
		return err
	}
	ds, err := manager.CreateDataset(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("Created dataset %q (id %s, %d fields).\n", ds.Name, ds.ID, len(ds.Schema.Properties))
	return nil
}

// loadDatasetInput reads a schema file. A document with a "fields" list is
// decoded as a field list, anything else is passed through as a storage shape.
func loadDatasetInput(name, description, path string) (*tabula.DatasetInput, error) {
	if path == "" {
		return nil, fmt.Errorf("-schema-file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var head struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}

	input := &tabula.DatasetInput{Name: name, Description: description}
	if len(head.Fields) > 0 {
		var schema tabula.Schema
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("parse field list %s: %w", path, err)
		}
		input.Schema = schema
	} else {
		input.Schema = json.RawMessage(raw)
	}
	return input, nil
}
