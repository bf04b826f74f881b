// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the JSON Schema files for API request bodies
// and seed files into schemas/.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/holomush/warden/internal/httpapi"
	"github.com/holomush/warden/internal/seed"
)

func main() {
	schemas, err := httpapi.GenerateSchemas()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating request schemas: %v\n", err)
		os.Exit(1)
	}
	seedSchema, err := seed.GenerateSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating seed schema: %v\n", err)
		os.Exit(1)
	}
	schemas["seed"] = seedSchema

	if err := os.MkdirAll("schemas", 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		outPath := filepath.Join("schemas", name+".schema.json")
		if err := os.WriteFile(outPath, append(schemas[name], '\n'), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
}
