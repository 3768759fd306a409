package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"kiln/server/internal/world"
)

func main() {
	out := flag.String("out", "config.schema.json", "output path for the generated schema")
	flag.Parse()

	schema := world.BuildConfigSchema()
	payload, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal schema: %v\n", err)
		os.Exit(1)
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(*out)
	tmp, err := os.CreateTemp(dir, ".schema-*.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create temp file: %v\n", err)
		os.Exit(1)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		fmt.Fprintf(os.Stderr, "write schema: %v\n", err)
		os.Exit(1)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		fmt.Fprintf(os.Stderr, "close temp file: %v\n", err)
		os.Exit(1)
	}
	if err := os.Rename(tmpName, *out); err != nil {
		os.Remove(tmpName)
		fmt.Fprintf(os.Stderr, "replace %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s (%d bytes)\n", *out, len(payload))
}
