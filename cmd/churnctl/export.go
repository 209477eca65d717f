package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func exportJSON(filename string, data any) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create report folder: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// reportPath returns out unchanged when it names a .json file; otherwise out is
// treated as a directory and a timestamped name is generated inside it.
func reportPath(out, name string, at time.Time) string {
	if strings.EqualFold(filepath.Ext(out), ".json") {
		return out
	}
	return filepath.Join(out, fmt.Sprintf("%s_%s.json", name, at.Format("20060102_150405")))
}
