// Package ingest reads the items of an upload run from a local file.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkload/internal/logging"
)

// maxLineBytes bounds a single NDJSON record.
const maxLineBytes = 16 * 1024 * 1024

// ErrUnsupportedFormat is returned for file extensions LoadItems cannot read.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// ErrNotAList is returned when a JSON or YAML document is not a top-level list.
var ErrNotAList = errors.New("input must be a list of items")

// LoadItems reads path and returns one raw JSON value per item.
func LoadItems(path string) ([]json.RawMessage, error) {
	return LoadItemsWithContext(context.Background(), path)
}

// LoadItemsWithContext is LoadItems with a context that carries the logger.
//
// The format is chosen by extension: .json holds a JSON array, .ndjson and
// .jsonl hold one JSON value per line, .yaml and .yml hold a YAML sequence.
func LoadItemsWithContext(ctx context.Context, path string) ([]json.RawMessage, error) {
	log := logging.FromContext(ctx).With().
		Str("component", "ingest").
		Str("path", path).
		Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}

	var items []json.RawMessage
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		items, err = parseJSONArray(data)
	case ".ndjson", ".jsonl":
		items, err = parseNDJSON(data)
	case ".yaml", ".yml":
		items, err = parseYAMLList(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to parse input")
		return nil, fmt.Errorf("parsing input %s: %w", path, err)
	}

	log.Debug().Int("items", len(items)).Str("format", ext).Msg("input loaded")
	return items, nil
}

func parseJSONArray(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotAList
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseNDJSON(data []byte) ([]json.RawMessage, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var items []json.RawMessage
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("line %d: invalid JSON", line)
		}
		items = append(items, json.RawMessage(bytes.Clone(text)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func parseYAMLList(data []byte) ([]json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []json.RawMessage{}, nil
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, ErrNotAList
	}

	items := make([]json.RawMessage, len(list))
	for i, v := range list {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = raw
	}
	return items, nil
}
