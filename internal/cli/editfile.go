package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"backoffice/internal/core"
)

// ReadEditFile loads a save request from a YAML or JSON file. A path of "-"
// reads YAML from stdin.
func ReadEditFile(path string, stdin io.Reader) (core.SaveRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return core.SaveRequest{}, fmt.Errorf("read edit file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	req, err := DecodeEditFile(data, format)
	if err != nil {
		return core.SaveRequest{}, fmt.Errorf("decode edit file %s: %w", path, err)
	}
	return req, nil
}

// DecodeEditFile decodes a save request. Unknown keys are rejected so a
// misspelt field never turns into a silent zero value.
func DecodeEditFile(data []byte, format string) (core.SaveRequest, error) {
	var req core.SaveRequest
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return core.SaveRequest{}, err
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return core.SaveRequest{}, err
		}
	default:
		return core.SaveRequest{}, fmt.Errorf("unsupported edit file format %q", format)
	}
	return req, nil
}

// RequireProduct fails when the batch holds activity edits but no product.
// Valuations are stored per fund and never need one.
func RequireProduct(req core.SaveRequest) error {
	if req.ProductID > 0 {
		return nil
	}
	if len(core.Classify(req.Edits).Activities) > 0 {
		return core.ErrMissingProductID
	}
	return nil
}

// WriteFailedEdits writes the rejected edits of a save as an edit file that
// can be applied again.
func WriteFailedEdits(path string, productID int64, edits []core.PendingEdit) error {
	data, err := yaml.Marshal(core.SaveRequest{ProductID: productID, Edits: edits})
	if err != nil {
		return fmt.Errorf("encode failed edits: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write failed edits: %w", err)
	}
	return nil
}
