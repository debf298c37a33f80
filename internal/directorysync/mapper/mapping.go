package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"dirsync/internal/directorysync/models"
	dErrors "dirsync/pkg/domain-errors"
)

// ParseFieldMapping reads the field-map JSON object, keeping the document's key order.
// Keys are directory attributes or #{attr} templates, values are local field paths.
// An empty document yields an empty mapping. A repeated key keeps its first position and
// takes the last value.
func ParseFieldMapping(raw string) (models.FieldMapping, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var mapping models.FieldMapping
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid field mapping")
		}
		key, _ := keyTok.(string)

		valueTok, err := dec.Token()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid field mapping")
		}
		target, ok := valueTok.(string)
		if !ok {
			return nil, dErrors.New(dErrors.CodeConfiguration,
				fmt.Sprintf("invalid field mapping: value of %q must be a string", key))
		}
		if strings.TrimSpace(key) == "" || strings.TrimSpace(target) == "" {
			return nil, dErrors.New(dErrors.CodeConfiguration, "invalid field mapping: empty key or target")
		}
		entry := models.FieldMappingEntry{
			DirectoryField: strings.TrimSpace(key),
			TargetField:    strings.TrimSpace(target),
		}
		if i, ok := seen[entry.DirectoryField]; ok {
			mapping[i] = entry
			continue
		}
		seen[entry.DirectoryField] = len(mapping)
		mapping = append(mapping, entry)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeConfiguration, "invalid field mapping: trailing data")
	}
	return mapping, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid field mapping")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return dErrors.New(dErrors.CodeConfiguration, "invalid field mapping: expected a JSON object")
	}
	return nil
}
