package pricecheck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Document is a schemaless record in the local store. Every stored document
// carries the _id, _rev and entityName envelope fields; application code
// decodes it into a typed variant (Product, CompetitorShop, ...) before use.
type Document map[string]any

// ID returns the document's primary key.
func (d Document) ID() string { return d.String(FieldID) }

// Rev returns the document's current revision token.
func (d Document) Rev() string { return d.String(FieldRev) }

// EntityName returns the document's discriminator.
func (d Document) EntityName() EntityName { return EntityName(d.String(FieldEntityName)) }

// String returns a field rendered as a string. Numbers keep their JSON text.
func (d Document) String(field string) string {
	switch v := d[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Bool returns a boolean field, false when absent or of another type.
func (d Document) Bool(field string) bool {
	b, _ := d[field].(bool)
	return b
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("document: encode %s: %w", d.ID(), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("document: decode %s: %w", d.ID(), err)
	}
	return nil
}

// EncodeDocument converts a typed value into a Document.
func EncodeDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	return parseDocument(data)
}

// parseDocument decodes a JSON object keeping numbers as json.Number so that
// prices survive a store round trip without float rounding.
func parseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
