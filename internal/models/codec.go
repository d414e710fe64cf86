package models

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// samplesByKey is the JSON object of one sensor: sample key -> record
type samplesByKey = orderedmap.OrderedMap[string, SampleRecord]

// EncodeDocument serializes doc as a JSON object laid out by schema. Sensor
// and sample order is written exactly as held in doc.
func EncodeDocument(doc *Document, schema Schema) ([]byte, error) {
	metadata := orderedmap.New[string, string]()
	metadata.Set(schema.SubjectKey, doc.Metadata.SubjectID)
	metadata.Set(schema.TestTypeKey, doc.Metadata.TestType)
	metadata.Set(schema.DateKey, doc.Metadata.Date)
	metadata.Set(schema.TimeKey, doc.Metadata.Time)
	if doc.Metadata.Location != "" {
		metadata.Set(schema.LocationKey, doc.Metadata.Location)
	}

	data := orderedmap.New[string, *samplesByKey](len(doc.Series))
	for _, series := range doc.Series {
		samples := series.Samples
		if samples == nil {
			samples = orderedmap.New[string, SampleRecord]()
		}
		data.Set(series.Sensor, samples)
	}

	root := orderedmap.New[string, any](2)
	root.Set(schema.MetadataKey, metadata)
	root.Set(schema.DataKey, data)

	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return out, nil
}

// DecodeDocument parses a document written with schema, keeping sensor and
// sample order. Unknown top-level keys are ignored.
func DecodeDocument(data []byte, schema Schema) (*Document, error) {
	root := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, root); err != nil {
		return nil, err
	}

	rawMetadata, ok := root.Get(schema.MetadataKey)
	if !ok {
		return nil, fmt.Errorf("missing %q object", schema.MetadataKey)
	}
	rawData, ok := root.Get(schema.DataKey)
	if !ok {
		return nil, fmt.Errorf("missing %q object", schema.DataKey)
	}

	doc := &Document{}
	if err := decodeMetadata(rawMetadata, schema, &doc.Metadata); err != nil {
		return nil, err
	}

	sensors := orderedmap.New[string, *samplesByKey]()
	if err := json.Unmarshal(rawData, sensors); err != nil {
		return nil, fmt.Errorf("%s: %w", schema.DataKey, err)
	}
	for pair := sensors.Oldest(); pair != nil; pair = pair.Next() {
		series := NewSensorSeries(pair.Key)
		if pair.Value != nil {
			series.Samples = pair.Value
		}
		doc.Series = append(doc.Series, series)
	}
	return doc, nil
}

// DecodeAnyDocument tries every known schema and returns the first that fits
func DecodeAnyDocument(data []byte) (*Document, Schema, error) {
	var firstErr error
	for _, schema := range []Schema{SchemaEnglish, SchemaSpanish} {
		doc, err := DecodeDocument(data, schema)
		if err == nil {
			return doc, schema, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, Schema{}, firstErr
}

func decodeMetadata(raw json.RawMessage, schema Schema, m *Metadata) error {
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	m.SubjectID = fields[schema.SubjectKey]
	m.TestType = fields[schema.TestTypeKey]
	m.Date = fields[schema.DateKey]
	m.Time = fields[schema.TimeKey]
	m.Location = fields[schema.LocationKey]
	return nil
}
