package models

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SampleRecord is one reading of one sensor at one tick
type SampleRecord struct {
	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
	Gx int16 `json:"gx"`
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	// Milliseconds since the window started, when the device tracks it
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// WithTimestamp returns a copy of r stamped with ms since window start
func (r SampleRecord) WithTimestamp(ms int64) SampleRecord {
	r.Timestamp = &ms
	return r
}

// Sample pairs a record with the key it was stored under
type Sample struct {
	Key    string
	Record SampleRecord
}

// SensorSeries holds the samples of one sensor in insertion order
type SensorSeries struct {
	Sensor  string
	Samples *orderedmap.OrderedMap[string, SampleRecord]
}

// NewSensorSeries creates a series holding samples in the given order
func NewSensorSeries(sensor string, samples ...Sample) *SensorSeries {
	s := &SensorSeries{Sensor: sensor, Samples: orderedmap.New[string, SampleRecord](len(samples))}
	for _, sample := range samples {
		s.Samples.Set(sample.Key, sample.Record)
	}
	return s
}

// Set stores record under key. An existing key is overwritten in place
// and keeps its position.
func (s *SensorSeries) Set(key string, record SampleRecord) {
	if s.Samples == nil {
		s.Samples = orderedmap.New[string, SampleRecord]()
	}
	s.Samples.Set(key, record)
}

// Len returns the number of samples in the series
func (s *SensorSeries) Len() int {
	if s.Samples == nil {
		return 0
	}
	return s.Samples.Len()
}

// Get returns the record stored under key
func (s *SensorSeries) Get(key string) (SampleRecord, bool) {
	if s.Samples == nil {
		return SampleRecord{}, false
	}
	return s.Samples.Get(key)
}

// Entries returns the samples in insertion order
func (s *SensorSeries) Entries() []Sample {
	out := make([]Sample, 0, s.Len())
	if s.Samples == nil {
		return out
	}
	for pair := s.Samples.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Sample{Key: pair.Key, Record: pair.Value})
	}
	return out
}

// Clone returns a copy that later writes to s do not affect
func (s *SensorSeries) Clone() *SensorSeries {
	return NewSensorSeries(s.Sensor, s.Entries()...)
}

// Metadata describes the subject and the test of a window
type Metadata struct {
	SubjectID string
	TestType  string
	Date      string
	Time      string
	Location  string // optional
}

// Document is the measurement document of one window
type Document struct {
	Metadata Metadata
	Series   []*SensorSeries
}

// SeriesFor returns the series of the named sensor, or nil
func (d *Document) SeriesFor(sensor string) *SensorSeries {
	for _, s := range d.Series {
		if s.Sensor == sensor {
			return s
		}
	}
	return nil
}

// Schema names the JSON fields of a persisted document. The device firmware
// shipped in an English and a Spanish flavour; both are kept so either
// collector can read what the device writes.
type Schema struct {
	Name            string
	MetadataKey     string
	DataKey         string
	SubjectKey      string
	TestTypeKey     string
	DateKey         string
	TimeKey         string
	LocationKey     string
	SampleKeyPrefix string
}

var (
	SchemaEnglish = Schema{
		Name:            "en",
		MetadataKey:     "metadata",
		DataKey:         "data",
		SubjectKey:      "evaluatedId",
		TestTypeKey:     "typeOfTest",
		DateKey:         "date",
		TimeKey:         "time",
		LocationKey:     "location",
		SampleKeyPrefix: "sample",
	}

	SchemaSpanish = Schema{
		Name:            "es",
		MetadataKey:     "metadatos",
		DataKey:         "datos",
		SubjectKey:      "idEvaluado",
		TestTypeKey:     "tipoPrueba",
		DateKey:         "fecha",
		TimeKey:         "hora",
		LocationKey:     "ubicacion",
		SampleKeyPrefix: "medicion_",
	}
)

// SchemaByName returns the schema for "en" or "es"
func SchemaByName(name string) (Schema, error) {
	switch name {
	case SchemaEnglish.Name:
		return SchemaEnglish, nil
	case SchemaSpanish.Name:
		return SchemaSpanish, nil
	}
	return Schema{}, fmt.Errorf("unknown document schema %q", name)
}

// SampleKey formats the key of the n-th sample of a series
func (s Schema) SampleKey(n int) string {
	return fmt.Sprintf("%s%d", s.SampleKeyPrefix, n)
}
