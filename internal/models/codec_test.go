package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(schema Schema) *Document {
	series := func(name string, n int) *SensorSeries {
		s := NewSensorSeries(name)
		for i := 0; i < n; i++ {
			rec := SampleRecord{Ax: int16(i), Ay: -int16(i), Az: 16384, Gx: 1, Gy: -2, Gz: 3}
			s.Set(schema.SampleKey(i), rec.WithTimestamp(int64(i*50)))
		}
		return s
	}
	return &Document{
		Metadata: Metadata{SubjectID: "1234", TestType: "walk", Date: "2024-05-01", Time: "10:11:12", Location: "lab"},
		// 12 samples so that lexical and insertion order differ (sample10 < sample2)
		Series: []*SensorSeries{series("sensor1", 12), series("sensor2", 12)},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	for _, schema := range []Schema{SchemaEnglish, SchemaSpanish} {
		t.Run(schema.Name, func(t *testing.T) {
			doc := testDocument(schema)

			data, err := EncodeDocument(doc, schema)
			require.NoError(t, err)

			got, err := DecodeDocument(data, schema)
			require.NoError(t, err)
			require.Equal(t, doc, got)
		})
	}
}

func TestEncodeDocumentLayout(t *testing.T) {
	doc := &Document{
		Metadata: Metadata{SubjectID: "1234", TestType: "walk", Date: "2024-05-01", Time: "10:11:12"},
		Series: []*SensorSeries{
			NewSensorSeries("sensor1", Sample{Key: "sample0", Record: SampleRecord{Ax: 1, Ay: 2, Az: 3, Gx: 4, Gy: 5, Gz: 6}}),
		},
	}

	data, err := EncodeDocument(doc, SchemaEnglish)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"metadata": {"evaluatedId": "1234", "typeOfTest": "walk", "date": "2024-05-01", "time": "10:11:12"},
		"data": {"sensor1": {"sample0": {"ax": 1, "ay": 2, "az": 3, "gx": 4, "gy": 5, "gz": 6}}}
	}`, string(data))
	assert.True(t, json.Valid(data))
}

func TestEncodeDocumentSpanish(t *testing.T) {
	doc := testDocument(SchemaSpanish)

	data, err := EncodeDocument(doc, SchemaSpanish)
	require.NoError(t, err)

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "metadatos")
	assert.Contains(t, raw, "datos")
	assert.Contains(t, raw["metadatos"], "idEvaluado")
	assert.Contains(t, raw["metadatos"], "ubicacion")
}

func TestDecodeDocumentErrors(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"metadata":`,
		"missing data":      `{"metadata":{"evaluatedId":"1"}}`,
		"missing metadata":  `{"data":{}}`,
		"array":             `[]`,
		"sample overflow":   `{"metadata":{},"data":{"s":{"sample0":{"ax":70000}}}}`,
		"sample not object": `{"metadata":{},"data":{"s":{"sample0":3}}}`,
		"trailing data":     `{"metadata":{},"data":{}} {}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(input), SchemaEnglish)
			require.Error(t, err)
		})
	}
}

func TestDecodeDocumentSkipsUnknownKeys(t *testing.T) {
	input := `{"version":2,"metadata":{"evaluatedId":"9","typeOfTest":"run"},"data":{"sensor1":{}}}`

	doc, err := DecodeDocument([]byte(input), SchemaEnglish)
	require.NoError(t, err)
	assert.Equal(t, "9", doc.Metadata.SubjectID)
	require.Len(t, doc.Series, 1)
	assert.Equal(t, 0, doc.Series[0].Len())
}

func TestDecodeAnyDocument(t *testing.T) {
	doc := testDocument(SchemaSpanish)
	data, err := EncodeDocument(doc, SchemaSpanish)
	require.NoError(t, err)

	got, schema, err := DecodeAnyDocument(data)
	require.NoError(t, err)
	assert.Equal(t, SchemaSpanish.Name, schema.Name)
	assert.Equal(t, doc, got)

	_, _, err = DecodeAnyDocument([]byte(`{"foo":{}}`))
	require.Error(t, err)
}

func TestSchemaByName(t *testing.T) {
	s, err := SchemaByName("es")
	require.NoError(t, err)
	assert.Equal(t, "medicion_3", s.SampleKey(3))

	_, err = SchemaByName("fr")
	require.Error(t, err)
}

func TestEncodeDocumentKeepsInsertionOrder(t *testing.T) {
	doc := &Document{Series: []*SensorSeries{NewSensorSeries("zeta"), NewSensorSeries("alpha")}}
	for i := 0; i < 11; i++ {
		doc.Series[0].Set(SchemaEnglish.SampleKey(i), SampleRecord{Ax: int16(i)})
	}

	data, err := EncodeDocument(doc, SchemaEnglish)
	require.NoError(t, err)
	out := string(data)

	assert.Less(t, strings.Index(out, `"metadata"`), strings.Index(out, `"data"`))
	assert.Less(t, strings.Index(out, `"zeta"`), strings.Index(out, `"alpha"`))
	assert.Less(t, strings.Index(out, `"sample2"`), strings.Index(out, `"sample10"`))

	got, err := DecodeDocument(data, SchemaEnglish)
	require.NoError(t, err)
	require.Len(t, got.Series, 2)
	assert.Equal(t, "zeta", got.Series[0].Sensor)
	assert.Equal(t, "alpha", got.Series[1].Sensor)
	entries := got.Series[0].Entries()
	require.Len(t, entries, 11)
	assert.Equal(t, "sample10", entries[10].Key)
	assert.Equal(t, int16(10), entries[10].Record.Ax)
}

func TestSensorSeries(t *testing.T) {
	s := NewSensorSeries("sensor1",
		Sample{Key: "sample0", Record: SampleRecord{Ax: 1}},
		Sample{Key: "sample1", Record: SampleRecord{Ax: 2}},
	)

	// overwriting keeps the original position
	s.Set("sample0", SampleRecord{Ax: 9})
	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "sample0", entries[0].Key)
	assert.Equal(t, int16(9), entries[0].Record.Ax)

	clone := s.Clone()
	s.Set("sample2", SampleRecord{})
	assert.Equal(t, 2, clone.Len())
	assert.Equal(t, 3, s.Len())

	var empty SensorSeries
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Entries())
	_, ok := empty.Get("sample0")
	assert.False(t, ok)
}
