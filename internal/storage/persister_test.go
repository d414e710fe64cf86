package storage

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imu-recorder/internal/models"
)

func newMemStore(t *testing.T) (*AferoStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewAferoStore(fs, "/flash")
	require.NoError(t, err)
	return store, fs
}

func sampleDocument(schema models.Schema, samples int) *models.Document {
	doc := &models.Document{
		Metadata: models.Metadata{SubjectID: "1234", TestType: "walk", Date: "2024-05-01", Time: "08:00:00"},
	}
	for _, name := range []string{"sensor1", "sensor2"} {
		series := models.NewSensorSeries(name)
		for i := 0; i < samples; i++ {
			series.Set(schema.SampleKey(i), models.SampleRecord{Ax: int16(i), Gz: -int16(i)}.WithTimestamp(int64(i)*200))
		}
		doc.Series = append(doc.Series, series)
	}
	return doc
}

func TestPersister_SaveLoadRoundTrip(t *testing.T) {
	store, _ := newMemStore(t)
	p := NewPersister(store, models.SchemaEnglish)
	doc := sampleDocument(models.SchemaEnglish, 15)

	require.NoError(t, p.Save("measurement.json", doc))

	got, err := p.Load("measurement.json")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestPersister_SaveOverwrites(t *testing.T) {
	store, fs := newMemStore(t)
	p := NewPersister(store, models.SchemaSpanish)

	require.NoError(t, p.Save("slot.json", sampleDocument(models.SchemaSpanish, 5)))
	second := sampleDocument(models.SchemaSpanish, 2)
	second.Metadata.SubjectID = "other"
	require.NoError(t, p.Save("slot.json", second))

	got, err := p.Load("slot.json")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	exists, err := afero.Exists(fs, "/flash/slot.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file must not survive a write")
}

func TestPersister_LoadMissingSlot(t *testing.T) {
	store, _ := newMemStore(t)
	p := NewPersister(store, models.SchemaEnglish)

	_, err := p.Load("missing.json")
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
}

func TestPersister_LoadCorruptSlot(t *testing.T) {
	store, _ := newMemStore(t)
	require.NoError(t, store.Write("bad.json", []byte(`{"metadata":{"evaluatedId":`)))
	p := NewPersister(store, models.SchemaEnglish)

	_, err := p.Load("bad.json")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "bad.json", parseErr.Slot)
}

func TestPersister_SaveOnReadOnlyStorage(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/flash", 0o755))
	store := &AferoStore{fs: afero.NewReadOnlyFs(base), root: "/flash"}
	p := NewPersister(store, models.SchemaEnglish)

	err := p.Save("measurement.json", sampleDocument(models.SchemaEnglish, 1))
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "write", ioErr.Op)
}

func TestPersister_Pretty(t *testing.T) {
	store, _ := newMemStore(t)
	p := NewPersister(store, models.SchemaEnglish)
	require.NoError(t, p.Save("m.json", sampleDocument(models.SchemaEnglish, 1)))

	out, err := p.Pretty("m.json")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"metadata\": {")

	require.NoError(t, store.Write("junk.json", []byte("not json")))
	_, err = p.Pretty("junk.json")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestAferoStore_FlatNamespace(t *testing.T) {
	store, fs := newMemStore(t)

	require.NoError(t, store.Write("/sensor1_data.json", []byte("{}")))
	exists, err := afero.Exists(fs, "/flash/sensor1_data.json")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Read("sensor1_data.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.Error(t, store.Write("..", []byte("x")))
}
