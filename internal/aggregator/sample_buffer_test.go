package aggregator

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imu-recorder/internal/models"
)

func TestSampleBuffer_AppendKeepsOrder(t *testing.T) {
	b := NewSampleBuffer(models.SchemaEnglish, 100)
	b.Reset([]string{"sensor1", "sensor2"})

	for i := 0; i < 12; i++ {
		for _, sensor := range []string{"sensor1", "sensor2"} {
			require.NoError(t, b.Append(sensor, b.NextKey(sensor), models.SampleRecord{Ax: int16(i)}))
		}
	}

	doc := b.Snapshot()
	require.Len(t, doc.Series, 2)
	assert.Equal(t, "sensor1", doc.Series[0].Sensor)
	assert.Equal(t, "sensor2", doc.Series[1].Sensor)
	for _, series := range doc.Series {
		require.Equal(t, 12, series.Len())
		for i, sample := range series.Entries() {
			assert.Equal(t, models.SchemaEnglish.SampleKey(i), sample.Key)
			assert.Equal(t, int16(i), sample.Record.Ax)
		}
	}
}

func TestSampleBuffer_DuplicateKeyOverwrites(t *testing.T) {
	b := NewSampleBuffer(models.SchemaSpanish, 100)
	b.Reset([]string{"s"})

	require.NoError(t, b.Append("s", "medicion_0", models.SampleRecord{Ax: 1}))
	require.NoError(t, b.Append("s", "medicion_1", models.SampleRecord{Ax: 2}))
	require.NoError(t, b.Append("s", "medicion_0", models.SampleRecord{Ax: 3}))

	series := b.Snapshot().SeriesFor("s")
	require.NotNil(t, series)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, "medicion_0", series.Entries()[0].Key)
	assert.Equal(t, int16(3), series.Entries()[0].Record.Ax)
}

func TestSampleBuffer_Bounded(t *testing.T) {
	b := NewSampleBuffer(models.SchemaEnglish, 2)
	b.Reset([]string{"s"})

	require.NoError(t, b.Append("s", b.NextKey("s"), models.SampleRecord{}))
	require.NoError(t, b.Append("s", b.NextKey("s"), models.SampleRecord{}))

	err := b.Append("s", b.NextKey("s"), models.SampleRecord{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBufferFull))

	// overwriting an existing key is still allowed when full
	require.NoError(t, b.Append("s", "sample0", models.SampleRecord{Gz: 7}))
	assert.Equal(t, 2, b.Len("s"))
}

func TestSampleBuffer_ResetClearsCountersAndMetadata(t *testing.T) {
	b := NewSampleBuffer(models.SchemaEnglish, 10)
	b.Reset([]string{"s"})
	b.SetMetadata(models.Metadata{SubjectID: "a"})
	b.SetMetadata(models.Metadata{SubjectID: "b"})
	require.NoError(t, b.Append("s", b.NextKey("s"), models.SampleRecord{}))
	assert.Equal(t, "b", b.Snapshot().Metadata.SubjectID)

	b.Reset([]string{"s"})
	assert.Equal(t, 0, b.Len("s"))
	assert.Equal(t, "sample0", b.NextKey("s"))
	assert.Equal(t, models.Metadata{}, b.Snapshot().Metadata)
}

func TestSampleBuffer_SnapshotIsIndependent(t *testing.T) {
	b := NewSampleBuffer(models.SchemaEnglish, 10)
	b.Reset([]string{"s"})
	require.NoError(t, b.Append("s", b.NextKey("s"), models.SampleRecord{}))

	snap := b.Snapshot()
	require.NoError(t, b.Append("s", b.NextKey("s"), models.SampleRecord{}))

	assert.Equal(t, 1, snap.SeriesFor("s").Len())
	assert.Equal(t, 2, b.Len("s"))
}

func TestSampleBuffer_ConcurrentAppend(t *testing.T) {
	b := NewSampleBuffer(models.SchemaEnglish, 1000)
	b.Reset([]string{"s1", "s2"})

	var wg sync.WaitGroup
	for _, sensor := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(sensor string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = b.Append(sensor, b.NextKey(sensor), models.SampleRecord{})
				_ = b.Snapshot()
			}
		}(sensor)
	}
	wg.Wait()

	assert.Equal(t, 200, b.Len("s1"))
	assert.Equal(t, 200, b.Len("s2"))
}
