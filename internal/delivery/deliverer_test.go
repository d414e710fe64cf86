package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imu-recorder/internal/storage"
)

const document = `{"metadata":{"evaluatedId":"1234","typeOfTest":"walk","date":"2024-05-01","time":"08:00:00"},"data":{}}`

func newStore(t *testing.T) *storage.AferoStore {
	t.Helper()
	store, err := storage.NewAferoStore(afero.NewMemMapFs(), "/flash")
	require.NoError(t, err)
	require.NoError(t, store.Write("measurement.json", []byte(document)))
	return store
}

func TestDeliver_PostsSlotVerbatim(t *testing.T) {
	var gotBody []byte
	var gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"stored"}`))
	}))
	defer srv.Close()

	store := newStore(t)
	d := NewDeliverer(store, srv.URL, time.Second)

	status, err := d.Deliver(context.Background(), "measurement.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, document, string(gotBody))

	// the slot is left untouched
	data, err := store.Read("measurement.json")
	require.NoError(t, err)
	assert.Equal(t, document, string(data))
}

func TestDeliver_NonSuccessStatusIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad document", http.StatusBadRequest)
	}))
	defer srv.Close()

	status, err := NewDeliverer(newStore(t), srv.URL, time.Second).Deliver(context.Background(), "measurement.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeliver_NoResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewDeliverer(newStore(t), url, time.Second).Deliver(context.Background(), "measurement.json")
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, url, transportErr.URL)
}

func TestDeliver_MissingSlot(t *testing.T) {
	_, err := NewDeliverer(newStore(t), "http://127.0.0.1:1", time.Second).Deliver(context.Background(), "other.json")
	var ioErr *storage.IOError
	require.True(t, errors.As(err, &ioErr))
}
