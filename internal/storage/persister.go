package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

// Persister saves and loads measurement documents in a FlatStore
type Persister struct {
	store  FlatStore
	schema models.Schema
}

// NewPersister creates a persister writing documents laid out by schema
func NewPersister(store FlatStore, schema models.Schema) *Persister {
	return &Persister{store: store, schema: schema}
}

// Save serializes doc and overwrites the slot
func (p *Persister) Save(slot string, doc *models.Document) error {
	data, err := models.EncodeDocument(doc, p.schema)
	if err != nil {
		return &IOError{Op: "encode", Slot: slot, Err: err}
	}

	if err := p.store.Write(slot, data); err != nil {
		return &IOError{Op: "write", Slot: slot, Err: err}
	}

	log.Infof("Storage: saved %s (%d bytes, %d series)", slot, len(data), len(doc.Series))
	return nil
}

// Load reads the slot back into a document
func (p *Persister) Load(slot string) (*models.Document, error) {
	data, err := p.store.Read(slot)
	if err != nil {
		return nil, &IOError{Op: "read", Slot: slot, Err: err}
	}

	doc, err := models.DecodeDocument(data, p.schema)
	if err != nil {
		return nil, &ParseError{Slot: slot, Err: err}
	}
	return doc, nil
}

// Pretty returns the slot content indented for display
func (p *Persister) Pretty(slot string) (string, error) {
	data, err := p.store.Read(slot)
	if err != nil {
		return "", &IOError{Op: "read", Slot: slot, Err: err}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return "", &ParseError{Slot: slot, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return out.String(), nil
}
