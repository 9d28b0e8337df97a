package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SchemaVersion is the version written into every collection document.
const SchemaVersion = 1

// LoadOutcome describes how a collection load went.
type LoadOutcome string

const (
	// OutcomeLoaded means a document was read and decoded.
	OutcomeLoaded LoadOutcome = "loaded"

	// OutcomeMissing means nothing was stored yet.
	OutcomeMissing LoadOutcome = "missing"

	// OutcomeCorrupt means the document was undecodable or of an unsupported
	// schema version. The collection is treated as empty.
	OutcomeCorrupt LoadOutcome = "corrupt"

	// OutcomeUnavailable means the backend failed to return the document.
	// Reads see an empty collection; updates are refused.
	OutcomeUnavailable LoadOutcome = "unavailable"
)

// LoadObserver is notified of every load outcome.
type LoadObserver func(collection string, outcome LoadOutcome)

// document is the versioned on-disk envelope of a collection.
type document[T any] struct {
	SchemaVersion int           `json:"schema_version"`
	Records       map[string]*T `json:"records"`
}

// Collection is a typed view of one collection in a backend.
type Collection[T any] struct {
	backend  Backend
	name     string
	observer LoadObserver
	logger   zerolog.Logger
}

// NewCollection creates a typed collection over backend.
// observer may be nil.
func NewCollection[T any](backend Backend, name string, observer LoadObserver, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		backend:  backend,
		name:     name,
		observer: observer,
		logger: logger.With().
			Str("component", "recordstore").
			Str("collection", name).
			Str("backend", backend.Name()).
			Logger(),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Load reads the whole collection.
//
// It never fails: a missing document yields an empty mapping, and so do a
// corrupt one and a failed backend read. Those cases are logged and reported
// through the outcome so callers can tell "no records" from "records lost".
func (c *Collection[T]) Load(ctx context.Context) (map[string]*T, LoadOutcome) {
	records, outcome, err := c.load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("outcome", string(outcome)).Msg("collection unreadable, treating as empty")
	}
	if c.observer != nil {
		c.observer(c.name, outcome)
	}
	return records, outcome
}

// LoadForUpdate reads the collection ahead of a Save. Unlike Load it fails
// with ErrUnavailable when the backend read failed, so the caller does not
// replace records it never saw. A corrupt document still loads as empty.
func (c *Collection[T]) LoadForUpdate(ctx context.Context) (map[string]*T, error) {
	records, outcome, err := c.load(ctx)
	if c.observer != nil {
		c.observer(c.name, outcome)
	}
	switch {
	case outcome == OutcomeUnavailable:
		c.logger.Error().Err(err).Msg("collection unavailable, refusing update")
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
	case err != nil:
		c.logger.Warn().Err(err).Str("outcome", string(outcome)).Msg("collection unreadable, treating as empty")
	}
	return records, nil
}

func (c *Collection[T]) load(ctx context.Context) (map[string]*T, LoadOutcome, error) {
	raw, err := c.backend.Read(ctx, c.name)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return map[string]*T{}, OutcomeMissing, nil
		}
		return map[string]*T{}, OutcomeUnavailable, err
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]*T{}, OutcomeMissing, nil
	}

	records, err := decode[T](raw)
	if err != nil {
		return map[string]*T{}, OutcomeCorrupt, err
	}
	return records, OutcomeLoaded, nil
}

// Save replaces the whole collection.
func (c *Collection[T]) Save(ctx context.Context, records map[string]*T) error {
	raw, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.backend.Write(ctx, c.name, raw); err != nil {
		return fmt.Errorf("write %s: %w", c.name, err)
	}
	return nil
}

// Encode serializes records into a versioned collection document.
func Encode[T any](records map[string]*T) ([]byte, error) {
	if records == nil {
		records = map[string]*T{}
	}
	return json.MarshalIndent(document[T]{
		SchemaVersion: SchemaVersion,
		Records:       records,
	}, "", "  ")
}

// decode parses a versioned document. A document without a schema version is
// read as a bare identifier-to-record mapping, the layout of unversioned files.
// Those files carry zone-less timestamps, which are read as UTC.
func decode[T any](raw []byte) (map[string]*T, error) {
	var probe struct {
		SchemaVersion *int            `json:"schema_version"`
		Records       json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	if probe.SchemaVersion == nil {
		records, err := decodeUnversioned[T](raw)
		if err != nil {
			return nil, fmt.Errorf("decode unversioned document: %w", err)
		}
		return records, nil
	}

	if *probe.SchemaVersion > SchemaVersion || *probe.SchemaVersion < 1 {
		return nil, fmt.Errorf("unsupported schema version %d", *probe.SchemaVersion)
	}

	records := map[string]*T{}
	if len(probe.Records) > 0 && !bytes.Equal(bytes.TrimSpace(probe.Records), []byte("null")) {
		if err := json.Unmarshal(probe.Records, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	}
	return dropNil(records), nil
}

// decodeUnversioned decodes a bare mapping, rewriting zone-less timestamp
// fields of each record to RFC 3339 first.
func decodeUnversioned[T any](raw []byte) (map[string]*T, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	timeKeys := timeFields[T]()
	records := make(map[string]*T, len(entries))
	for id, entry := range entries {
		if bytes.Equal(bytes.TrimSpace(entry), []byte("null")) {
			continue
		}
		normalized, err := normalizeTimestamps(entry, timeKeys)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		var rec T
		if err := json.Unmarshal(normalized, &rec); err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		records[id] = &rec
	}
	return records, nil
}

// normalizeTimestamps rewrites the fields named by timeKeys that hold a
// zone-less ISO 8601 time into RFC 3339 UTC.
func normalizeTimestamps(entry json.RawMessage, timeKeys []string) (json.RawMessage, error) {
	if len(timeKeys) == 0 {
		return entry, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return nil, err
	}

	changed := false
	for _, key := range timeKeys {
		value, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(value, &s) != nil {
			continue
		}
		t, ok := parseNaive(s, time.UTC)
		if !ok {
			continue
		}
		rewritten, err := json.Marshal(t.Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		fields[key] = rewritten
		changed = true
	}
	if !changed {
		return entry, nil
	}
	return json.Marshal(fields)
}

// timeFields returns the JSON names of the time.Time and *time.Time fields
// of T.
func timeFields[T any]() []string {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil
	}

	timeType := reflect.TypeFor[time.Time]()
	var keys []string
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft != timeType || !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}
		keys = append(keys, name)
	}
	return keys
}

// dropNil removes JSON null entries.
func dropNil[T any](records map[string]*T) map[string]*T {
	for id, rec := range records {
		if rec == nil {
			delete(records, id)
		}
	}
	return records
}
