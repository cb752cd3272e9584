// Package history keeps the last priced observation of every product page.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricewatch/internal/product"
	"sjsage522/pricewatch/logger"

	werrors "sjsage522/pricewatch/pkg/errors"
)

const component = "history"

// Entry is the persisted state of one product page
type Entry struct {
	Price    decimal.Decimal
	Name     string
	Query    string
	LastSeen time.Time
}

// record is the on-disk form of an Entry
type record struct {
	Price    json.Number `json:"price"`
	Name     string      `json:"name"`
	Query    string      `json:"query"`
	LastSeen int64       `json:"last_seen"`
}

// Store maps a product page URL to its most recent priced observation
type Store struct {
	entries map[string]Entry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Get returns the entry for location, or nil
func (s *Store) Get(location string) *Entry {
	e, ok := s.entries[location]
	if !ok {
		return nil
	}
	return &e
}

// Put records obs and reports whether it was stored.
// Observations without a price are ignored.
func (s *Store) Put(obs product.Observation) bool {
	if !obs.HasPrice() {
		return false
	}
	s.entries[obs.Location] = Entry{
		Price:    obs.Price.Decimal,
		Name:     obs.Name,
		Query:    obs.Query,
		LastSeen: obs.ObservedAt,
	}
	return true
}

// Len returns the number of entries
func (s *Store) Len() int {
	return len(s.entries)
}

// Locations returns the stored URLs in sorted order
func (s *Store) Locations() []string {
	locations := make([]string, 0, len(s.entries))
	for location := range s.entries {
		locations = append(locations, location)
	}
	sort.Strings(locations)
	return locations
}

// Load reads the store from path. A missing file yields an empty store;
// entries that do not validate are dropped with a warning.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, werrors.NewStorage(component, "failed to read "+path, err)
	}
	return Decode(data)
}

// Decode parses a JSON history document
func Decode(data []byte) (*Store, error) {
	store := NewStore()
	if len(bytes.TrimSpace(data)) == 0 {
		return store, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, werrors.NewStorage(component, "history is not a JSON object", err)
	}

	log := logger.ForComponent(component)
	for location, msg := range raw {
		entry, err := decodeEntry(location, msg)
		if err != nil {
			log.Warn().Err(err).Str("location", location).Msg("Dropping malformed history entry")
			continue
		}
		store.entries[location] = entry
	}
	return store, nil
}

func decodeEntry(location string, msg json.RawMessage) (Entry, error) {
	u, err := url.Parse(location)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return Entry{}, werrors.NewValidation(component, "key is not an absolute URL")
	}

	var rec record
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return Entry{}, werrors.New(werrors.ErrorTypeValidation, component, "entry does not decode", err)
	}

	price, err := decimal.NewFromString(rec.Price.String())
	if err != nil {
		return Entry{}, werrors.NewValidation(component, fmt.Sprintf("invalid price %q", rec.Price))
	}
	if price.IsNegative() {
		return Entry{}, werrors.NewValidation(component, "negative price")
	}
	if strings.TrimSpace(rec.Name) == "" {
		return Entry{}, werrors.NewValidation(component, "missing name")
	}

	return Entry{
		Price:    price,
		Name:     rec.Name,
		Query:    rec.Query,
		LastSeen: time.Unix(rec.LastSeen, 0),
	}, nil
}

// Encode renders the store as indented JSON keeping non-ASCII text as is
func (s *Store) Encode() ([]byte, error) {
	out := make(map[string]record, len(s.entries))
	for location, e := range s.entries {
		out[location] = record{
			Price:    json.Number(e.Price.String()),
			Name:     e.Name,
			Query:    e.Query,
			LastSeen: e.LastSeen.Unix(),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save overwrites path with the store contents
func (s *Store) Save(path string) error {
	data, err := s.Encode()
	if err != nil {
		return werrors.NewStorage(component, "failed to encode history", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return werrors.NewStorage(component, "failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return werrors.NewStorage(component, "failed to set permissions", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return werrors.NewStorage(component, "failed to write history", err)
	}
	if err := tmp.Close(); err != nil {
		return werrors.NewStorage(component, "failed to write history", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return werrors.NewStorage(component, "failed to replace "+path, err)
	}
	return nil
}
