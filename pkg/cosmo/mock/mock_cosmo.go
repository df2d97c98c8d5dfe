package mock

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Ratio1/cosmo_sdk_go/internal/devseed"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
)

// Operation names passed to a Fault.
const (
	OpList    = "list"
	OpCreate  = "create"
	OpFetch   = "fetch"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// ErrConflict is returned by Create when the record id is already taken.
var ErrConflict = errors.New("mock cosmo: record already exists")

// Fault decides whether an operation fails. Returning a non-nil error aborts
// the operation before it touches the store.
type Fault func(op, dataset, id string) error

type dataset struct {
	order   []string
	records map[string][]byte
}

// Mock implements an in-memory Cosmo datastore. It satisfies cosmo.Backend
// and assigns ULID identifiers to created records.
type Mock struct {
	mu       sync.RWMutex
	datasets map[string]*dataset
	now      func() time.Time
	newID    func() string
	fault    Fault
	entropy  io.Reader
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for id generation (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(m *Mock) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithFault installs a fault injector.
func WithFault(f Fault) Option {
	return func(m *Mock) {
		m.fault = f
	}
}

// New creates an empty mock store.
func New(opts ...Option) *Mock {
	m := &Mock{
		datasets: make(map[string]*dataset),
		now: func() time.Time {
			return time.Now().UTC()
		},
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	m.newID = m.ulid
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewClient returns a cosmo.Client backed by a fresh mock.
func NewClient(opts ...Option) (*cosmo.Client, *Mock) {
	m := New(opts...)
	return cosmo.NewWithBackend(m), m
}

// SetFault replaces the fault injector; nil clears it.
func (m *Mock) SetFault(f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

// Seed loads records from seed entries (typically decoded via devseed.LoadDatasetSeed).
func (m *Mock) Seed(entries []devseed.DatasetSeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if err := validName("dataset", e.Dataset); err != nil {
			return fmt.Errorf("mock cosmo: seed: %w", err)
		}
		ds := m.dataset(e.Dataset)
		for i, rec := range e.Records {
			id, stored, err := m.stamp(rec, "")
			if err != nil {
				return fmt.Errorf("mock cosmo: seed %s[%d]: %w", e.Dataset, i, err)
			}
			ds.put(id, stored)
		}
	}
	return nil
}

// Datasets returns the names of all non-empty datasets, sorted.
func (m *Mock) Datasets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.datasets))
	for name, ds := range m.datasets {
		if len(ds.order) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len reports the number of records stored in a dataset.
func (m *Mock) Len(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ds := m.datasets[name]; ds != nil {
		return len(ds.order)
	}
	return 0
}

// List returns every record of the dataset as a JSON array, in insertion order.
func (m *Mock) List(ctx context.Context, name string) ([]byte, error) {
	if err := m.begin(ctx, OpList, name, ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds := m.datasets[name]
	if ds == nil || len(ds.order) == 0 {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, id := range ds.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(ds.records[id])
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Create stores a new record and returns it with its assigned id.
func (m *Mock) Create(ctx context.Context, name string, raw []byte) ([]byte, error) {
	if err := m.begin(ctx, OpCreate, name, ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id, stored, err := m.stamp(raw, "")
	if err != nil {
		return nil, err
	}
	ds := m.dataset(name)
	if _, exists := ds.records[id]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrConflict, name, id)
	}
	ds.put(id, stored)
	return append([]byte(nil), stored...), nil
}

// Fetch returns one record or cosmo.ErrNotFound.
func (m *Mock) Fetch(ctx context.Context, name, id string) ([]byte, error) {
	if err := m.begin(ctx, OpFetch, name, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds := m.datasets[name]
	if ds == nil {
		return nil, cosmo.ErrNotFound
	}
	data, ok := ds.records[id]
	if !ok {
		return nil, cosmo.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Replace stores raw under id, creating the record when it does not exist.
// The stored id always matches the addressed id.
func (m *Mock) Replace(ctx context.Context, name, id string, raw []byte) ([]byte, error) {
	if err := m.begin(ctx, OpReplace, name, id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, stored, err := m.stamp(raw, id)
	if err != nil {
		return nil, err
	}
	m.dataset(name).put(id, stored)
	return append([]byte(nil), stored...), nil
}

// Remove deletes a record or returns cosmo.ErrNotFound.
func (m *Mock) Remove(ctx context.Context, name, id string) error {
	if err := m.begin(ctx, OpRemove, name, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := m.datasets[name]
	if ds == nil {
		return cosmo.ErrNotFound
	}
	if _, ok := ds.records[id]; !ok {
		return cosmo.ErrNotFound
	}
	delete(ds.records, id)
	for i, existing := range ds.order {
		if existing == id {
			ds.order = append(ds.order[:i], ds.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) begin(ctx context.Context, op, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName("dataset", name); err != nil {
		return err
	}
	if op != OpList && op != OpCreate {
		if err := validName("id", id); err != nil {
			return err
		}
	}
	m.mu.RLock()
	fault := m.fault
	m.mu.RUnlock()
	if fault != nil {
		return fault(op, name, id)
	}
	return nil
}

// stamp decodes a record, fixes its id (forcedID, the record's own id, or a
// fresh one, in that order) and re-encodes it. Callers hold m.mu.
func (m *Mock) stamp(raw []byte, forcedID string) (string, []byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", nil, fmt.Errorf("%w: record must be a JSON object: %v", cosmo.ErrInvalidArgument, err)
	}
	if fields == nil {
		return "", nil, fmt.Errorf("%w: record must be a JSON object", cosmo.ErrInvalidArgument)
	}

	id := forcedID
	if id == "" {
		if existing, ok := fields["id"]; ok {
			var s string
			if err := json.Unmarshal(existing, &s); err == nil {
				id = s
			}
		}
	}
	if strings.TrimSpace(id) == "" {
		id = m.newID()
	}

	encodedID, err := json.Marshal(id)
	if err != nil {
		return "", nil, err
	}
	fields["id"] = encodedID
	stored, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return id, stored, nil
}

func (m *Mock) dataset(name string) *dataset {
	ds := m.datasets[name]
	if ds == nil {
		ds = &dataset{records: make(map[string][]byte)}
		m.datasets[name] = ds
	}
	return ds
}

func (m *Mock) ulid() string {
	return ulid.MustNew(ulid.Timestamp(m.now()), m.entropy).String()
}

func (ds *dataset) put(id string, data []byte) {
	if _, exists := ds.records[id]; !exists {
		ds.order = append(ds.order, id)
	}
	ds.records[id] = data
}

func validName(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", cosmo.ErrInvalidArgument, kind)
	}
	return nil
}
