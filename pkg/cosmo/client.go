package cosmo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Ratio1/cosmo_sdk_go/internal/cosmoapi"
	"github.com/Ratio1/cosmo_sdk_go/internal/httpx"
	"github.com/Ratio1/cosmo_sdk_go/internal/logging"
)

// Backend performs raw datastore calls. Payloads are JSON documents; a nil
// payload means the datastore returned no body.
type Backend interface {
	List(ctx context.Context, dataset string) ([]byte, error)
	Create(ctx context.Context, dataset string, raw []byte) ([]byte, error)
	Fetch(ctx context.Context, dataset, id string) ([]byte, error)
	Replace(ctx context.Context, dataset, id string, raw []byte) ([]byte, error)
	Remove(ctx context.Context, dataset, id string) error
}

// Client provides access to the Cosmo REST API.
type Client struct {
	backend Backend
	log     *logrus.Entry
}

// New constructs a Client bound to the provided base URL. Requests carry
// Content-Type: application/json and the Ontology-Subject header. Retries are
// disabled unless enabled through WithHTTPOptions.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := buildOptions(opts)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set(HeaderSubject, o.subject)
	for k, values := range o.headers {
		headers[k] = append([]string(nil), values...)
	}

	httpOpts := []httpx.Option{
		httpx.WithHeaders(headers),
		httpx.WithRetryPolicy(httpx.NoRetryPolicy),
		httpx.WithLogger(o.log),
	}
	httpOpts = append(httpOpts, o.httpOpts...)

	cl, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{backend: &httpBackend{client: cl}, log: o.log}, nil
}

// NewFromHostPort constructs a Client for http://host:port.
func NewFromHostPort(host string, port int, opts ...Option) (*Client, error) {
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	if port <= 0 {
		port = DefaultPort
	}
	return New("http://"+net.JoinHostPort(host, strconv.Itoa(port)), opts...)
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{backend: b, log: o.log}
}

func buildOptions(opts []Option) *options {
	o := &options{
		subject: DefaultSubject,
		headers: http.Header{},
		log:     logging.Component("cosmo"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if strings.TrimSpace(o.subject) == "" {
		o.subject = DefaultSubject
	}
	return o
}

// Collection returns a handle on the named dataset.
func (c *Client) Collection(dataset string) *Collection {
	return &Collection{client: c, dataset: dataset}
}

func (c *Client) ready() error {
	if c == nil || c.backend == nil {
		return ErrNilClient
	}
	return nil
}

func (c *Client) logger() *logrus.Entry {
	if c == nil || c.log == nil {
		return logging.Component("cosmo")
	}
	return c.log
}

// Collection addresses one dataset.
type Collection struct {
	client  *Client
	dataset string
}

// Name returns the dataset name.
func (col *Collection) Name() string {
	return col.dataset
}

// Doc returns a handle on a single record of the dataset.
func (col *Collection) Doc(id string) *Doc {
	return &Doc{client: col.client, dataset: col.dataset, id: id}
}

// Get fetches the full listing of the dataset.
func (col *Collection) Get(ctx context.Context) (json.RawMessage, error) {
	log := col.fields("get")
	if err := col.check(); err != nil {
		log.WithError(err).Error("fetch dataset failed")
		return nil, err
	}
	data, err := col.client.backend.List(ctx, col.dataset)
	if err != nil {
		err = wrapError("get", col.dataset, "", err)
		log.WithError(err).Error("fetch dataset failed")
		return nil, err
	}
	log.Infof("fetched %s from Cosmo", col.dataset)
	return rawMessage(data), nil
}

// Add creates a record from obj and returns the record as stored by the server.
func (col *Collection) Add(ctx context.Context, obj any) (json.RawMessage, error) {
	log := col.fields("add")
	if err := col.check(); err != nil {
		log.WithError(err).Error("add record failed")
		return nil, err
	}
	payload, err := httpx.MarshalJSON(obj)
	if err != nil {
		err = fmt.Errorf("cosmo: encode %s record: %w", col.dataset, err)
		log.WithError(err).Error("add record failed")
		return nil, err
	}
	data, err := col.client.backend.Create(ctx, col.dataset, payload)
	if err != nil {
		err = wrapError("add", col.dataset, "", err)
		log.WithError(err).Error("add record failed")
		return nil, err
	}
	log.Infof("added %s to Cosmo", col.dataset)
	return rawMessage(data), nil
}

func (col *Collection) fields(op string) *logrus.Entry {
	if col == nil {
		return (*Client)(nil).logger().WithField("op", op)
	}
	return col.client.logger().WithFields(logrus.Fields{"dataset": col.dataset, "op": op})
}

func (col *Collection) check() error {
	if col == nil {
		return ErrNilClient
	}
	if err := col.client.ready(); err != nil {
		return err
	}
	return validateSegment("dataset", col.dataset)
}

// Doc addresses exactly one record.
type Doc struct {
	client  *Client
	dataset string
	id      string
}

// Dataset returns the dataset name.
func (d *Doc) Dataset() string {
	return d.dataset
}

// ID returns the record identifier.
func (d *Doc) ID() string {
	return d.id
}

// Get fetches the record.
func (d *Doc) Get(ctx context.Context) (json.RawMessage, error) {
	log := d.fields("get")
	if err := d.check(); err != nil {
		log.WithError(err).Error("fetch record failed")
		return nil, err
	}
	data, err := d.client.backend.Fetch(ctx, d.dataset, d.id)
	if err != nil {
		err = wrapError("get", d.dataset, d.id, err)
		log.WithError(err).Error("fetch record failed")
		return nil, err
	}
	log.Debug("fetched record")
	return rawMessage(data), nil
}

// Set replaces the record with obj and returns the server response body.
func (d *Doc) Set(ctx context.Context, obj any) (json.RawMessage, error) {
	log := d.fields("set")
	if err := d.check(); err != nil {
		log.WithError(err).Error("replace record failed")
		return nil, err
	}
	payload, err := httpx.MarshalJSON(obj)
	if err != nil {
		err = fmt.Errorf("cosmo: encode %s/%s record: %w", d.dataset, d.id, err)
		log.WithError(err).Error("replace record failed")
		return nil, err
	}
	data, err := d.client.backend.Replace(ctx, d.dataset, d.id, payload)
	if err != nil {
		err = wrapError("set", d.dataset, d.id, err)
		log.WithError(err).Error("replace record failed")
		return nil, err
	}
	log.Debug("replaced record")
	return rawMessage(data), nil
}

// Delete removes the record.
func (d *Doc) Delete(ctx context.Context) error {
	log := d.fields("delete")
	if err := d.check(); err != nil {
		log.WithError(err).Error("delete record failed")
		return err
	}
	if err := d.client.backend.Remove(ctx, d.dataset, d.id); err != nil {
		err = wrapError("delete", d.dataset, d.id, err)
		log.WithError(err).Error("delete record failed")
		return err
	}
	log.Debug("deleted record")
	return nil
}

func (d *Doc) fields(op string) *logrus.Entry {
	var client *Client
	if d != nil {
		client = d.client
	}
	entry := client.logger().WithField("op", op)
	if d != nil {
		entry = entry.WithFields(logrus.Fields{"dataset": d.dataset, "id": d.id})
	}
	return entry
}

func (d *Doc) check() error {
	if d == nil {
		return ErrNilClient
	}
	if err := d.client.ready(); err != nil {
		return err
	}
	if err := validateSegment("dataset", d.dataset); err != nil {
		return err
	}
	return validateSegment("id", d.id)
}

// List fetches a dataset listing and decodes every record into T.
func List[T any](ctx context.Context, col *Collection) ([]T, error) {
	data, err := col.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cosmo: decode %s listing: %w", col.dataset, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Add encodes value, creates it in the dataset and decodes the stored record.
func Add[T any](ctx context.Context, col *Collection, value T) (*T, error) {
	data, err := col.Add(ctx, value)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("cosmo: add %s: %w", col.dataset, ErrEmptyResponse)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cosmo: decode %s record: %w", col.dataset, err)
	}
	return &out, nil
}

// Get fetches a record decoded into T. An empty response yields nil, nil.
func Get[T any](ctx context.Context, doc *Doc) (*T, error) {
	data, err := doc.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cosmo: decode %s/%s record: %w", doc.dataset, doc.id, err)
	}
	return &out, nil
}

// Set replaces a record and returns the stored value. When the server sends
// no body the submitted value is returned.
func Set[T any](ctx context.Context, doc *Doc, value T) (*T, error) {
	data, err := doc.Set(ctx, value)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &value, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cosmo: decode %s/%s record: %w", doc.dataset, doc.id, err)
	}
	return &out, nil
}

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func validateSegment(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, kind)
	}
	if strings.Contains(value, "/") {
		return fmt.Errorf("%w: %s %q must not contain '/'", ErrInvalidArgument, kind, value)
	}
	// URL resolution collapses dot segments onto the parent path.
	if value == "." || value == ".." {
		return fmt.Errorf("%w: %s %q is not addressable", ErrInvalidArgument, kind, value)
	}
	return nil
}

func wrapError(op, dataset, id string, err error) error {
	target := dataset
	if id != "" {
		target = dataset + "/" + id
	}
	if httpx.StatusCode(err) == http.StatusNotFound && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("cosmo: %s %s: %w: %w", op, target, ErrNotFound, err)
	}
	return fmt.Errorf("cosmo: %s %s: %w", op, target, err)
}

func rawMessage(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) List(ctx context.Context, dataset string) ([]byte, error) {
	return b.do(ctx, http.MethodGet, datasetPath(dataset), "/"+dataset, nil)
}

func (b *httpBackend) Create(ctx context.Context, dataset string, raw []byte) ([]byte, error) {
	return b.do(ctx, http.MethodPost, datasetPath(dataset), "/"+dataset, raw)
}

func (b *httpBackend) Fetch(ctx context.Context, dataset, id string) ([]byte, error) {
	return b.do(ctx, http.MethodGet, recordPath(dataset, id), "/"+dataset+"/{id}", nil)
}

func (b *httpBackend) Replace(ctx context.Context, dataset, id string, raw []byte) ([]byte, error) {
	return b.do(ctx, http.MethodPut, recordPath(dataset, id), "/"+dataset+"/{id}", raw)
}

func (b *httpBackend) Remove(ctx context.Context, dataset, id string) error {
	_, err := b.do(ctx, http.MethodDelete, recordPath(dataset, id), "/"+dataset+"/{id}", nil)
	return err
}

func (b *httpBackend) do(ctx context.Context, method, path, route string, body []byte) ([]byte, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("cosmo: http backend not configured")
	}
	req := &httpx.Request{
		Method: method,
		Path:   path,
		Route:  route,
	}
	if body != nil {
		req.Header = http.Header{"Content-Type": []string{"application/json"}}
		req.Body = bytes.NewReader(body)
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cosmo: read response: %w", err)
	}
	return cosmoapi.ExtractPayload(data), nil
}

func datasetPath(dataset string) string {
	return "/" + url.PathEscape(dataset)
}

func recordPath(dataset, id string) string {
	return "/" + url.PathEscape(dataset) + "/" + url.PathEscape(id)
}
