package cosmo

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Ratio1/cosmo_sdk_go/internal/httpx"
)

const (
	// HeaderSubject identifies the caller to the datastore.
	HeaderSubject = "Ontology-Subject"
	// DefaultSubject is sent when no subject is configured.
	DefaultSubject = "AecaeSEBkt5GcBCxwz1F41TvdjX3dnKBkJ"
	// DefaultHost and DefaultPort address a local Cosmo node.
	DefaultHost = "127.0.0.1"
	DefaultPort = 21982
)

var (
	// ErrNotFound is returned when the datastore reports a missing record.
	ErrNotFound = errors.New("cosmo: not found")
	// ErrInvalidArgument is returned for empty or malformed dataset names and ids.
	ErrInvalidArgument = errors.New("cosmo: invalid argument")
	// ErrNilClient is returned when an operation runs on an unconfigured client.
	ErrNilClient = errors.New("cosmo: client is nil")
	// ErrEmptyResponse is returned when a create call yields no record.
	ErrEmptyResponse = errors.New("cosmo: empty response")
)

// Option configures a Client built by New.
type Option func(*options)

type options struct {
	subject  string
	headers  http.Header
	httpOpts []httpx.Option
	log      *logrus.Entry
}

// WithSubject overrides the Ontology-Subject header value.
func WithSubject(subject string) Option {
	return func(o *options) {
		o.subject = subject
	}
}

// WithHeader adds a static header sent on every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithHTTPOptions forwards options to the underlying httpx client.
func WithHTTPOptions(opts ...httpx.Option) Option {
	return func(o *options) {
		o.httpOpts = append(o.httpOpts, opts...)
	}
}

// WithLogger sets the logger used for operation logs.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
