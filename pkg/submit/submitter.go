package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/formsync-dev/formsync/pkg/formdata"
	"github.com/formsync-dev/formsync/pkg/middleware"
)

// maxDrainBytes caps how much of a response body is read when counting the
// receipt size. Larger bodies are truncated at the cap.
const maxDrainBytes = 1 << 20

// emptyDocument is the merge patch baseline before the first submission.
var emptyDocument = []byte("{}")

// SubmitterConfig configures a Submitter.
type SubmitterConfig struct {
	// Encoding is the wire format. Default: EncodingJSON.
	Encoding Encoding

	// HTTPClient performs the requests. Default: an *http.Client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger is the structured logger. Default: slog.Default() with a
	// component attribute.
	Logger *slog.Logger
}

// Option configures a Submitter.
type Option func(*SubmitterConfig)

// WithEncoding sets the wire format.
func WithEncoding(e Encoding) Option {
	return func(c *SubmitterConfig) {
		c.Encoding = e
	}
}

// WithHTTPClient sets the HTTP client used for submissions.
func WithHTTPClient(client *http.Client) Option {
	return func(c *SubmitterConfig) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SubmitterConfig) {
		c.Logger = logger
	}
}

// Receipt describes one completed submission.
type Receipt struct {
	// Status is the HTTP status code the endpoint answered with.
	Status int

	// Encoding is the wire format the snapshot was sent in.
	Encoding Encoding

	// BodyBytes is the response body size, truncated at 1 MiB.
	BodyBytes int64
}

// Submitter posts snapshots to one HTTP endpoint. It is safe for concurrent
// use; merge patch submissions serialize on an internal lock because each
// patch is computed against the previously acknowledged snapshot.
type Submitter struct {
	endpoint string
	encoding Encoding
	client   *http.Client
	logger   *slog.Logger

	mu   sync.Mutex // guards last across merge patch submissions
	last []byte
}

// New creates a Submitter for endpoint.
func New(endpoint string, opts ...Option) *Submitter {
	config := SubmitterConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "submit")
	}

	return &Submitter{
		endpoint: endpoint,
		encoding: config.Encoding,
		client:   config.HTTPClient,
		logger:   config.Logger,
	}
}

// Endpoint returns the submission URL.
func (s *Submitter) Endpoint() string {
	return s.endpoint
}

// Encoding returns the configured wire format.
func (s *Submitter) Encoding() Encoding {
	return s.encoding
}

// Submit posts the snapshot and returns a receipt. A non-2xx response is an
// error, but the receipt is still returned so callers can inspect the
// status. In merge patch mode the baseline only advances after a successful
// response; a failed submission is retried against the old baseline, so no
// change is lost.
func (s *Submitter) Submit(ctx context.Context, data formdata.FormData) (*Receipt, error) {
	if s.encoding == EncodingMergePatch {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	var (
		current []byte
		body    []byte
		ct      string
		err     error
	)
	switch s.encoding {
	case EncodingForm:
		body = []byte(EncodeForm(data).Encode())
		ct = EncodingForm.ContentType()
	case EncodingMultipart:
		body, ct, err = EncodeMultipart(data)
	case EncodingMergePatch:
		current, err = json.Marshal(data)
		if err == nil {
			baseline := s.last
			if baseline == nil {
				baseline = emptyDocument
			}
			body, err = jsonpatch.CreateMergePatch(baseline, current)
		}
		ct = EncodingMergePatch.ContentType()
	default:
		body, err = json.Marshal(data)
		ct = EncodingJSON.ContentType()
	}
	if err != nil {
		middleware.RecordSubmit(s.encoding.String(), false)
		return nil, fmt.Errorf("submit: encode %s: %w", s.encoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		middleware.RecordSubmit(s.encoding.String(), false)
		return nil, fmt.Errorf("submit: build request: %w", err)
	}
	req.Header.Set("Content-Type", ct)

	resp, err := s.client.Do(req)
	if err != nil {
		middleware.RecordSubmit(s.encoding.String(), false)
		return nil, fmt.Errorf("submit: POST %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	receipt := &Receipt{
		Status:    resp.StatusCode,
		Encoding:  s.encoding,
		BodyBytes: n,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		middleware.RecordSubmit(s.encoding.String(), false)
		s.logger.Warn("submission rejected",
			"endpoint", s.endpoint,
			"encoding", s.encoding.String(),
			"status", resp.StatusCode)
		return receipt, fmt.Errorf("submit: POST %s: unexpected status %d", s.endpoint, resp.StatusCode)
	}

	if s.encoding == EncodingMergePatch {
		s.last = current
	}
	middleware.RecordSubmit(s.encoding.String(), true)
	s.logger.Debug("submitted",
		"endpoint", s.endpoint,
		"encoding", s.encoding.String(),
		"status", resp.StatusCode,
		"bytes", len(body))
	return receipt, nil
}
