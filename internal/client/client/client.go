package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/logging"
)

const defaultTimeout = 30 * time.Second

// Client is the backend contract used by the upload queue, the sync channel
// and the services.
type Client interface {
	List(ctx context.Context, p models.ListParams) (*models.MemoryList, error)
	Get(ctx context.Context, id string) (*models.Memory, error)
	RetryProcessing(ctx context.Context, id string) (*models.Memory, error)
	Delete(ctx context.Context, id string) error
	Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadAck, error)
	OpenEventStream(ctx context.Context) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

// MemoryClient talks HTTP/JSON to the memories backend.
type MemoryClient struct {
	baseURL string
	timeout time.Duration
	apiKey  string
	debug   bool
	log     logging.Logger

	http   *resty.Client
	stream *resty.Client
}

var _ Client = (*MemoryClient)(nil)

// New builds a client for baseURL. The stream client shares headers but has
// no overall timeout, since the event stream is long-lived.
func New(baseURL string, opts ...Option) (*MemoryClient, error) {
	c := &MemoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.http = c.newResty().SetTimeout(c.timeout)
	c.stream = c.newResty()
	return c, nil
}

func (c *MemoryClient) newResty() *resty.Client {
	r := resty.New().
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{log: c.log}).
		SetDebug(c.debug)
	if c.apiKey != "" {
		r.SetAuthToken(c.apiKey)
	}
	return r
}

// Ping checks the backend health endpoint.
func (c *MemoryClient) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return unavailable(err)
	}
	if !resp.IsSuccess() {
		return badResponse(resp)
	}
	return nil
}

// Upload sends one audio file as multipart field "file". A 2xx is durable
// acceptance; the echoed memory id is optional.
func (c *MemoryClient) Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadAck, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", filename, "audio/mp4", r).
		Post("/upload")
	if err != nil {
		return nil, unavailable(err)
	}
	if !resp.IsSuccess() {
		return nil, badResponse(resp)
	}

	ack := &models.UploadAck{}
	if len(resp.Body()) == 0 {
		return ack, nil
	}
	if err := decode(resp.Body(), ack); err != nil {
		c.log.Warn(ctx, "upload accepted with unreadable body", "status", resp.StatusCode(), "error", err)
		return &models.UploadAck{}, nil
	}
	return ack, nil
}

// OpenEventStream opens GET /events/memories. The caller owns the returned
// body and must close it.
func (c *MemoryClient) OpenEventStream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetDoNotParseResponse(true).
		Get("/events/memories")
	if err != nil {
		return nil, unavailable(err)
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(body, 4096))
		_ = body.Close()
		return nil, &BadResponseError{StatusCode: resp.StatusCode(), Body: string(raw)}
	}
	return body, nil
}

type restyLogger struct {
	log logging.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.Warn(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}
