package evidence

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/testwise/runcore/lib/consts"
)

const (
	// RequestTimeout is the default backend request timeout.
	RequestTimeout = 20 * time.Second
	// RetryInterval is the default request retry interval.
	RetryInterval = 500 * time.Millisecond
	// MaxRetries specifies max retry attempts.
	MaxRetries = 3

	idempotencyKeyHeader = "Runcore-Idempotency-Key"
)

// Client handles communication with the testcase backend.
type Client struct {
	client  *http.Client
	fs      afero.Fs
	token   string
	baseURL string
	logger  logrus.FieldLogger

	retries       int
	retryInterval time.Duration
}

// NewClient returns a new backend client. Artifact files referenced by
// UpdateWithResults are read through fsys.
func NewClient(logger logrus.FieldLogger, fsys afero.Fs, token, host string) *Client {
	return &Client{
		client:        &http.Client{Timeout: RequestTimeout},
		fs:            fsys,
		token:         token,
		baseURL:       fmt.Sprintf("%s/v1", host),
		logger:        logger,
		retries:       MaxRetries,
		retryInterval: RetryInterval,
	}
}

// NewRequest creates a new HTTP request. A non-nil data value is serialized
// as the JSON body.
func (c *Client) NewRequest(ctx context.Context, method, url string, data any) (*http.Request, error) {
	var buf io.Reader
	if data != nil {
		b, err := json.Marshal(&data)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(b)
	}
	return http.NewRequestWithContext(ctx, method, url, buf)
}

// Do sends the request, retrying retriable failures, and decodes a JSON
// response into v when v is non-nil.
func (c *Client) Do(req *http.Request, v any) error {
	if req.Body != nil && req.GetBody == nil {
		originalBody, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		if err = req.Body.Close(); err != nil {
			return err
		}
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(originalBody)), nil
		}
		req.Body, _ = req.GetBody()
	}

	c.prepareHeaders(req)

	var err error
	for i := 1; i <= c.retries; i++ {
		var retry bool
		retry, err = c.do(req, v, i)
		if !retry {
			return err
		}
		time.Sleep(c.retryInterval)
		if req.GetBody != nil {
			req.Body, _ = req.GetBody()
		}
	}
	return err
}

func (c *Client) prepareHeaders(req *http.Request) {
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Token %s", c.token))
	}
	if req.Method == http.MethodPost || req.Method == http.MethodPut {
		req.Header.Set(idempotencyKeyHeader, randomStrHex())
	}
	req.Header.Set("User-Agent", "runcore/"+consts.Version)
}

func (c *Client) do(req *http.Request, v any, attempt int) (retry bool, err error) {
	resp, err := c.client.Do(req)
	defer func() {
		if resp != nil {
			if cerr := resp.Body.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	if shouldRetry(resp, err, attempt, c.retries) {
		return true, err
	}
	if err != nil {
		return false, err
	}
	if err = checkResponse(resp); err != nil {
		return false, err
	}

	if v != nil {
		if err = json.NewDecoder(resp.Body).Decode(v); err == io.EOF {
			err = nil // Ignore EOF from empty body
		}
	}
	return false, err
}

func checkResponse(r *http.Response) error {
	if r == nil {
		return ErrUnknown
	}
	if c := r.StatusCode; c >= 200 && c <= 299 {
		return nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	var payload struct {
		Error ErrorResponse `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error.Message == "" {
		if r.StatusCode == http.StatusUnauthorized {
			return ErrNotAuthenticated
		}
		if r.StatusCode == http.StatusForbidden {
			return ErrNotAuthorized
		}
		return fmt.Errorf(
			"unexpected HTTP error from %s: %d %s",
			r.Request.URL, r.StatusCode, http.StatusText(r.StatusCode),
		)
	}
	return payload.Error
}

func shouldRetry(resp *http.Response, err error, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts {
		return false
	}
	if resp == nil || err != nil {
		return true
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return false
}

func randomStrHex() string {
	// 16 hex chars
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
