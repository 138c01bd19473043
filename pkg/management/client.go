package management

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
)

// Config holds the coordinates of a server's management endpoint
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to the JSON management endpoint of a running server instance
type Client struct {
	endpoint   string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a management client for the given endpoint
func NewClient(cfg Config) *Client {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 9990
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: fmt.Sprintf("http://%s/management", joinHostPort(host, port)),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the management endpoint URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute sends the operation and returns the decoded response document. A
// non-successful outcome is still returned as a response, not an error;
// callers decide how to treat it. Transport and decoding failures are errors.
func (c *Client) Execute(ctx context.Context, op *Operation) (*gabs.Container, error) {
	var (
		req *http.Request
		err error
	)
	if len(op.Attachments()) > 0 {
		req, err = c.newMultipartRequest(ctx, op)
	} else {
		req, err = c.newJSONRequest(ctx, op)
	}
	if err != nil {
		return nil, err
	}

	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("management request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read management response: %w", err)
	}

	// Failed operations come back with a 500 and a regular response
	// document; anything else without a JSON body is a transport problem.
	response, parseErr := gabs.ParseJSON(body)
	if parseErr != nil {
		return nil, fmt.Errorf("unexpected management response (status %d): %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	slog.Debug("executed management operation",
		"operation", op.Name(),
		"status", resp.StatusCode,
		"outcome", response.Path("outcome").Data())

	return response, nil
}

// ExecuteForResult executes the operation and unwraps the result node,
// returning an OperationError on an unsuccessful outcome.
func (c *Client) ExecuteForResult(ctx context.Context, op *Operation) (*gabs.Container, error) {
	response, err := c.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	if !IsSuccessfulOutcome(response) {
		return nil, NewOperationError(op, response)
	}
	return ReadResult(response), nil
}

// ServerState reads the server-state attribute of the root resource
func (c *Client) ServerState(ctx context.Context) (string, error) {
	response, err := c.Execute(ctx, ReadAttribute("server-state"))
	if err != nil {
		return "", err
	}
	if !IsSuccessfulOutcome(response) {
		return "", NewOperationError(ReadAttribute("server-state"), response)
	}
	return ResultString(response), nil
}

// Shutdown asks the server to shut itself down
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.ExecuteForResult(ctx, NewOperation("shutdown"))
	return err
}

// Close releases idle connections held by the client
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) newJSONRequest(ctx context.Context, op *Operation) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader(op.Body().Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to build management request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newMultipartRequest(ctx context.Context, op *Operation) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormField("operation")
	if err != nil {
		return nil, fmt.Errorf("failed to build management request: %w", err)
	}
	if _, err := part.Write(op.Body().Bytes()); err != nil {
		return nil, fmt.Errorf("failed to build management request: %w", err)
	}

	for i, attachment := range op.Attachments() {
		part, err := writer.CreateFormFile("input-stream-"+strconv.Itoa(i), "content")
		if err != nil {
			return nil, fmt.Errorf("failed to attach content stream %d: %w", i, err)
		}
		if _, err := io.Copy(part, attachment); err != nil {
			return nil, fmt.Errorf("failed to attach content stream %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build management request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build management request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}
