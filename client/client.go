// Package client talks to the appliance HTTP API. It implements
// editor.Backend.
package client

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meikuraledutech/pipeline"
	"github.com/moogar0880/problems"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schematics.schema.json
var schematicsSchema string

var schematicsLoader = gojsonschema.NewStringLoader(schematicsSchema)

// StatusError is a non-2xx response. Problem holds the decoded RFC 7807
// body when the server sent one.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Problem problems.Problem
}

func (e *StatusError) Error() string {
	msg := http.StatusText(e.Status)
	if e.Problem.Detail != "" {
		msg = e.Problem.Detail
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Client is an HTTP client for the pipeline API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schematics fetches and validates the node kind catalog. Any failure is
// reported as pipeline.ErrSchemaUnavailable.
func (c *Client) Schematics(ctx context.Context) (pipeline.Catalog, error) {
	body, err := c.raw(ctx, http.MethodGet, "/pipelines/schematics", nil, nil)
	if err != nil {
		return pipeline.Catalog{}, fmt.Errorf("%w: %w", pipeline.ErrSchemaUnavailable, err)
	}

	result, err := gojsonschema.Validate(schematicsLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return pipeline.Catalog{}, fmt.Errorf("%w: %w", pipeline.ErrSchemaUnavailable, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return pipeline.Catalog{}, fmt.Errorf("%w: %s", pipeline.ErrSchemaUnavailable, strings.Join(msgs, "; "))
	}

	var resp pipeline.CatalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return pipeline.Catalog{}, fmt.Errorf("%w: %w", pipeline.ErrSchemaUnavailable, err)
	}
	return pipeline.NewCatalog(resp.IO)
}

// RelationOptions lists the values a relation field of kind may take. An
// empty list is a valid answer.
func (c *Client) RelationOptions(ctx context.Context, kind, field string) ([]pipeline.RelationOption, error) {
	path := "/pipelines/schematics/" + url.PathEscape(kind) + "/" + url.PathEscape(field)
	var out []pipeline.RelationOption
	if err := c.do(ctx, http.MethodGet, path, nil, &out, pipeline.ErrSchematicNotFound); err != nil {
		return nil, err
	}
	if out == nil {
		out = []pipeline.RelationOption{}
	}
	return out, nil
}

// CreatePipeline creates an empty pipeline.
func (c *Client) CreatePipeline(ctx context.Context, name string) (*pipeline.Pipeline, error) {
	var p pipeline.Pipeline
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/pipelines", body, &p, nil); err != nil {
		return nil, err
	}
	return &p, nil
}

// Pipelines lists all pipelines without their graphs.
func (c *Client) Pipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	var out []pipeline.Pipeline
	if err := c.do(ctx, http.MethodGet, "/pipelines", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Pipeline fetches a pipeline with its nodes and edges.
func (c *Client) Pipeline(ctx context.Context, pipelineID int64) (*pipeline.Pipeline, error) {
	var p pipeline.Pipeline
	if err := c.do(ctx, http.MethodGet, pipelinePath(pipelineID), nil, &p, pipeline.ErrPipelineNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePipeline replaces the whole graph of a pipeline.
func (c *Client) UpdatePipeline(ctx context.Context, pipelineID int64, payload pipeline.Payload) (*pipeline.Pipeline, error) {
	var p pipeline.Pipeline
	if err := c.do(ctx, http.MethodPatch, pipelinePath(pipelineID), payload, &p, pipeline.ErrPipelineNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePipeline removes a pipeline.
func (c *Client) DeletePipeline(ctx context.Context, pipelineID int64) error {
	return c.do(ctx, http.MethodDelete, pipelinePath(pipelineID), nil, nil, pipeline.ErrPipelineNotFound)
}

func (c *Client) CreateNode(ctx context.Context, pipelineID int64, in pipeline.NodeInput) (pipeline.NodeResult, error) {
	var res pipeline.NodeResult
	err := c.do(ctx, http.MethodPost, pipelinePath(pipelineID)+"/nodes", in, &res, pipeline.ErrPipelineNotFound)
	return res, err
}

func (c *Client) UpdateNode(ctx context.Context, pipelineID, nodeID int64, in pipeline.NodeInput) (pipeline.NodeResult, error) {
	var res pipeline.NodeResult
	if err := c.do(ctx, http.MethodPatch, nodePath(pipelineID, nodeID), in, &res, pipeline.ErrNodeNotFound); err != nil {
		return res, err
	}
	if res.ID == 0 {
		res.ID = nodeID
	}
	return res, nil
}

func (c *Client) GetNode(ctx context.Context, pipelineID, nodeID int64) (pipeline.NodeState, error) {
	var st pipeline.NodeState
	err := c.do(ctx, http.MethodGet, nodePath(pipelineID, nodeID), nil, &st, pipeline.ErrNodeNotFound)
	return st, err
}

func (c *Client) DeleteNode(ctx context.Context, pipelineID, nodeID int64) error {
	return c.do(ctx, http.MethodDelete, nodePath(pipelineID, nodeID), nil, nil, pipeline.ErrNodeNotFound)
}

// Devices lists the audio hardware known to the appliance.
func (c *Client) Devices(ctx context.Context) ([]pipeline.Device, error) {
	var out []pipeline.Device
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func pipelinePath(id int64) string {
	return "/pipelines/" + strconv.FormatInt(id, 10)
}

func nodePath(pipelineID, nodeID int64) string {
	return pipelinePath(pipelineID) + "/nodes/" + strconv.FormatInt(nodeID, 10)
}

// do sends in as JSON and decodes the response into out. A 404 is wrapped
// with notFound when it is set.
func (c *Client) do(ctx context.Context, method, path string, in, out any, notFound error) error {
	body, err := c.raw(ctx, method, path, in, notFound)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, in any, notFound error) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	c.logger.DebugContext(ctx, "API request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	serr := &StatusError{Method: method, Path: path, Status: resp.StatusCode}
	if len(body) > 0 {
		// Not every error body is a problem document; keep the status either way.
		_ = json.Unmarshal(body, &serr.Problem)
	}
	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return nil, fmt.Errorf("%w: %w", notFound, serr)
	}
	return nil, serr
}

// IsStatus reports whether err carries an HTTP response with status code.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Status == code
}
