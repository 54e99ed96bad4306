// Package coze is a small client for the Coze file upload and workflow APIs,
// the upstream that turns an uploaded image into a text prompt.
package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://api.coze.cn"
	DefaultWorkflowID = "7553549738953572406"
	DefaultTimeout    = 60 * time.Second

	uploadPath   = "/v1/files/upload"
	workflowPath = "/v1/workflow/run"
)

var (
	ErrMissingToken  = errors.New("coze: personal token required")
	ErrMissingFileID = errors.New("coze: upload succeeded but returned no file id")
	ErrEmptyImage    = errors.New("coze: image is empty")
)

// Image is an image ready for upload.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type Client struct {
	http       *http.Client
	fetch      *http.Client
	baseURL    *url.URL
	workflowID string
	log        zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient sets the transport used for API calls. The bearer token is
// layered on top of its Transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithFetchClient sets the client used to download remote images.
func WithFetchClient(h *http.Client) Option {
	return func(c *Client) { c.fetch = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil && raw != "" {
			c.baseURL = u
		}
	}
}

func WithWorkflowID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.workflowID = id
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client authenticating with a Coze personal access token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:       &http.Client{Timeout: DefaultTimeout},
		fetch:      &http.Client{Timeout: DefaultTimeout},
		baseURL:    u,
		workflowID: DefaultWorkflowID,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}

	// Wrap whatever transport we ended up with so every API request carries
	// "Authorization: Bearer <token>".
	authed := *c.http
	authed.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   c.http.Transport,
	}
	c.http = &authed
	return c, nil
}

// WorkflowID returns the workflow this client runs.
func (c *Client) WorkflowID() string {
	return c.workflowID
}

func (c *Client) endpoint(p string) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	return u.String()
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UploadData is the data block returned by the upload API.
type UploadData struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type"`
	FileURL  string `json:"file_url"`
}

// WorkflowData is the data block returned by the workflow API.
type WorkflowData struct {
	WorkflowRunID string `json:"workflow_run_id"`
	Output        string `json:"output,omitempty"`
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coze %s: %w", op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coze %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, HTTPStatus: resp.StatusCode, Msg: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("coze %s: decode response: %w", op, err)
	}
	if env.Code != 0 {
		return &APIError{Op: op, HTTPStatus: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("coze %s: decode data: %w", op, err)
		}
	}
	return nil
}

// Upload sends an image to the file API and returns its file id.
func (c *Client) Upload(ctx context.Context, img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", ErrEmptyImage
	}
	name := img.Name
	if name == "" {
		name = "image.jpg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if img.ContentType != "" {
		hdr.Set("Content-Type", img.ContentType)
	} else {
		hdr.Set("Content-Type", "application/octet-stream")
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(uploadPath), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.log.Debug().Str("name", name).Int("size", len(img.Data)).Msg("uploading image to coze")

	var data UploadData
	if err := c.do(req, "upload", &data); err != nil {
		return "", err
	}
	if data.FileID == "" {
		return "", ErrMissingFileID
	}
	return data.FileID, nil
}

type workflowRequest struct {
	WorkflowID string             `json:"workflow_id"`
	Parameters workflowParameters `json:"parameters"`
}

type workflowParameters struct {
	PromptType PromptType `json:"PromptType"`
	Img        string     `json:"img"`
}

// RunWorkflow runs the prompt workflow on an uploaded file for the given model
// variant. An empty output is returned as-is; it is not an error here.
func (c *Client) RunWorkflow(ctx context.Context, fileID, variant string) (string, error) {
	if fileID == "" {
		return "", ErrMissingFileID
	}
	img, _ := json.Marshal(map[string]string{"file_id": fileID})
	payload, err := json.Marshal(workflowRequest{
		WorkflowID: c.workflowID,
		Parameters: workflowParameters{
			PromptType: PromptTypeFor(variant),
			Img:        string(img),
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(workflowPath), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	runID := uuid.NewString()
	start := time.Now()
	log := c.log.With().Str("run", runID).Str("variant", variant).Str("file_id", fileID).Logger()
	log.Debug().Msg("running coze workflow")

	var data WorkflowData
	if err := c.do(req, "workflow", &data); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("coze workflow failed")
		return "", err
	}
	log.Debug().Dur("took", time.Since(start)).Int("output_len", len(data.Output)).Msg("coze workflow finished")
	return data.Output, nil
}
