package ilovepdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

const defaultBaseURL = "https://api.ilovepdf.com/v1"

// Client converts office and HTML documents to PDF through the ILovePDF
// task API: start, upload, process, download. Authentication is a
// self-signed HS256 token carrying the project public key, signed with the
// secret key.
type Client struct {
	publicKey string
	secretKey string
	baseURL   string
	http      *http.Client
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(publicKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		publicKey: publicKey,
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.publicKey != "" && c.secretKey != ""
}

func (c *Client) token() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "anyconvert",
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(2 * time.Hour).Unix(),
		"jti": c.publicKey,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
}

// toolFor picks the vendor tool from the source extension: HTML pages go
// through htmlpdf, everything else through officepdf.
func toolFor(inputPath string) string {
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".html", ".htm":
		return "htmlpdf"
	default:
		return "officepdf"
	}
}

type startResponse struct {
	Server string `json:"server"`
	Task   string `json:"task"`
}

type uploadResponse struct {
	ServerFilename string `json:"server_filename"`
}

type processResponse struct {
	DownloadFilename string `json:"download_filename"`
	Status           string `json:"status"`
}

// ConvertToPDF converts inputPath to a PDF written at outputPath.
func (c *Client) ConvertToPDF(ctx context.Context, inputPath, outputPath string) error {
	tool := toolFor(inputPath)

	start, err := c.start(ctx, tool)
	if err != nil {
		return err
	}

	serverFilename, err := c.upload(ctx, start, inputPath)
	if err != nil {
		return err
	}

	if err := c.process(ctx, start, tool, serverFilename, filepath.Base(inputPath)); err != nil {
		return err
	}

	return c.download(ctx, start, outputPath)
}

func (c *Client) start(ctx context.Context, tool string) (*startResponse, error) {
	var out startResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/start/"+tool, nil, &out); err != nil {
		return nil, fmt.Errorf("auth failed: %w", err)
	}
	if out.Server == "" || out.Task == "" {
		return nil, fmt.Errorf("start task returned no worker server")
	}
	return &out, nil
}

func (c *Client) serverURL(start *startResponse, path string) string {
	server := start.Server
	if !strings.HasPrefix(server, "http") {
		server = "https://" + server
	}
	return server + "/v1" + path
}

func (c *Client) upload(ctx context.Context, start *startResponse, inputPath string) (string, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("task", start.Task); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filepath.Base(inputPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	token, err := c.token()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL(start, "/upload"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out uploadResponse
	if err := c.doInto(req, &out); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return out.ServerFilename, nil
}

func (c *Client) process(ctx context.Context, start *startResponse, tool, serverFilename, filename string) error {
	payload := map[string]any{
		"task": start.Task,
		"tool": tool,
		"files": []map[string]string{
			{"server_filename": serverFilename, "filename": filename},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	token, err := c.token()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL(start, "/process"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var out processResponse
	if err := c.doInto(req, &out); err != nil {
		return fmt.Errorf("process failed: %w", err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, start *startResponse, outputPath string) error {
	token, err := c.token()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL(start, "/download/"+start.Task), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outputPath)
		return err
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body io.Reader, v any) error {
	token, err := c.token()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doInto(req, v)
}

func (c *Client) doInto(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, v)
}
