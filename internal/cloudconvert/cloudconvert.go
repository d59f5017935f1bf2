package cloudconvert

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
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.cloudconvert.com/v2"

// Client drives CloudConvert's job API: create a job naming import, convert
// and export tasks, upload the source, poll until the job settles, then
// download the exported file. No retries; a single failed call fails the
// conversion (the orchestrator remaps the message for users).
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Result    struct {
		Form *struct {
			URL        string            `json:"url"`
			Parameters map[string]string `json:"parameters"`
		} `json:"form"`
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files"`
	} `json:"result"`
}

type job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Tasks  []task `json:"tasks"`
}

type jobEnvelope struct {
	Data job `json:"data"`
}

type apiError struct {
	Message string `json:"message"`
}

// Convert turns the file at inputPath into targetFormat, writing the result
// to outputPath.
func (c *Client) Convert(ctx context.Context, inputPath, outputPath, targetFormat string) error {
	inputFormat := strings.TrimPrefix(strings.ToLower(filepath.Ext(inputPath)), ".")
	if inputFormat == "" {
		inputFormat = "html"
	}

	j, err := c.createJob(ctx, inputFormat, targetFormat)
	if err != nil {
		return err
	}
	log.Debug().Str("jobID", j.ID).Str("from", inputFormat).Str("to", targetFormat).Msg("CloudConvert job created")

	importTask := findTask(j.Tasks, "import-file")
	if importTask == nil || importTask.Result.Form == nil {
		return fmt.Errorf("upload task not found in job response")
	}
	if err := c.upload(ctx, importTask, inputPath); err != nil {
		return err
	}

	j, err = c.waitForJob(ctx, j.ID)
	if err != nil {
		return err
	}

	convertTask := findTask(j.Tasks, "convert-file")
	if convertTask == nil || convertTask.Status != "finished" {
		message := "unknown error"
		if convertTask != nil && convertTask.Message != "" {
			message = convertTask.Message
		}
		return fmt.Errorf("conversion failed: %s", message)
	}

	exportTask := findTask(j.Tasks, "export-file")
	if exportTask == nil || len(exportTask.Result.Files) == 0 || exportTask.Result.Files[0].URL == "" {
		return fmt.Errorf("export task failed")
	}

	return c.download(ctx, exportTask.Result.Files[0].URL, outputPath)
}

func (c *Client) createJob(ctx context.Context, inputFormat, outputFormat string) (*job, error) {
	payload := map[string]any{
		"tasks": map[string]any{
			"import-file": map[string]any{
				"operation": "import/upload",
			},
			"convert-file": map[string]any{
				"operation":     "convert",
				"input":         "import-file",
				"input_format":  inputFormat,
				"output_format": outputFormat,
			},
			"export-file": map[string]any{
				"operation": "export/url",
				"input":     "convert-file",
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var envelope jobEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

func (c *Client) upload(ctx context.Context, importTask *task, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, value := range importTask.Result.Form.Parameters {
		if err := w.WriteField(key, value); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(inputPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, importTask.Result.Form.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) waitForJob(ctx context.Context, jobID string) (*job, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var envelope jobEnvelope
		if err := c.do(req, &envelope); err != nil {
			return nil, err
		}

		switch envelope.Data.Status {
		case "finished", "error":
			return &envelope.Data, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) download(ctx context.Context, fileURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}

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

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("cloudconvert: %s", apiErr.Message)
		}
		return fmt.Errorf("cloudconvert: %s", resp.Status)
	}

	return json.Unmarshal(body, v)
}

func findTask(tasks []task, name string) *task {
	for i := range tasks {
		if tasks[i].Name == name {
			return &tasks[i]
		}
	}
	return nil
}
