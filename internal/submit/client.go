// Package submit uploads finished recordings to the ingestion server.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alcyxob/fitness-assessment/internal/domain"
)

const performOnePath = "/api/v1/assessment/perform_one"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. A zero timeout means no client-side deadline: the
// server keeps processing even if the caller gives up.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("server URL required")
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Submission is one exercise attempt read from local files.
type Submission struct {
	ExerciseType    domain.ExerciseType
	VideoPath       string
	ReferenceImages []string
}

// Result is the server's {assessment, media} reply.
type Result struct {
	Assessment domain.Assessment `json:"assessment"`
	Media      domain.Media      `json:"media"`
}

// APIError is the server's {message, error?} reply.
type APIError struct {
	Status  int
	Message string `json:"message"`
	Detail  string `json:"error,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server http %d: %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("server http %d: %s", e.Status, e.Message)
}

// PerformOne streams the video and reference images as one multipart POST
// and waits for the server to finish analysis and persistence.
func (c *Client) PerformOne(ctx context.Context, sub Submission) (*Result, error) {
	if _, err := domain.ParseExerciseType(string(sub.ExerciseType)); err != nil {
		return nil, err
	}
	paths := append([]string{sub.VideoPath}, sub.ReferenceImages...)
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("submission file: %w", err)
		}
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(writer, sub.ExerciseType, paths))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+performOnePath, pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", sub.ExerciseType, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}

	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode server reply: %w", err)
	}
	return &out, nil
}

func writeForm(w *multipart.Writer, exercise domain.ExerciseType, paths []string) error {
	if err := w.WriteField("exercise_type", string(exercise)); err != nil {
		return err
	}
	for _, p := range paths {
		if err := writeFilePart(w, "file", p); err != nil {
			return err
		}
	}
	return w.Close()
}

func writeFilePart(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filepath.Base(path)))
	h.Set("Content-Type", contentTypeFor(path))
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
