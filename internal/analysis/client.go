// Package analysis is the HTTP client of the external analysis engine that
// counts repetitions and renders annotated videos.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"alcyxob/fitness-assessment/internal/domain"
)

// MaxReferenceImages is the most reference images the engine accepts per
// mobile analysis.
const MaxReferenceImages = 2

const defaultTimeout = 120 * time.Second

type Options struct {
	BaseURL         string
	AnalyzePath     string
	FinalResultPath string
	HealthPath      string
	Timeout         time.Duration

	HTTPClient *http.Client
}

type Client struct {
	baseURL         string
	analyzePath     string
	finalResultPath string
	healthPath      string
	timeout         time.Duration

	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("analysis engine baseURL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:         baseURL,
		analyzePath:     pathOr(opts.AnalyzePath, "/analyze_mobile"),
		finalResultPath: pathOr(opts.FinalResultPath, "/comprehensiveAnalysis"),
		healthPath:      pathOr(opts.HealthPath, "/mobile_health"),
		timeout:         timeout,
		httpClient:      hc,
	}, nil
}

func pathOr(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return def
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// File is one uploaded part.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request is one exercise analysis.
type Request struct {
	UserID          string
	ExerciseType    domain.ExerciseType
	HeightCM        float64
	Video           File
	ReferenceImages []File
}

// Result is the decoded engine reply.
type Result struct {
	AnnotatedVideo []byte
	RepCount       int
	// Metrics is performance_results exactly as the engine sent it.
	Metrics json.RawMessage
}

type analyzeResponse struct {
	GeneratedVideoBase64 string            `json:"generated_video_base64"`
	SavedJSONContent     *savedJSONContent `json:"saved_json_content"`
}

type savedJSONContent struct {
	PerformanceResults json.RawMessage `json:"performance_results"`
}

type performanceResults struct {
	RepCount *float64 `json:"rep_count"`
}

// EngineError is a non-2xx reply from the engine.
type EngineError struct {
	Status  int
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("analysis engine http %d: %s", e.Status, e.Message)
}

// Analyze posts one exercise video to the engine and waits for the annotated
// video and the structured metrics. Nothing is retried.
func (c *Client) Analyze(ctx context.Context, req Request) (*Result, error) {
	if _, err := domain.ParseExerciseType(string(req.ExerciseType)); err != nil {
		return nil, err
	}
	if len(req.Video.Data) == 0 {
		return nil, errors.New("video required")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("exercise_type", string(req.ExerciseType))
	_ = writer.WriteField("user_id", req.UserID)
	if req.HeightCM > 0 {
		_ = writer.WriteField("user_height_cm", strconv.FormatFloat(req.HeightCM, 'f', -1, 64))
	}
	_ = writer.WriteField("generate_video", "true")
	_ = writer.WriteField("save_json", "true")
	if err := writeFile(writer, "video", req.Video); err != nil {
		return nil, err
	}
	images := req.ReferenceImages
	if len(images) > MaxReferenceImages {
		images = images[:MaxReferenceImages]
	}
	for _, img := range images {
		if err := writeFile(writer, "reference_images", img); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, http.MethodPost, c.analyzePath, &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decodeAnalyzeResponse(raw)
}

func decodeAnalyzeResponse(raw []byte) (*Result, error) {
	var resp analyzeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode engine reply: %w", err)
	}
	if strings.TrimSpace(resp.GeneratedVideoBase64) == "" {
		return nil, errors.New("engine reply has no generated video")
	}
	video, err := decodeBase64Video(resp.GeneratedVideoBase64)
	if err != nil {
		return nil, fmt.Errorf("decode generated video: %w", err)
	}

	out := &Result{AnnotatedVideo: video}
	if resp.SavedJSONContent != nil && len(resp.SavedJSONContent.PerformanceResults) > 0 {
		out.Metrics = resp.SavedJSONContent.PerformanceResults
		var perf performanceResults
		if err := json.Unmarshal(resp.SavedJSONContent.PerformanceResults, &perf); err == nil && perf.RepCount != nil {
			out.RepCount = int(math.Round(*perf.RepCount))
		}
	}
	return out, nil
}

// decodeBase64Video accepts plain base64 or a data URI.
func decodeBase64Video(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

// FinalResult asks the engine for the cross-exercise aggregate of userID and
// returns it unmodified.
func (c *Client) FinalResult(ctx context.Context, userID string) (json.RawMessage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id required")
	}
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, http.MethodPost, c.finalResultPath, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("engine reply is not JSON")
	}
	return json.RawMessage(raw), nil
}

// Health relays the engine's health report.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, c.healthPath, nil, "")
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("engine reply is not JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis engine %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read engine reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &EngineError{Status: resp.StatusCode, Message: engineMessage(raw)}
	}
	return raw, nil
}

// engineMessage prefers the engine's own {"error": ...} or {"message": ...}.
func engineMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func writeFile(w *multipart.Writer, field string, f File) error {
	name := f.Name
	if name == "" {
		name = field
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(name)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
