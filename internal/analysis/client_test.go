package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alcyxob/fitness-assessment/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Timeout: timeout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestAnalyzeSendsFormAndDecodesReply(t *testing.T) {
	annotated := []byte("annotated-mp4")
	var (
		gotFields map[string][]string
		gotImages int
		gotVideo  string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze_mobile" || r.Method != http.MethodPost {
			t.Errorf("request: want POST /analyze_mobile got %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		gotFields = r.MultipartForm.Value
		gotImages = len(r.MultipartForm.File["reference_images"])
		if fh := r.MultipartForm.File["video"]; len(fh) == 1 {
			gotVideo = fh[0].Filename
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"generated_video_base64": base64.StdEncoding.EncodeToString(annotated),
			"saved_json_content": map[string]any{
				"performance_results": map[string]any{"rep_count": 23, "form_score": 0.8},
			},
		})
	}, time.Second)

	img := File{Name: "ref.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}
	res, err := c.Analyze(context.Background(), Request{
		UserID:          "u1",
		ExerciseType:    domain.ExerciseSquats,
		HeightCM:        172.5,
		Video:           File{Name: "squats.mp4", ContentType: "video/mp4", Data: []byte("raw")},
		ReferenceImages: []File{img, img, img},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RepCount != 23 {
		t.Fatalf("rep count: want=23 got=%d", res.RepCount)
	}
	if string(res.AnnotatedVideo) != string(annotated) {
		t.Fatalf("annotated video: want=%q got=%q", annotated, res.AnnotatedVideo)
	}
	if !strings.Contains(string(res.Metrics), "form_score") {
		t.Fatalf("metrics: want raw performance_results got=%s", res.Metrics)
	}

	want := map[string]string{
		"exercise_type":  "squats",
		"user_id":        "u1",
		"user_height_cm": "172.5",
		"generate_video": "true",
		"save_json":      "true",
	}
	for k, v := range want {
		if got := gotFields[k]; len(got) != 1 || got[0] != v {
			t.Fatalf("field %s: want=%q got=%v", k, v, got)
		}
	}
	if gotImages != MaxReferenceImages {
		t.Fatalf("reference images: want=%d got=%d", MaxReferenceImages, gotImages)
	}
	if gotVideo != "squats.mp4" {
		t.Fatalf("video filename: want=%q got=%q", "squats.mp4", gotVideo)
	}
}

func TestAnalyzeMissingRepCountDefaultsToZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"generated_video_base64":"data:video/mp4;base64,` +
			base64.StdEncoding.EncodeToString([]byte("v")) + `","saved_json_content":{"performance_results":{}}}`))
	}, time.Second)

	res, err := c.Analyze(context.Background(), Request{
		ExerciseType: domain.ExercisePushups,
		Video:        File{Data: []byte("raw")},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RepCount != 0 {
		t.Fatalf("rep count: want=0 got=%d", res.RepCount)
	}
	if string(res.AnnotatedVideo) != "v" {
		t.Fatalf("annotated video: want=%q got=%q", "v", res.AnnotatedVideo)
	}
}

func TestAnalyzeRejectsUnknownExercise(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true }, time.Second)

	_, err := c.Analyze(context.Background(), Request{ExerciseType: "burpees", Video: File{Data: []byte("x")}})
	if err == nil {
		t.Fatalf("Analyze: want error for unknown exercise")
	}
	if called {
		t.Fatalf("engine: want no request for unknown exercise")
	}
}

func TestAnalyzeEngineErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"no person detected"}`))
	}, time.Second)

	_, err := c.Analyze(context.Background(), Request{ExerciseType: domain.ExerciseSitups, Video: File{Data: []byte("x")}})
	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("Analyze: want EngineError got=%v", err)
	}
	if engErr.Status != http.StatusBadRequest || engErr.Message != "no person detected" {
		t.Fatalf("EngineError: got=%+v", engErr)
	}
}

func TestAnalyzeMissingVideoIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"saved_json_content":{"performance_results":{"rep_count":4}}}`))
	}, time.Second)

	if _, err := c.Analyze(context.Background(), Request{ExerciseType: domain.ExerciseSitups, Video: File{Data: []byte("x")}}); err == nil {
		t.Fatalf("Analyze: want error when generated video is missing")
	}
}

func TestAnalyzeTimesOut(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := c.Analyze(context.Background(), Request{ExerciseType: domain.ExerciseSquats, Video: File{Data: []byte("x")}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Analyze: want deadline exceeded got=%v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Analyze: took %v", elapsed)
	}
}

func TestFinalResultRelaysBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comprehensiveAnalysis" {
			t.Errorf("path: got=%s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["user_id"] != "u9" {
			t.Errorf("user_id: want=u9 got=%q", body["user_id"])
		}
		_, _ = w.Write([]byte(`{"overall_score":71,"breakdown":{"squats":80}}`))
	}, time.Second)

	raw, err := c.FinalResult(context.Background(), "u9")
	if err != nil {
		t.Fatalf("FinalResult: %v", err)
	}
	if string(raw) != `{"overall_score":71,"breakdown":{"squats":80}}` {
		t.Fatalf("FinalResult: got=%s", raw)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/mobile_health" {
			t.Errorf("request: got %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}, time.Second)

	raw, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if string(raw) != `{"status":"ok"}` {
		t.Fatalf("Health: got=%s", raw)
	}
}
