package submit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alcyxob/fitness-assessment/internal/domain"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestPerformOneUploadsFilesWithBearer(t *testing.T) {
	video := writeTemp(t, "squats.mp4", "video-bytes")
	ref := writeTemp(t, "side.jpg", "jpg-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != performOnePath {
			t.Errorf("path: want=%s got=%s", performOnePath, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization: want=%q got=%q", "Bearer tok", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("exercise_type"); got != "squats" {
			t.Errorf("exercise_type: want=squats got=%q", got)
		}
		files := r.MultipartForm.File["file"]
		if len(files) != 2 {
			t.Errorf("files: want=2 got=%d", len(files))
			return
		}
		if ct := files[0].Header.Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("video content type: got=%q", ct)
		}
		f, _ := files[0].Open()
		body, _ := io.ReadAll(f)
		_ = f.Close()
		if string(body) != "video-bytes" {
			t.Errorf("video body: got=%q", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"assessment":{"exerciseName":"squats","repetitionCount":23,"verificationState":"verified"},"media":{"media":[{"type":"video","publicId":"assessments/x.mp4"}]}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok", 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.PerformOne(context.Background(), Submission{
		ExerciseType:    domain.ExerciseSquats,
		VideoPath:       video,
		ReferenceImages: []string{ref},
	})
	if err != nil {
		t.Fatalf("PerformOne: %v", err)
	}
	if res.Assessment.RepetitionCount != 23 || res.Assessment.Verification != domain.VerificationVerified {
		t.Fatalf("assessment: got=%+v", res.Assessment)
	}
	if len(res.Media.Items) != 1 || res.Media.Items[0].StorageKey != "assessments/x.mp4" {
		t.Fatalf("media: got=%+v", res.Media)
	}
}

func TestPerformOneSurfacesServerError(t *testing.T) {
	video := writeTemp(t, "pushups.mp4", "v")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"Analysis failed","error":"timeout"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "", 0)
	_, err := c.PerformOne(context.Background(), Submission{ExerciseType: domain.ExercisePushups, VideoPath: video})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("PerformOne: want APIError got=%v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "Analysis failed" || apiErr.Detail != "timeout" {
		t.Fatalf("APIError: got=%+v", apiErr)
	}
}

func TestPerformOneRejectsMissingFile(t *testing.T) {
	c, _ := New("http://127.0.0.1:1", "", 0)
	_, err := c.PerformOne(context.Background(), Submission{
		ExerciseType: domain.ExerciseSitups,
		VideoPath:    filepath.Join(t.TempDir(), "missing.mp4"),
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("PerformOne: want ErrNotExist got=%v", err)
	}
}
