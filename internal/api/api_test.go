package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"alcyxob/fitness-assessment/internal/analysis"
	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type fakeAssessmentService struct {
	inputs []service.PerformOneInput
	err    error
	final  json.RawMessage
}

func (s *fakeAssessmentService) PerformOne(_ context.Context, in service.PerformOneInput) (*service.PerformResult, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	media := &domain.Media{ID: primitive.NewObjectID(), UserID: in.UserID}
	return &service.PerformResult{
		Assessment: &domain.Assessment{ID: primitive.NewObjectID(), UserID: in.UserID, MediaID: media.ID, RepetitionCount: 12},
		Media:      media,
	}, nil
}

func (s *fakeAssessmentService) GetFinalResult(context.Context, primitive.ObjectID) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.final, nil
}

func (s *fakeAssessmentService) GetMyAssessments(context.Context, primitive.ObjectID) ([]domain.Assessment, error) {
	return []domain.Assessment{}, s.err
}

func (s *fakeAssessmentService) EngineHealth(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"status":"ok"}`), nil
}

type fakeMediaService struct {
	deleted [][3]primitive.ObjectID
	err     error
	linked  *primitive.ObjectID
}

func (s *fakeMediaService) UploadMedia(_ context.Context, userID primitive.ObjectID, files []service.File, assessmentID *primitive.ObjectID) (*domain.Media, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.linked = assessmentID
	m := &domain.Media{ID: primitive.NewObjectID(), UserID: userID}
	for _, f := range files {
		m.Items = append(m.Items, domain.MediaItem{ID: primitive.NewObjectID(), Title: f.Name})
	}
	return m, nil
}

func (s *fakeMediaService) GetMedia(context.Context, primitive.ObjectID) ([]domain.Media, error) {
	return nil, s.err
}

func (s *fakeMediaService) DeleteMedia(_ context.Context, userID, parentID, itemID primitive.ObjectID) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, [3]primitive.ObjectID{userID, parentID, itemID})
	return nil
}

func newTestRouter(as service.AssessmentService, ms service.MediaService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, testSecret, as, ms, 1<<20, logger.Nop())
	return router
}

func signToken(t *testing.T, secret, userID string, role domain.Role, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID: userID,
		Phone:  "+15550100",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

type part struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.name))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		pw.Write(p.data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func do(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter(&fakeAssessmentService{}, &fakeMediaService{})
	userID := primitive.NewObjectID().Hex()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusForbidden},
		{"wrong secret", "Bearer " + signToken(t, "other", userID, domain.RoleUser, time.Now().Add(time.Hour)), http.StatusForbidden},
		{"expired", "Bearer " + signToken(t, testSecret, userID, domain.RoleUser, time.Now().Add(-time.Minute)), http.StatusForbidden},
		{"valid", "Bearer " + signToken(t, testSecret, userID, domain.RoleUser, time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/exercises", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := do(router, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: want=%d got=%d body=%s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
		if tc.want != http.StatusOK && decodeError(t, rec).Message == "" {
			t.Fatalf("%s: want message in error body", tc.name)
		}
	}
}

func TestPingIsPublic(t *testing.T) {
	router := newTestRouter(&fakeAssessmentService{}, &fakeMediaService{})
	rec := do(router, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ping: want=200 got=%d", rec.Code)
	}
}

func TestListExercisesInBatteryOrder(t *testing.T) {
	router := newTestRouter(&fakeAssessmentService{}, &fakeMediaService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exercises", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleUser, time.Now().Add(time.Hour)))

	rec := do(router, req)
	var got []ExerciseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"pushups", "squats", "long_jump", "vertical_jump", "situps"}
	if len(got) != len(want) {
		t.Fatalf("exercises: want=%d got=%d", len(want), len(got))
	}
	for i, key := range want {
		if got[i].Key != key || got[i].Position != i+1 {
			t.Fatalf("exercise %d: want=%s got=%+v", i, key, got[i])
		}
	}
}

func TestPerformOneSplitsVideoAndImages(t *testing.T) {
	svc := &fakeAssessmentService{}
	router := newTestRouter(svc, &fakeMediaService{})
	userID := primitive.NewObjectID()

	body, ct := multipartBody(t, map[string]string{"exercise_type": "squats"},
		part{"file", "front.jpg", "image/jpeg", []byte("img")},
		part{"file", "squats.mp4", "", []byte("video")},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/perform_one", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, userID.Hex(), domain.RoleUser, time.Now().Add(time.Hour)))

	rec := do(router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("perform_one: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	in := svc.inputs[0]
	if in.UserID != userID || in.ExerciseType != "squats" {
		t.Fatalf("input: got=%+v", in)
	}
	if in.Video.ContentType != "video/mp4" || string(in.Video.Data) != "video" {
		t.Fatalf("video: got=%+v", in.Video)
	}
	if len(in.ReferenceImages) != 1 || in.ReferenceImages[0].Name != "front.jpg" {
		t.Fatalf("reference images: got=%+v", in.ReferenceImages)
	}

	var resp struct {
		Assessment domain.Assessment `json:"assessment"`
		Media      domain.Media      `json:"media"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Assessment.RepetitionCount != 12 || resp.Assessment.MediaID != resp.Media.ID {
		t.Fatalf("response: got=%s", rec.Body.String())
	}
}

func TestPerformOneRejectsBadUploads(t *testing.T) {
	token := "Bearer " + signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleUser, time.Now().Add(time.Hour))
	cases := []struct {
		name  string
		parts []part
	}{
		{"no video", []part{{"file", "a.png", "image/png", []byte("p")}}},
		{"two videos", []part{{"file", "a.mp4", "video/mp4", []byte("1")}, {"file", "b.mp4", "video/mp4", []byte("2")}}},
		{"text file", []part{{"file", "a.mp4", "video/mp4", []byte("1")}, {"file", "notes.txt", "text/plain", []byte("x")}}},
		{"too large", []part{{"file", "a.mp4", "video/mp4", make([]byte, 2<<20)}}},
	}
	for _, tc := range cases {
		svc := &fakeAssessmentService{}
		router := newTestRouter(svc, &fakeMediaService{})
		body, ct := multipartBody(t, map[string]string{"exercise_type": "pushups"}, tc.parts...)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/perform_one", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", token)

		rec := do(router, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: want=400 got=%d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if len(svc.inputs) != 0 {
			t.Fatalf("%s: service called", tc.name)
		}
	}
}

func TestPerformOneErrorMapping(t *testing.T) {
	token := "Bearer " + signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleUser, time.Now().Add(time.Hour))
	cases := []struct {
		err        error
		want       int
		wantDetail bool
	}{
		{fmt.Errorf("%w: %q", service.ErrUnsupportedExercise, "burpees"), http.StatusBadRequest, true},
		{service.ErrUserNotFound, http.StatusNotFound, true},
		{fmt.Errorf("%w: %w", service.ErrAnalysisEngine, &analysis.EngineError{Status: 500, Message: "model crashed"}), http.StatusBadGateway, true},
		{fmt.Errorf("%w: %w", service.ErrStorageUpload, errors.New("bucket secret-name denied")), http.StatusInternalServerError, false},
		{fmt.Errorf("%w: %w", service.ErrPersistence, errors.New("mongo down")), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		router := newTestRouter(&fakeAssessmentService{err: tc.err}, &fakeMediaService{})
		body, ct := multipartBody(t, map[string]string{"exercise_type": "squats"}, part{"file", "a.mp4", "video/mp4", []byte("v")})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/perform_one", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", token)

		rec := do(router, req)
		if rec.Code != tc.want {
			t.Fatalf("%v: want=%d got=%d", tc.err, tc.want, rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.Message == "" || (resp.Error != "") != tc.wantDetail {
			t.Fatalf("%v: body=%+v", tc.err, resp)
		}
	}
}

func TestGetFinalResultRelaysVerbatim(t *testing.T) {
	payload := `{"overall_score":77,"exercises":{"squats":{"rep_count":23}}}`
	router := newTestRouter(&fakeAssessmentService{final: json.RawMessage(payload)}, &fakeMediaService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessment/get_final_result", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleUser, time.Now().Add(time.Hour)))

	rec := do(router, req)
	if rec.Code != http.StatusOK || rec.Body.String() != payload {
		t.Fatalf("final result: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestEngineHealthRequiresAdmin(t *testing.T) {
	router := newTestRouter(&fakeAssessmentService{}, &fakeMediaService{})
	for role, want := range map[domain.Role]int{domain.RoleUser: http.StatusForbidden, domain.RoleAdmin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/assessment/engine/health", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, primitive.NewObjectID().Hex(), role, time.Now().Add(time.Hour)))
		if rec := do(router, req); rec.Code != want {
			t.Fatalf("role %s: want=%d got=%d", role, want, rec.Code)
		}
	}
}

func TestGetMediaReturnsEmptyList(t *testing.T) {
	router := newTestRouter(&fakeAssessmentService{}, &fakeMediaService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/getmedia", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleUser, time.Now().Add(time.Hour)))

	rec := do(router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("getmedia: want=200 got=%d", rec.Code)
	}
	var resp struct {
		Message string            `json:"message"`
		Media   []json.RawMessage `json:"media"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message == "" || resp.Media == nil || len(resp.Media) != 0 {
		t.Fatalf("getmedia body: %s", rec.Body.String())
	}
}

func TestDeleteMedia(t *testing.T) {
	userID, parentID, itemID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	token := "Bearer " + signToken(t, testSecret, userID.Hex(), domain.RoleUser, time.Now().Add(time.Hour))

	svc := &fakeMediaService{}
	router := newTestRouter(&fakeAssessmentService{}, svc)
	body := fmt.Sprintf(`{"parentId":%q,"mediaId":%q}`, parentID.Hex(), itemID.Hex())
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/media/deletemedia", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	if rec := do(router, req); rec.Code != http.StatusOK {
		t.Fatalf("deletemedia: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != [3]primitive.ObjectID{userID, parentID, itemID} {
		t.Fatalf("deleted: got=%v", svc.deleted)
	}

	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing mediaId", fmt.Sprintf(`{"parentId":%q}`, parentID.Hex()), nil, http.StatusBadRequest},
		{"bad parentId", fmt.Sprintf(`{"parentId":"xyz","mediaId":%q}`, itemID.Hex()), nil, http.StatusBadRequest},
		{"not found", body, service.ErrMediaNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		router := newTestRouter(&fakeAssessmentService{}, &fakeMediaService{err: tc.err})
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/media/deletemedia", bytes.NewBufferString(tc.body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", token)
		if rec := do(router, req); rec.Code != tc.want {
			t.Fatalf("%s: want=%d got=%d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestUploadMediaLinksAssessment(t *testing.T) {
	svc := &fakeMediaService{}
	router := newTestRouter(&fakeAssessmentService{}, svc)
	assessmentID := primitive.NewObjectID()

	body, ct := multipartBody(t, map[string]string{"assessmentId": assessmentID.Hex()},
		part{"media", "pose.png", "image/png", []byte("p")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleUser, time.Now().Add(time.Hour)))

	rec := do(router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if svc.linked == nil || *svc.linked != assessmentID {
		t.Fatalf("assessment link: got=%v", svc.linked)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:3000"}))
	SetupRoutes(router, testSecret, &fakeAssessmentService{}, &fakeMediaService{}, 1<<20, logger.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/assessment/perform_one", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := do(router, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: want=204 got=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin: want=%q got=%q", "http://localhost:3000", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/assessment/perform_one", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	if rec := do(router, req); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign origin preflight: want=403 got=%d", rec.Code)
	}
}
