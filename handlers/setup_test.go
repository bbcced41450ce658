package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"
	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
	"github.com/Topaz-Oz/Lience-Plate-Detect/plate"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/storage"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type stubRecognizer struct {
	reading *plate.Reading
	err     error
}

func (s *stubRecognizer) Recognize(context.Context, string) (*plate.Reading, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.reading
	return &r, nil
}

type testEnv struct {
	server     *httptest.Server
	auth       *services.AuthService
	store      *store.Memory
	registry   *services.Registry
	recognizer *stubRecognizer
	tempDir    string
	uploadDir  string
	userToken  string
	adminToken string
	userID     uint
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: "test-secret", ExpiryHours: 1},
		CORS:    config.CORSConfig{AllowedOrigins: "*"},
		WS:      config.WSConfig{PingIntervalMS: 30000, SendBuffer: 32},
		Uploads: config.UploadsConfig{Dir: t.TempDir(), TempDir: t.TempDir(), MaxBytes: 1 << 20},
		Storage: config.StorageConfig{Backend: "local"},
	}
	auth := services.NewAuthService(cfg.JWT)
	mem := store.NewMemory()
	registry := services.NewRegistry()
	rec := &stubRecognizer{reading: &plate.Reading{PlateNumber: "30A-12345", Confidence: 0.93, VehicleType: "car", Province: "Hà Nội"}}
	images, err := storage.NewLocal(cfg.Uploads.Dir, "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	router := SetupRouter(Deps{
		Config:       cfg,
		Auth:         auth,
		Users:        mem,
		Detections:   mem,
		Orchestrator: services.NewOrchestrator(rec, mem, services.NewNotifier(registry), cfg.Uploads.TempDir),
		Registry:     registry,
		Cache:        services.NewDisabledCache(),
		Images:       images,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	env := &testEnv{server: srv, auth: auth, store: mem, registry: registry, recognizer: rec, tempDir: cfg.Uploads.TempDir, uploadDir: cfg.Uploads.Dir}
	user := &models.User{Email: "user@example.com", Password: "x"}
	admin := &models.User{Email: "admin@example.com", Password: "x", Role: "admin"}
	mem.CreateUser(context.Background(), user)
	mem.CreateUser(context.Background(), admin)
	env.userID = user.ID
	env.userToken, _ = auth.GenerateToken(user.ID, user.Email, user.Role)
	env.adminToken, _ = auth.GenerateToken(admin.ID, admin.Email, admin.Role)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, v any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, _ := json.Marshal(v)
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, token, body, "application/json")
}

func (e *testEnv) upload(t *testing.T, token string, fields map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "car.jpg")
	fw.Write([]byte("fake jpeg bytes"))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return e.do(t, http.MethodPost, "/detection/upload", token, &buf, mw.FormDataContentType())
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	welcome := readMessage(t, conn)
	if welcome["type"] != "connection" {
		t.Fatalf("first message = %v, want connection welcome", welcome)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message %s: %v", data, err)
	}
	return msg
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("invalid JSON %s: %v", data, err)
	}
	return v
}
