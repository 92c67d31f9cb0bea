package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
)

func writeCandidate(t *testing.T, content string) *models.UploadCandidate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drive.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := models.NewFileCandidate(path)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestProcessService(t *testing.T) {
	t.Run("Multipart Submission", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/process-video" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("failed to parse form: %v", err)
				return
			}

			var suggested []string
			if err := json.Unmarshal([]byte(r.FormValue("suggested_labels")), &suggested); err != nil {
				t.Errorf("suggested_labels is not a JSON array: %v", err)
			}
			if len(suggested) != 2 || suggested[0] != "Stop" || suggested[1] != "Yield" {
				t.Errorf("unexpected suggested labels %v", suggested)
			}

			file, header, err := r.FormFile("video")
			if err != nil {
				t.Errorf("missing video part: %v", err)
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			if header.Filename != "drive.mp4" || string(data) != "frames" {
				t.Errorf("unexpected video part %s %q", header.Filename, data)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"success":         true,
				"filename":        "processed_video_3.mp4",
				"video_number":    3,
				"detected_labels": []string{"Stop", "Speed Limit 50"},
			})
		}))
		defer server.Close()

		svc := NewProcessService(newTestClient(t, server.URL))
		ack, err := svc.Process(context.Background(), writeCandidate(t, "frames"), labels.NewSet("Stop", "Yield"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ack.Filename != "processed_video_3.mp4" || ack.VideoNumber != 3 {
			t.Errorf("unexpected acknowledgment %+v", ack)
		}
		if !ack.DetectedLabels.Equal(labels.NewSet("Speed Limit 50", "Stop")) {
			t.Errorf("unexpected detected labels %v", ack.DetectedLabels)
		}
	})

	t.Run("Failures", func(t *testing.T) {
		tests := []struct {
			name    string
			status  int
			body    string
			wantErr error
		}{
			{name: "Application Failure", status: http.StatusOK, body: `{"success":false,"error":"No video file provided"}`, wantErr: shared.ErrApplication},
			{name: "Error Status With Message", status: http.StatusBadRequest, body: `{"error":"bad labels"}`, wantErr: shared.ErrApplication},
			{name: "Server Error", status: http.StatusInternalServerError, body: `oops`, wantErr: shared.ErrTransport},
			{name: "Unavailable", status: http.StatusServiceUnavailable, body: ``, wantErr: shared.ErrServiceUnavailable},
			{name: "Malformed Body", status: http.StatusOK, body: `{`, wantErr: shared.ErrTransport},
			{name: "Missing Filename", status: http.StatusOK, body: `{"success":true}`, wantErr: shared.ErrApplication},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					io.Copy(io.Discard, r.Body)
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}))
				defer server.Close()

				svc := NewProcessService(newTestClient(t, server.URL))
				_, err := svc.Process(context.Background(), writeCandidate(t, "x"), labels.NewSet("Stop"))
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})

	t.Run("Validation", func(t *testing.T) {
		svc := NewProcessService(newTestClient(t, "http://example.com"))
		if _, err := svc.Process(context.Background(), nil, labels.NewSet("Stop")); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation without a candidate, got %v", err)
		}
		if _, err := svc.Process(context.Background(), writeCandidate(t, "x"), labels.NewSet()); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation without labels, got %v", err)
		}
	})

	t.Run("Unreachable Service", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		svc := NewProcessService(newTestClient(t, url))
		if _, err := svc.Process(context.Background(), writeCandidate(t, "x"), labels.NewSet("Stop")); !errors.Is(err, shared.ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
	})
}
