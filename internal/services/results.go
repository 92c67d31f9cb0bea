package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
)

const (
	latestPath string = "/api/latest-video"
	allPath    string = "/api/all-videos"
)

// ResultService retrieves processed artifacts.
type ResultService struct {
	client *Client
}

// NewResultService creates a retrieval client.
func NewResultService(client *Client) *ResultService {
	return &ResultService{client: client}
}

type artifactBody struct {
	Success        *bool       `json:"success"`
	Error          string      `json:"error"`
	Filename       string      `json:"filename"`
	VideoURL       string      `json:"video_url"`
	DetectedLabels *labels.Set `json:"detected_labels"`
}

func (b artifactBody) artifact() *models.Artifact {
	detected := b.DetectedLabels
	if detected == nil {
		detected = labels.NewSet()
	}
	return &models.Artifact{ID: b.Filename, URL: b.VideoURL, DetectedLabels: detected}
}

// FetchLatest returns the most recent artifact, or nil when the service has none.
func (s *ResultService) FetchLatest(ctx context.Context) (*models.Artifact, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, latestPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var body artifactBody
	if err := decode(resp, &body); err != nil {
		return nil, err
	}
	if (body.Success != nil && !*body.Success) || body.Filename == "" {
		return nil, nil
	}

	return body.artifact(), nil
}

// ListAll returns every processed artifact the service holds, newest first.
// When the service holds none the result is empty and the error nil.
func (s *ResultService) ListAll(ctx context.Context) ([]*models.Artifact, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, allPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var body struct {
		Success *bool          `json:"success"`
		Error   string         `json:"error"`
		Videos  []artifactBody `json:"videos"`
	}
	if err := decode(resp, &body); err != nil {
		return nil, err
	}
	if body.Success != nil && !*body.Success {
		// An empty listing is reported as success:false without an error message.
		if body.Error == "" {
			return []*models.Artifact{}, nil
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrApplication, body.Error)
	}

	artifacts := make([]*models.Artifact, 0, len(body.Videos))
	for _, v := range body.Videos {
		if v.Filename == "" {
			continue
		}
		artifacts = append(artifacts, v.artifact())
	}
	return artifacts, nil
}

// PlaybackReference returns the location a player should load for artifactID.
//
// Identifiers that are already paths (leading "/") or absolute URLs are returned unchanged.
func (s *ResultService) PlaybackReference(artifactID string) string {
	if strings.HasPrefix(artifactID, "/") {
		return artifactID
	}
	if u, err := url.Parse(artifactID); err == nil && u.IsAbs() {
		return artifactID
	}
	return s.client.BaseURL() + s.client.processedPath + url.PathEscape(artifactID)
}

// AbsoluteReference resolves a playback reference against the service base URL so it can be
// opened outside the service. Absolute URLs are returned unchanged.
func (s *ResultService) AbsoluteReference(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return s.client.BaseURL() + ref
	}
	return ref
}

// Download saves the artifact's bytes into dir and returns the written path.
//
// The content is written to a temporary file and renamed into place once complete,
// so a failed download never leaves a partial file behind.
func (s *ResultService) Download(ctx context.Context, artifactID, dir string) (string, error) {
	if artifactID == "" {
		return "", fmt.Errorf("%w: %w", shared.ErrValidation, shared.ErrNoArtifact)
	}
	if dir == "" {
		dir = "."
	}

	req, err := s.client.newRequest(ctx, http.MethodGet, s.PlaybackReference(artifactID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := s.client.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".signx-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: download interrupted: %v", shared.ErrTransport, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to flush download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close download: %w", err)
	}

	dest := filepath.Join(dir, artifactFileName(artifactID))
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to save download: %w", err)
	}

	return dest, nil
}

// artifactFileName derives a local file name from an identifier, path or URL.
func artifactFileName(artifactID string) string {
	p := artifactID
	if u, err := url.Parse(artifactID); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "artifact.mp4"
	}
	return filepath.Base(name)
}
