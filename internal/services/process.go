package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
)

const processPath string = "/api/process-video"

// ProcessService submits videos for processing.
type ProcessService struct {
	client *Client
}

// NewProcessService creates a submission client.
func NewProcessService(client *Client) *ProcessService {
	return &ProcessService{client: client}
}

// Process uploads candidate together with the expected labels and waits for the service's acknowledgment.
//
// The file is streamed; a failure while reading it aborts the request.
func (s *ProcessService) Process(ctx context.Context, candidate *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
	if candidate == nil {
		return nil, fmt.Errorf("%w: no file selected", shared.ErrValidation)
	}
	if expected.Len() == 0 {
		return nil, fmt.Errorf("%w: no expected labels", shared.ErrValidation)
	}

	suggested, err := json.Marshal(expected.Labels())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode labels: %v", shared.ErrValidation, err)
	}

	pr, pw := io.Pipe()
	defer pr.Close()

	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, candidate, suggested))
	}()

	req, err := s.client.newRequest(ctx, http.MethodPost, processPath, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.client.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var ack models.Acknowledgment
	if err := decode(resp, &ack); err != nil {
		return nil, err
	}
	if !ack.Success {
		msg := ack.Error
		if msg == "" {
			msg = "processing failed"
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrApplication, msg)
	}
	if ack.Filename == "" {
		return nil, fmt.Errorf("%w: acknowledgment is missing the artifact filename", shared.ErrApplication)
	}

	return &ack, nil
}

// writeForm writes the labels field and the video part, then closes the form.
func writeForm(form *multipart.Writer, candidate *models.UploadCandidate, suggested []byte) error {
	if err := form.WriteField("suggested_labels", string(suggested)); err != nil {
		return err
	}

	src, err := candidate.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", shared.ErrValidation, candidate.Name(), err)
	}
	defer src.Close()

	part, err := form.CreateFormFile("video", candidate.Name())
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to stream %s: %w", candidate.Name(), err)
	}

	return form.Close()
}
