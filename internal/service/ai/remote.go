package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"objectscanner/internal/apperror"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
)

const (
	uploadField       = "image"
	uploadFilename    = "image.jpg"
	uploadContentType = "image/jpeg"
)

// RemoteIdentifier delegates identification to an HTTP vision API.
// Each call is exactly one POST with no retry.
type RemoteIdentifier struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

// NewRemoteIdentifier creates an identifier posting to endpoint. A nil
// client uses http.DefaultClient.
func NewRemoteIdentifier(endpoint string, client *http.Client, logger *logger.Logger) *RemoteIdentifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteIdentifier{
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}
}

type itemResponse struct {
	ItemName    *string `json:"itemname"`
	Description *string `json:"description"`
}

// Identify implements Identifier.
func (s *RemoteIdentifier) Identify(ctx context.Context, imageURI string) ([]model.Detection, error) {
	path, err := statImage(imageURI)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperror.ErrFileNotFound, path)
	}

	body, contentType, err := multipartImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: build upload: %v", apperror.ErrNetworkOrServer, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperror.ErrNetworkOrServer, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrNetworkOrServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &apperror.StatusError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
		}
	}

	var parsed itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: response body: %v", apperror.ErrDecodeFailed, err)
	}
	if parsed.ItemName == nil || parsed.Description == nil {
		return nil, fmt.Errorf("%w: response is missing itemname or description", apperror.ErrDecodeFailed)
	}

	if s.logger != nil {
		s.logger.Info("Remote identification of %s returned %q", path, *parsed.ItemName)
	}

	return []model.Detection{model.ItemDetection{
		ItemName:    *parsed.ItemName,
		Description: *parsed.Description,
	}}, nil
}

// multipartImage encodes data as the single "image" part of a multipart form.
func multipartImage(data []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFilename))
	header.Set("Content-Type", uploadContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
