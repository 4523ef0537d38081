package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RemoteModel runs inference through an HTTP service. The service takes a
// multipart "file" plus an optional comma-separated "classes" field and
// answers {"detections": [{class_id, confidence, x1, y1, x2, y2}]}.
type RemoteModel struct {
	inferenceURL string
	client       *http.Client
}

func NewRemoteModel(inferenceURL string, timeout time.Duration) *RemoteModel {
	return &RemoteModel{
		inferenceURL: inferenceURL,
		client:       &http.Client{Timeout: timeout},
	}
}

// Infer sends img as PNG and decodes the returned detections.
func (m *RemoteModel) Infer(ctx context.Context, img image.Image, classIDs []int) ([]RawDetection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if len(classIDs) > 0 {
		ids := make([]string, len(classIDs))
		for i, id := range classIDs {
			ids[i] = strconv.Itoa(id)
		}
		if err := writer.WriteField("classes", strings.Join(ids, ",")); err != nil {
			return nil, fmt.Errorf("write classes field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Detections []RawDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Detections, nil
}

// CheckHealth probes <inferenceURL>/health.
func (m *RemoteModel) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(m.inferenceURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (m *RemoteModel) SupportsConcurrentInference() bool { return true }

func (m *RemoteModel) Close() error { return nil }
