package recognition

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"
)

// sendMultipart posts the document as the "file" form field and returns the raw response body.
func sendMultipart(ctx context.Context, client *http.Client, url string, doc Document, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	name := doc.Name
	if name == "" {
		name = "invoice"
	}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", doc.MediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		logger.Error("recognition.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode multipart: %w", err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, 0, fmt.Errorf("encode multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, 0, fmt.Errorf("encode multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		logger.Error("recognition.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info("recognition.http.request",
		"req_id", reqID,
		"url", url,
		"content_length", body.Len(),
		"media_type", doc.MediaType,
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("recognition.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("recognition.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Info("recognition.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
