package directory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadAttachment sends one file to a task as multipart form data. The
// caller is responsible for size validation; the directory enforces its own
// caps server-side as well.
func (c *Client) UploadAttachment(ctx context.Context, taskID, filename string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return &UpstreamError{Op: "upload attachment", Message: err.Error()}
	}
	if _, err := part.Write(data); err != nil {
		return &UpstreamError{Op: "upload attachment", Message: err.Error()}
	}
	if err := writer.Close(); err != nil {
		return &UpstreamError{Op: "upload attachment", Message: err.Error()}
	}

	url := c.baseURL + "/tasks/" + taskID + "/attachments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return &UpstreamError{Op: "upload attachment", Message: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return &UpstreamError{Op: "upload attachment", Message: fmt.Sprintf("auth: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: "upload attachment", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &UpstreamError{Op: "upload attachment", Status: resp.StatusCode, Message: upstreamMessage(raw)}
	}
	return nil
}
