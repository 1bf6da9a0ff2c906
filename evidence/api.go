package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/testwise/runcore/lib"
)

// NoLogsMessage is attached as the run log when neither stdout nor stderr
// produced anything.
const NoLogsMessage = "The test run did not produce any output."

// ActionsResponse is the payload of a testcase's recorded actions fetch.
type ActionsResponse struct {
	Actions   []lib.Action             `json:"actions"`
	BasicAuth *lib.BasicAuthentication `json:"basic_auth"`
}

// FetchActions retrieves the recorded actions and basic-auth record of a
// testcase. Every encrypted field in the payload is still encrypted.
func (c *Client) FetchActions(ctx context.Context, testcaseID string) (*ActionsResponse, error) {
	url := fmt.Sprintf("%s/testcases/%s/actions", c.baseURL, testcaseID)
	req, err := c.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var resp ActionsResponse
	if err := c.Do(req, &resp); err != nil {
		return nil, fmt.Errorf("fetching actions for testcase %s: %w", testcaseID, err)
	}
	return &resp, nil
}

// FetchFileContent retrieves a stored upload's content by its server path.
// The returned string is the base64 transport form.
func (c *Client) FetchFileContent(ctx context.Context, serverPath string) (string, error) {
	url := fmt.Sprintf("%s/files/content", c.baseURL)
	req, err := c.NewRequest(ctx, http.MethodPost, url, map[string]string{"file_path": serverPath})
	if err != nil {
		return "", err
	}

	var resp struct {
		FileContent string `json:"file_content"`
	}
	if err := c.Do(req, &resp); err != nil {
		return "", fmt.Errorf("fetching file %q: %w", serverPath, err)
	}
	return resp.FileContent, nil
}

// UpdateStatus transitions the remote evidence record to the given status
// without touching its artifacts.
func (c *Client) UpdateStatus(ctx context.Context, evidenceID string, status Status) error {
	url := fmt.Sprintf("%s/evidences/%s/status", c.baseURL, evidenceID)
	req, err := c.NewRequest(ctx, http.MethodPut, url, map[string]string{"status": status.String()})
	if err != nil {
		return err
	}
	if err := c.Do(req, nil); err != nil {
		return fmt.Errorf("updating evidence %s to %s: %w", evidenceID, status, err)
	}
	return nil
}

// Artifacts is the set of collected on-disk evidence files for one run.
type Artifacts struct {
	VideoPath           string
	ImagePaths          []string
	DatabaseExportPaths []string
	APIExportPaths      []string
}

// UpdateWithResults reconciles a terminal status plus every collected
// artifact onto the remote evidence record in one multipart update. The
// synthesized log file is always attached; artifact files that cannot be
// read are logged and skipped rather than aborting the update.
func (c *Client) UpdateWithResults(
	ctx context.Context, evidenceID string, status Status, logs string, arts Artifacts,
) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("evidence_id", evidenceID); err != nil {
		return err
	}
	if err := mw.WriteField("status", status.String()); err != nil {
		return err
	}

	if strings.TrimSpace(logs) == "" {
		logs = NoLogsMessage
	}
	logPart, err := createPart(mw, "log_file", "execution.log", "text/plain")
	if err != nil {
		return err
	}
	if _, err := logPart.Write([]byte(logs)); err != nil {
		return err
	}

	if arts.VideoPath != "" {
		c.attachFile(mw, "video_file", arts.VideoPath)
	}
	for _, p := range arts.ImagePaths {
		c.attachFile(mw, "image_files", p)
	}
	for _, p := range arts.DatabaseExportPaths {
		c.attachFile(mw, "database_files", p)
	}
	for _, p := range arts.APIExportPaths {
		c.attachFile(mw, "api_files", p)
	}

	if err := mw.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/evidences/%s", c.baseURL, evidenceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if err := c.Do(req, nil); err != nil {
		return fmt.Errorf("updating evidence %s with results: %w", evidenceID, err)
	}
	return nil
}

// attachFile loads path through the client's filesystem and adds it as a
// multipart file part. Failure to load one artifact never aborts the whole
// update.
func (c *Client) attachFile(mw *multipart.Writer, field, path string) {
	content, err := afero.ReadFile(c.fs, path)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).
			Warn("skipping unreadable artifact")
		return
	}
	part, err := createPart(mw, field, filepath.Base(path), contentTypeFor(path))
	if err != nil {
		c.logger.WithError(err).WithField("path", path).
			Warn("skipping artifact, multipart part failed")
		return
	}
	if _, err := part.Write(content); err != nil {
		c.logger.WithError(err).WithField("path", path).
			Warn("skipping artifact, write failed")
	}
}

func createPart(mw *multipart.Writer, field, filename, contentType string) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	return mw.CreatePart(h)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".log", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
