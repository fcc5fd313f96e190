package reid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/prasdika/temukan/internal/domain/analysis"
)

const defaultTimeout = 5 * time.Minute

// Client talks to the external person re-identification service. One call is
// one attempt; no retry here.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze ships the reference image and footage as a single multipart request
// and decodes the engine's JSON answer. The raw body comes back alongside the
// decoded result so callers can persist it verbatim.
func (c *Client) Analyze(ctx context.Context, refImage, video io.Reader, threshold float64, topN int) (analysis.Result, []byte, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// stream kedua payload, jangan buffer video di memory
	go func() {
		err := writeAnalyzeForm(mw, refImage, video, threshold, topN)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", pr)
	if err != nil {
		return analysis.Result{}, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analysis.Result{}, nil, fmt.Errorf("%w: %v", analysis.ErrServiceUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return analysis.Result{}, nil, fmt.Errorf("%w: reading response: %v", analysis.ErrServiceUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// error body is surfaced verbatim for diagnostics
		return analysis.Result{}, nil, &analysis.ServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var res analysis.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return analysis.Result{}, nil, fmt.Errorf("%w: %v", analysis.ErrMalformedResponse, err)
	}
	// the engine reports internal failures inside a 200 body
	if strings.EqualFold(res.Status, "error") {
		return analysis.Result{}, nil, &analysis.ServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return res, raw, nil
}

// Health mirrors the engine's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", analysis.ErrServiceUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.New("re-id service unhealthy: HTTP " + strconv.Itoa(resp.StatusCode))
	}
	return nil
}

func writeAnalyzeForm(mw *multipart.Writer, refImage, video io.Reader, threshold float64, topN int) error {
	// the engine rejects file parts without an image/* resp. video/* content type
	part, err := createFilePart(mw, "reference_image", "ref.jpg", "image/jpeg")
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, refImage); err != nil {
		return fmt.Errorf("copy reference image: %w", err)
	}

	part, err = createFilePart(mw, "video", "video.mp4", "video/mp4")
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, video); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}

	if err := mw.WriteField("threshold", strconv.FormatFloat(threshold, 'f', 2, 64)); err != nil {
		return err
	}
	return mw.WriteField("top_n", strconv.Itoa(topN))
}

func createFilePart(mw *multipart.Writer, field, filename, contentType string) (io.Writer, error) {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	return mw.CreatePart(h)
}
