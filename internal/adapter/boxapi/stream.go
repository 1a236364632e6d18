package boxapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
	"github.com/vertextoedge/cloudbox/internal/transfer"
)

// sniffLen is the number of leading bytes used to detect the content type
const sniffLen = 3072

func uploadTotal(o *port.UploadOptions) int64 {
	if o == nil || o.Size <= 0 {
		return transfer.UnknownTotal
	}
	return o.Size
}

func uploadProgress(o *port.UploadOptions) transfer.ProgressFunc {
	if o == nil {
		return nil
	}
	return o.Progress
}

func modifiedAt(o *port.UploadOptions) string {
	if o == nil || o.ContentModifiedAt == nil {
		return ""
	}
	return o.ContentModifiedAt.UTC().Format(time.RFC3339)
}

// download streams the content at urlStr into w
func (c *Client) download(ctx context.Context, urlStr string, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		req, err := c.newRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "*/*")

		resp, err := c.transferClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("download request failed: %w", err)
		}

		// 202 means the content is not ready yet
		if resp.StatusCode == http.StatusAccepted && attempt < c.maxRetries {
			resp.Body.Close()
			delay := c.backoff(attempt, parseRetryAfter(resp))
			c.logger.Debug("content not ready, retrying",
				zap.String("url", urlStr),
				zap.Duration("delay", delay))
			if err := sleepContext(ctx, delay); err != nil {
				return 0, err
			}
			continue
		}

		return c.copyBody(resp, w, progress)
	}
}

func (c *Client) copyBody(resp *http.Response, w io.Writer, progress transfer.ProgressFunc) (int64, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}

	total := resp.ContentLength
	if total < 0 {
		total = transfer.UnknownTotal
	}

	written, err := c.executor.Copy(w, resp.Body, total, progress)
	if err != nil {
		return written, fmt.Errorf("download: %w", err)
	}

	c.logger.Debug("download complete",
		zap.Int64("bytes", written),
		zap.Int64("content_length", resp.ContentLength))

	return written, nil
}

// upload streams a multipart upload of r to urlStr and returns the stored file
func (c *Client) upload(ctx context.Context, urlStr string, attrs uploadAttributes, filename string, r io.Reader, opts *port.UploadOptions) (*domain.File, error) {
	attrJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	src := bufio.NewReaderSize(r, sniffLen)
	// A short or failing peek is fine here; the copy reports read errors
	head, _ := src.Peek(sniffLen)
	contentType := mimetype.Detect(head).String()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	errc := make(chan error, 1)
	go func() {
		err := c.writeMultipart(mw, attrJSON, filename, contentType, src, opts)
		pw.CloseWithError(err)
		errc <- err
	}()

	req, err := c.newRequest(ctx, http.MethodPost, urlStr, pr)
	if err != nil {
		pr.Close()
		<-errc
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.transferClient.Do(req)
	pr.Close()
	writeErr := <-errc

	// A failure on the source side is the root cause even when the server
	// managed to answer
	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		if err == nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("upload: %w", writeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	if writeErr != nil {
		return nil, fmt.Errorf("upload: %w", writeErr)
	}

	var result fileCollection
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("upload response contained no file")
	}

	file := result.Entries[0]
	c.logger.Debug("upload complete",
		zap.String("file_id", file.ID),
		zap.String("name", file.Name),
		zap.Int64("size", file.Size),
		zap.String("content_type", contentType))

	return &file, nil
}

// writeMultipart writes the attributes part followed by the file part.
// The attributes part must come first.
func (c *Client) writeMultipart(mw *multipart.Writer, attrJSON []byte, filename, contentType string, src io.Reader, opts *port.UploadOptions) error {
	if err := mw.WriteField("attributes", string(attrJSON)); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	if _, err := c.executor.Copy(part, src, uploadTotal(opts), uploadProgress(opts)); err != nil {
		return err
	}

	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
