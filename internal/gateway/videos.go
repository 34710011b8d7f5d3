package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/v2t/web/internal/models"
)

const maxExportBytes = 64 << 20

// Export is a downloaded results file.
type Export struct {
	ContentType string
	Data        []byte
}

// ListOptions filters /video/list.
type ListOptions struct {
	Skip   int
	Limit  int
	Status string
}

// Upload streams r to the backend as the multipart field "file".
func (a *AuthedClient) Upload(ctx context.Context, filename, contentType string, r io.Reader) (models.VideoUpload, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.endpoint("/video/upload", nil), pr)
	if err != nil {
		pr.Close()
		return models.VideoUpload{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	if req, err = authorize(a.token, req); err != nil {
		pr.Close()
		return models.VideoUpload{}, err
	}

	go func() {
		part, err := mw.CreatePart(filePartHeader(filename, contentType))
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var resp models.VideoUpload
	if err := a.client.do(a.client.upload, "gateway.upload", req, decodeInto(&resp)); err != nil {
		pr.CloseWithError(err)
		return models.VideoUpload{}, err
	}
	return resp, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(filename, contentType string) textproto.MIMEHeader {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}

// Status fetches the current state of a processing job.
func (a *AuthedClient) Status(ctx context.Context, videoID string) (models.VideoStatus, error) {
	var status models.VideoStatus
	err := a.getJSON(ctx, "gateway.status", "/video/status/"+url.PathEscape(videoID), nil, &status)
	return status, err
}

// Results fetches the finished output of a job.
func (a *AuthedClient) Results(ctx context.Context, videoID string) (models.VideoResults, error) {
	var results models.VideoResults
	err := a.getJSON(ctx, "gateway.results", "/video/results/"+url.PathEscape(videoID), nil, &results)
	return results, err
}

// List enumerates the caller's jobs.
func (a *AuthedClient) List(ctx context.Context, opts ListOptions) (models.VideoList, error) {
	query := url.Values{}
	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != "" {
		query.Set("status_filter", opts.Status)
	}

	var list models.VideoList
	err := a.getJSON(ctx, "gateway.list", "/video/list", query, &list)
	return list, err
}

// Export downloads the results of a job rendered in format.
func (a *AuthedClient) Export(ctx context.Context, videoID, format string) (Export, error) {
	path := "/video/export/" + url.PathEscape(videoID) + "/" + url.PathEscape(format)
	req, err := a.client.newJSONRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return Export{}, err
	}
	req.Header.Set("Accept", "*/*")
	if req, err = authorize(a.token, req); err != nil {
		return Export{}, err
	}

	var export Export
	err = a.client.do(a.client.http, "gateway.export", req, func(resp *http.Response) error {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes+1))
		if err != nil {
			return fmt.Errorf("read export body: %w", err)
		}
		if len(data) > maxExportBytes {
			return fmt.Errorf("export exceeds %d bytes", maxExportBytes)
		}
		export = Export{ContentType: resp.Header.Get("Content-Type"), Data: data}
		return nil
	})
	if err != nil {
		return Export{}, err
	}
	return export, nil
}

// Delete removes a job and its data.
func (a *AuthedClient) Delete(ctx context.Context, videoID string) error {
	req, err := a.client.newJSONRequest(ctx, http.MethodDelete, "/video/delete/"+url.PathEscape(videoID), nil, nil)
	if err != nil {
		return err
	}
	if req, err = authorize(a.token, req); err != nil {
		return err
	}
	return a.client.do(a.client.http, "gateway.delete", req, nil)
}

func (a *AuthedClient) getJSON(ctx context.Context, name, path string, query url.Values, out any) error {
	req, err := a.client.newJSONRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if req, err = authorize(a.token, req); err != nil {
		return err
	}
	return a.client.do(a.client.http, name, req, decodeInto(out))
}
