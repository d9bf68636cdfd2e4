package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/hitoshi/shequ/internal/model"
)

// uploadFieldName はアップロードするファイルのフォームフィールド名。
const uploadFieldName = "file"

// Upload は単一ファイルをmultipart/form-dataで送信し、保存先URLを返す。
// JSONのContent-Typeは付与せず、multipart.Writerが生成する境界付きの値を使う。
// サーバーの応答はdata.fileUrlとdata.urlのどちらの場合もあるため、両方を試す。
func (c *Client) Upload(ctx context.Context, endpoint, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(uploadFieldName, filepath.Base(filename))
	if err != nil {
		return "", c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   http.MethodPost,
			Message:  "failed to build upload form",
			Err:      err,
		})
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   http.MethodPost,
			Message:  "failed to read upload file",
			Err:      err,
		})
	}
	if err := w.Close(); err != nil {
		return "", c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   http.MethodPost,
			Message:  "failed to build upload form",
			Err:      err,
		})
	}

	req, hadToken, err := c.newRequest(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := c.do(req, endpoint, hadToken)
	if err != nil {
		return "", err
	}

	url := res.Get("data.fileUrl").String()
	if url == "" {
		url = res.Get("data.url").String()
	}
	if url == "" {
		return "", c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   http.MethodPost,
			Message:  "upload response did not contain a file URL",
			Err:      fmt.Errorf("%w: missing data.fileUrl and data.url", model.ErrInvalidResponse),
		})
	}

	return url, nil
}
