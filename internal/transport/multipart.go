// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/ManuGH/posereview/internal/videofile"
)

// errSizeMismatch is reported when file content does not match its declared size.
var errSizeMismatch = errors.New("file content does not match declared size")

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody is a single-part multipart/form-data body with known length.
type multipartBody struct {
	contentType string
	length      int64
	reader      io.Reader
	closer      io.Closer
}

// newMultipartBody streams file as the only part named field. The file is
// opened here; callers must close the body.
func newMultipartBody(field string, file videofile.File) (*multipartBody, error) {
	var head bytes.Buffer
	w := multipart.NewWriter(&head)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name)))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	if _, err := w.CreatePart(h); err != nil {
		return nil, fmt.Errorf("build multipart header: %w", err)
	}
	tail := "\r\n--" + w.Boundary() + "--\r\n"

	content, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}

	return &multipartBody{
		contentType: w.FormDataContentType(),
		length:      int64(head.Len()) + file.Size + int64(len(tail)),
		reader: io.MultiReader(
			bytes.NewReader(head.Bytes()),
			&exactReader{r: content, remaining: file.Size},
			strings.NewReader(tail),
		),
		closer: content,
	}, nil
}

func (b *multipartBody) Close() error {
	return b.closer.Close()
}

// exactReader yields exactly remaining bytes or fails.
type exactReader struct {
	r         io.Reader
	remaining int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}
	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	if errors.Is(err, io.EOF) {
		if e.remaining > 0 {
			return n, errSizeMismatch
		}
		err = nil
	}
	if err == nil && e.remaining == 0 {
		return n, io.EOF
	}
	return n, err
}
