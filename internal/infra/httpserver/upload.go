package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/sketch2sys/internal/application/upload"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	"github.com/bryanwahyu/sketch2sys/internal/infra/ai/prompt"
	"github.com/bryanwahyu/sketch2sys/internal/middleware"
)

// readUpload reads the multipart "file" part and the selection source
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request) (*sketch.File, upload.Source, error) {
	if req.ContentLength > r.maxBytes+(1<<20) {
		return nil, "", &http.MaxBytesError{Limit: r.maxBytes}
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBytes+(1<<20))
	if err := req.ParseMultipartForm(r.maxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", err
		}
		return nil, "", badRequest("invalid multipart upload")
	}

	part, header, err := req.FormFile("file")
	if err != nil {
		return nil, "", badRequest("file is required")
	}
	defer part.Close()

	file, err := r.readPart(part, header)
	if err != nil {
		return nil, "", err
	}
	return file, upload.ParseSource(req.FormValue("source")), nil
}

func (r *Router) readPart(part multipart.File, header *multipart.FileHeader) (*sketch.File, error) {
	if header.Size > r.maxBytes {
		return nil, &http.MaxBytesError{Limit: r.maxBytes}
	}
	data, err := io.ReadAll(io.LimitReader(part, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, &http.MaxBytesError{Limit: r.maxBytes}
	}
	return &sketch.File{
		ID:        sketch.FileID(uuid.New().String()),
		Name:      middleware.SanitizeString(filepath.Base(header.Filename)),
		MediaType: middleware.NormalizeMediaType(header.Header.Get("Content-Type")),
		Size:      int64(len(data)),
		Data:      data,
	}, nil
}

// readAPIImage accepts multipart "file" or JSON {image, mimeType, name}; image is
// raw base64 or a data URL.
func (r *Router) readAPIImage(w http.ResponseWriter, req *http.Request) (*sketch.File, error) {
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.readUpload(w, req)
		return file, err
	}

	// base64 grows the payload by a third
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBytes*4/3+(1<<20))
	var body struct {
		Image    string `json:"image"`
		MimeType string `json:"mimeType"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, badRequest("invalid JSON body")
	}
	if strings.TrimSpace(body.Image) == "" {
		return nil, badRequest("image is required")
	}

	data, mt, err := prompt.DecodeImage(body.Image)
	if err != nil {
		return nil, badRequest(err.Error())
	}
	if int64(len(data)) > r.maxBytes {
		return nil, &http.MaxBytesError{Limit: r.maxBytes}
	}
	if mt == "" {
		mt = body.MimeType
	}
	name := middleware.SanitizeString(body.Name)
	if name == "" {
		name = "sketch"
	}
	return &sketch.File{
		ID:        sketch.FileID(uuid.New().String()),
		Name:      name,
		MediaType: middleware.NormalizeMediaType(mt),
		Size:      int64(len(data)),
		Data:      data,
	}, nil
}
