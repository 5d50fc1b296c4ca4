// File: internal/report/images.go
package report

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"strings"

	"waste_portal_backend/internal/common"

	"github.com/gabriel-vasile/mimetype"
)

// ImageUpload is one candidate image. Size is the full size even when Data was
// truncated because the file is over the limit.
type ImageUpload struct {
	Name string
	Size int64
	Data []byte
}

// ImageVerdict is the per-file outcome of ImagePolicy.Check.
type ImageVerdict struct {
	Index       int    `json:"index"`
	Name        string `json:"name,omitempty"`
	Accepted    bool   `json:"accepted"`
	Code        string `json:"code,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Extension   string `json:"-"`
}

// ImagePolicy caps the image count per report and the size of each image.
type ImagePolicy struct {
	MaxImages int
	MaxBytes  int64
}

// Check validates a batch against existing images already attached. The whole
// batch is rejected when any file fails; the error carries every verdict.
func (p ImagePolicy) Check(existing int, uploads []ImageUpload) ([]ImageVerdict, error) {
	verdicts := make([]ImageVerdict, len(uploads))
	var first *common.APIError
	for i, u := range uploads {
		v := ImageVerdict{Index: i, Name: u.Name}
		switch {
		case existing+i+1 > p.MaxImages:
			v.Code = common.ErrImageLimitExceeded.Code
		case u.Size > p.MaxBytes:
			v.Code = common.ErrImageTooLarge.Code
		default:
			mime := mimetype.Detect(u.Data)
			v.ContentType = mime.String()
			v.Extension = mime.Extension()
			if !strings.HasPrefix(mime.String(), "image/") {
				v.Code = common.ErrImageTypeInvalid.Code
			}
		}
		v.Accepted = v.Code == ""
		if !v.Accepted && first == nil {
			first = imageError(v.Code)
		}
		verdicts[i] = v
	}
	if first != nil {
		return verdicts, first.WithDetails(map[string]interface{}{
			"max_images":     p.MaxImages,
			"max_file_bytes": p.MaxBytes,
			"existing":       existing,
			"files":          verdicts,
		})
	}
	return verdicts, nil
}

func imageError(code string) *common.APIError {
	switch code {
	case common.ErrImageLimitExceeded.Code:
		return common.ErrImageLimitExceeded
	case common.ErrImageTooLarge.Code:
		return common.ErrImageTooLarge
	default:
		return common.ErrImageTypeInvalid
	}
}

// ReadMultipartImage reads at most maxBytes+1 bytes so oversized files are
// detected without buffering them whole.
func ReadMultipartImage(fh *multipart.FileHeader, maxBytes int64) (ImageUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return ImageUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return ImageUpload{}, err
	}
	size := fh.Size
	if int64(len(data)) > size {
		size = int64(len(data))
	}
	return ImageUpload{Name: fh.Filename, Size: size, Data: data}, nil
}

// DecodeDataURL turns "data:<mime>;base64,<payload>" into an upload. Malformed input
// yields an empty upload, which the policy rejects as an invalid type.
func DecodeDataURL(name, raw string, maxBytes int64) ImageUpload {
	u := ImageUpload{Name: name}
	if !strings.HasPrefix(raw, "data:") {
		return u
	}
	header, payload, ok := strings.Cut(raw, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return u
	}
	// Skip decoding payloads that are clearly over the limit.
	if estimate := int64(base64.StdEncoding.DecodedLen(len(payload))); estimate > maxBytes+3 {
		u.Size = estimate
		return u
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return u
	}
	u.Size = int64(len(data))
	u.Data = data
	return u
}
