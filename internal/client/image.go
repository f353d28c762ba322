package client

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/don-licenciao/MapyChat-web/internal/coerce"
	"github.com/don-licenciao/MapyChat-web/internal/model"
)

// QueuedImage is an attachment waiting to be sent. Either Data (with a PNG
// or JPEG MediaType) or URL is set.
type QueuedImage struct {
	Name      string
	MediaType string
	Data      []byte
	URL       string
	Detail    model.Detail
}

// LoadImage reads path and sniffs its media type.
func LoadImage(path string, detail model.Detail) (QueuedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QueuedImage{}, fmt.Errorf("read image: %w", err)
	}
	return QueuedImage{
		Name:      filepath.Base(path),
		MediaType: http.DetectContentType(data),
		Data:      data,
		Detail:    detail,
	}, nil
}

// Part validates the image against the same rules the proxy applies.
func (q QueuedImage) Part(maxBytes int) (model.ImagePart, error) {
	url := q.URL
	if url == "" {
		switch q.MediaType {
		case "image/png", "image/jpeg":
		default:
			return model.ImagePart{}, fmt.Errorf("%s: unsupported image type %q", q.Name, q.MediaType)
		}
		url = "data:" + q.MediaType + ";base64," + base64.StdEncoding.EncodeToString(q.Data)
	}

	if err := coerce.ValidateImageURL(url, maxBytes); err != nil {
		return model.ImagePart{}, fmt.Errorf("%s: %w", q.Name, err)
	}
	return model.ImagePart{URL: url, Detail: model.ParseDetail(string(q.Detail))}, nil
}
