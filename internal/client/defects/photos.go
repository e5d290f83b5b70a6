package defects

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrPermissionDenied is returned when a photo cannot be read for lack of
// access rights. It is shown as a blocking alert and not retried.
var ErrPermissionDenied = errors.New("photo access needed")

// MaxPhotoSize matches the upload limit of the backend.
const MaxPhotoSize = 20 << 20

// Photo is an image staged for upload.
type Photo struct {
	// Name is the source file name, used for the extension.
	Name        string
	ContentType string
	Data        []byte
}

// Ext returns the object name extension without the dot: the source file
// extension when it has one, else one matching the content type, else jpg.
func (p Photo) Ext() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p.Name)), "."); ext != "" {
		return ext
	}
	switch p.ContentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	}
	if exts, _ := mime.ExtensionsByType(p.ContentType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "jpg"
}

// FileSource picks photos from the local file system. It stands in for the
// camera and gallery pickers of a phone.
type FileSource struct{}

// Pick reads the image at path.
func (FileSource) Pick(path string) (Photo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Photo{}, pickError(path, err)
	}
	if info.IsDir() {
		return Photo{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxPhotoSize {
		return Photo{}, fmt.Errorf("%s is larger than %d MB", path, MaxPhotoSize>>20)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Photo{}, pickError(path, err)
	}
	if len(data) == 0 {
		return Photo{}, fmt.Errorf("%s is empty", path)
	}
	return Photo{
		Name:        filepath.Base(path),
		ContentType: contentType(path, data),
		Data:        data,
	}, nil
}

func pickError(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	}
	return fmt.Errorf("read photo: %w", err)
}

// contentType guesses from the extension first and sniffs the data otherwise.
func contentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		ct, _, _ = strings.Cut(ct, ";")
		return ct
	}
	ct, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return ct
}
