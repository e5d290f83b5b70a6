package backend

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sitebatch/maintenance/internal/models"
)

// maxErrorBody bounds how much of an error answer is read.
const maxErrorBody = 4 << 10

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// known lists the sentinels the backend reports by message.
var known = []error{
	models.ErrDefectLocked,
	models.ErrInvalidCredentials,
	models.ErrEmailNotConfirmed,
	models.ErrUserExists,
	models.ErrInvalidToken,
	models.ErrObjectExists,
	models.ErrNotFound,
	models.ErrInvalidInput,
}

// Unwrap returns the shared sentinel named by the message, so callers can
// use errors.Is(err, models.ErrDefectLocked) and the like.
func (e *APIError) Unwrap() error {
	for _, s := range known {
		if strings.Contains(e.Message, s.Error()) {
			return s
		}
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
