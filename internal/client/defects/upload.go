package defects

import (
	"context"
	"fmt"
	"time"
)

// SignedURLTTL is the validity of the photo links stored on a defect.
const SignedURLTTL = 365 * 24 * time.Hour

// Objects is the object storage half of the backend client.
type Objects interface {
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error
	CreateSignedURL(ctx context.Context, bucket, name string, ttl time.Duration) (string, error)
}

// UploadResult is the outcome of one photo of a batch.
type UploadResult struct {
	Index int
	Name  string
	// URL is the signed link when the upload succeeded.
	URL string
	// Err is the reason the photo was skipped.
	Err error
}

// OK reports whether the photo was stored and signed.
func (r UploadResult) OK() bool { return r.Err == nil }

// UploadBatch uploads photos[i] under names[i] one after another and signs
// each stored object. A failed photo is reported in its result and does not
// stop the batch. Results are in input order.
func UploadBatch(ctx context.Context, objects Objects, bucket string, names []string, photos []Photo) []UploadResult {
	results := make([]UploadResult, len(photos))
	for i, p := range photos {
		results[i].Index = i
		if i >= len(names) || names[i] == "" {
			results[i].Err = fmt.Errorf("no object name for photo %d", i)
			continue
		}
		name := names[i]
		results[i].Name = name

		if err := objects.Upload(ctx, bucket, name, p.Data, p.ContentType); err != nil {
			results[i].Err = fmt.Errorf("upload %s: %w", name, err)
			continue
		}
		u, err := objects.CreateSignedURL(ctx, bucket, name, SignedURLTTL)
		if err != nil {
			results[i].Err = fmt.Errorf("sign %s: %w", name, err)
			continue
		}
		results[i].URL = u
	}
	return results
}

// SucceededURLs returns the signed links of the successful results in order.
func SucceededURLs(results []UploadResult) []string {
	var urls []string
	for _, r := range results {
		if r.OK() {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// CreationObjectNames names the photos attached when a defect is reported:
// <defectID>_<unixMillis>_<index>.<ext>.
func CreationObjectNames(defectID string, at time.Time, photos []Photo) []string {
	names := make([]string, len(photos))
	for i, p := range photos {
		names[i] = fmt.Sprintf("%s_%d_%d.%s", defectID, at.UnixMilli(), i, p.Ext())
	}
	return names
}

// RepairObjectNames names repair photos: <defectID>_repair_<unixMillis>_<index>.<ext>.
func RepairObjectNames(defectID string, at time.Time, photos []Photo) []string {
	names := make([]string, len(photos))
	for i, p := range photos {
		names[i] = fmt.Sprintf("%s_repair_%d_%d.%s", defectID, at.UnixMilli(), i, p.Ext())
	}
	return names
}
