package models

import "time"

// Photo buckets of the object store.
const (
	DefectPhotosBucket = "defect-photos"
	RepairPhotosBucket = "repair-photos"
)

// Object is a stored photo in a bucket.
type Object struct {
	Bucket      string
	Name        string
	ContentType string
	Data        []byte
	// Owner is the id of the uploading user.
	Owner     string
	CreatedAt time.Time
}
