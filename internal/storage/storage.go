package storage

import (
	"errors"
	"time"
)

// ErrObjectNotFound is returned by GetObject when the object or its bucket
// does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ImageContentType is the content type every stored blob is tagged with.
const ImageContentType = "image/jpeg"

type ObjectInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// RemoveFailure reports an object a bulk delete could not remove.
type RemoveFailure struct {
	Name string
	Err  error
}
