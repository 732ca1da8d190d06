package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// ImageExtension is appended to every generated object name.
const ImageExtension = ".jpg"

// NewPackID returns a random pack identifier.
func NewPackID() string {
	return uuid.NewString()
}

// NewImageName returns a collision resistant object name. KSUIDs sort by
// creation time, which keeps a bucket listing roughly in upload order.
func NewImageName() string {
	return ksuid.New().String() + ImageExtension
}
