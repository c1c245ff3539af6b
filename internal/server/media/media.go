// Package media uploads user images to S3-compatible object storage and
// builds the public URLs stored on user records.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Folders used for profile images.
const (
	FolderAvatars = "avatars"
	FolderCovers  = "covers"
)

var ErrNoFile = errors.New("no file to upload")

// File is an uploaded file as received from a client. Body should implement
// io.Seeker when the storage endpoint is plain HTTP.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Asset is a stored object.
type Asset struct {
	Key string
	URL string
}

// Uploader stores files and reports where they can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, f *File, folder string) (*Asset, error)
}

var newUUID = uuid.New

// ObjectKey builds "<folder>/<yyyy>/<mm>/<dd>/<id>-<slug><ext>". The slug is
// derived from the file name without extension and is dropped when empty.
func ObjectKey(folder, name string, now time.Time, id uuid.UUID) string {
	ext := strings.ToLower(path.Ext(name))
	base := slug.Make(strings.TrimSuffix(path.Base(name), path.Ext(name)))

	file := id.String()
	if base != "" {
		file += "-" + base
	}

	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", folder, now.Year(), int(now.Month()), now.Day(), file, ext)
}

// PublicURL joins base, bucket and key with single slashes.
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + key
}
