package deploy

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"mime"
	"path"
	"strings"

	"github.com/shipsite/shipsite/internal/stage"
)

const defaultContentType = "application/octet-stream"

// object is one file scheduled for upload.
type object struct {
	Key             string
	Path            string
	Data            []byte
	ContentType     string
	ContentEncoding string
	MD5             [md5.Size]byte
}

// newObject describes the upload of rel. Gzip output is sent with
// Content-Encoding: gzip: a .gz sibling takes the content type of the file it
// compresses, and a file compressed in place (an extension in gzipExt holding
// gzip data) keeps its own.
func newObject(prefix, rel string, data []byte, gzipExt func(string) bool) object {
	o := object{
		Key:  objectKey(prefix, rel),
		Path: rel,
		Data: data,
		MD5:  md5.Sum(data),
	}
	name := rel
	switch {
	case !stage.IsGzip(data):
	case strings.HasSuffix(rel, stage.GzipSuffix):
		o.ContentEncoding = "gzip"
		name = strings.TrimSuffix(rel, stage.GzipSuffix)
	case gzipExt != nil && gzipExt(rel):
		o.ContentEncoding = "gzip"
	}
	o.ContentType = contentType(name)
	return o
}

// ETag is the quoted hex MD5 that S3 reports for single-part uploads.
func (o object) ETag() string {
	return `"` + hex.EncodeToString(o.MD5[:]) + `"`
}

// ContentMD5 is the base64 digest sent with the upload.
func (o object) ContentMD5() string {
	return base64.StdEncoding.EncodeToString(o.MD5[:])
}

// objectKey joins prefix and rel into an object key without a leading slash.
func objectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return defaultContentType
}
