package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipsite/shipsite/internal/stage"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, rel, want string
	}{
		{"", "index.html", "index.html"},
		{"site", "index.html", "site/index.html"},
		{"/site/", "css/a.css", "site/css/a.css"},
		{"a/b", "c.js", "a/b/c.js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, objectKey(tt.prefix, tt.rel))
	}
}

func TestNewObject(t *testing.T) {
	o := newObject("", "index.html", []byte("hello"), nil)
	assert.Equal(t, "text/html; charset=utf-8", o.ContentType)
	assert.Empty(t, o.ContentEncoding)
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, o.ETag())
	assert.Equal(t, "XUFAKrxLKna5cZ2REBfFkg==", o.ContentMD5())

	// A .gz name without a gzip payload is uploaded as is.
	o = newObject("", "archive.gz", []byte("plain"), nil)
	assert.Empty(t, o.ContentEncoding)

	o = newObject("", "data.unknownext", nil, nil)
	assert.Equal(t, defaultContentType, o.ContentType)
}

func TestNewObject_Gzip(t *testing.T) {
	gz, err := stage.Compress([]byte("body{color:red}"), 9)
	require.NoError(t, err)
	cssOnly := stage.ExtMatcher([]string{"css"})

	o := newObject("", "css/site.css.gz", gz, cssOnly)
	assert.Equal(t, "gzip", o.ContentEncoding)
	assert.Equal(t, "text/css; charset=utf-8", o.ContentType)

	o = newObject("", "css/site.css", gz, cssOnly)
	assert.Equal(t, "gzip", o.ContentEncoding)
	assert.Equal(t, "text/css; charset=utf-8", o.ContentType)

	o = newObject("", "css/site.css", []byte("body{color:red}"), cssOnly)
	assert.Empty(t, o.ContentEncoding)

	o = newObject("", "logo.png", gz, cssOnly)
	assert.Empty(t, o.ContentEncoding)
}
