package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/invalidation"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/s3store"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	puts []s3store.PutInput
	err  error
}

func (f *fakeUploader) Put(_ context.Context, in s3store.PutInput) error {
	f.puts = append(f.puts, in)
	return f.err
}

type fakeInvalidator struct {
	names  []string
	result *invalidation.Result
}

func (f *fakeInvalidator) Invalidate(_ context.Context, name string) *invalidation.Result {
	f.names = append(f.names, name)
	return f.result
}

type fakeSigner struct {
	bucket, key string
	ttl         int
}

func (f *fakeSigner) Sign(bucket, key string, ttlDays int) (string, error) {
	f.bucket, f.key, f.ttl = bucket, key, ttlDays
	return "https://" + bucket + "/" + key + "?Signature=x", nil
}

func staticOptions(localDir string) Options {
	return Options{
		Bucket:       "static-bucket",
		Domain:       "cdn.example.com",
		Location:     "static",
		ACL:          "public-read",
		Gzip:         true,
		LocalDir:     localDir,
		ManifestName: "source/manifest.json",
	}
}

func gunzip(t *testing.T, b []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

func TestSave_GzipsTextAssets(t *testing.T) {
	up := &fakeUploader{}
	s := New(up, staticOptions(""), logging.Nop())

	css := []byte(".a{color:red}.b{color:blue}")
	name, err := s.Save(context.Background(), "css/site.css", css)
	require.NoError(t, err)
	assert.Equal(t, "css/site.css", name)

	require.Len(t, up.puts, 1)
	put := up.puts[0]
	assert.Equal(t, "static-bucket", put.Bucket)
	assert.Equal(t, "static/css/site.css", put.Key)
	assert.Equal(t, "public-read", put.ACL)
	assert.Equal(t, "gzip", put.ContentEncoding)
	assert.Contains(t, put.ContentType, "text/css")
	assert.Equal(t, css, gunzip(t, put.Body))
}

func TestSave_LeavesBinaryAssetsAlone(t *testing.T) {
	up := &fakeUploader{}
	s := New(up, staticOptions(""), logging.Nop())

	png := []byte{0x89, 'P', 'N', 'G'}
	_, err := s.Save(context.Background(), "img/logo.png", png)
	require.NoError(t, err)

	require.Len(t, up.puts, 1)
	assert.Empty(t, up.puts[0].ContentEncoding)
	assert.Equal(t, "image/png", up.puts[0].ContentType)
	assert.Equal(t, png, up.puts[0].Body)
}

func TestSave_GzipDisabled(t *testing.T) {
	up := &fakeUploader{}
	opts := staticOptions("")
	opts.Gzip = false
	s := New(up, opts, logging.Nop())

	_, err := s.Save(context.Background(), "app.js", []byte("let a = 1"))
	require.NoError(t, err)
	assert.Empty(t, up.puts[0].ContentEncoding)
	assert.Equal(t, []byte("let a = 1"), up.puts[0].Body)
}

func TestSave_UnknownExtensionIsOctetStream(t *testing.T) {
	up := &fakeUploader{}
	s := New(up, staticOptions(""), logging.Nop())

	_, err := s.Save(context.Background(), "data.cdnkeeper-unknown", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, defaultContentType, up.puts[0].ContentType)
}

func TestSave_WritesLocalCopy(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	s := New(up, staticOptions(dir), logging.Nop())

	_, err := s.Save(context.Background(), `css\site.css`, []byte("body{}"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(got), "local copy is stored uncompressed")
	assert.Equal(t, "static/css/site.css", up.puts[0].Key)
}

func TestSave_InvalidatesOnlyTheManifest(t *testing.T) {
	up := &fakeUploader{}
	inv := &fakeInvalidator{}
	s := New(up, staticOptions(""), logging.Nop(), WithInvalidator(inv))

	ctx := context.Background()
	_, err := s.Save(ctx, "source/app.css", []byte("a{}"))
	require.NoError(t, err)
	assert.Empty(t, inv.names)

	_, err = s.Save(ctx, `source\manifest.json`, []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"source/manifest.json"}, inv.names)
}

func TestSave_InvalidationFailureDoesNotFailSave(t *testing.T) {
	up := &fakeUploader{}
	inv := &fakeInvalidator{result: nil}
	s := New(up, staticOptions(""), logging.Nop(), WithInvalidator(inv))

	name, err := s.Save(context.Background(), "source/manifest.json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "source/manifest.json", name)
	assert.Len(t, inv.names, 1)
}

func TestSave_UploadFailure(t *testing.T) {
	boom := errors.Join(common.ErrRemoteService, errors.New("503"))
	up := &fakeUploader{err: boom}
	inv := &fakeInvalidator{}
	s := New(up, staticOptions(""), logging.Nop(), WithInvalidator(inv))

	_, err := s.Save(context.Background(), "source/manifest.json", []byte("{}"))
	require.ErrorIs(t, err, common.ErrRemoteService)
	assert.Empty(t, inv.names, "nothing to invalidate when the upload failed")
}

func TestSave_RejectsEmptyName(t *testing.T) {
	s := New(&fakeUploader{}, staticOptions(""), logging.Nop())
	_, err := s.Save(context.Background(), "/", []byte("x"))
	require.Error(t, err)
}

func TestURL(t *testing.T) {
	s := New(nil, staticOptions(""), logging.Nop())
	assert.Equal(t, "https://cdn.example.com/static/css/site.css", s.URL("css/site.css"))
	assert.Equal(t, "https://cdn.example.com/static/css/site.css", s.URL("/css/site.css"))

	bare := New(nil, Options{Bucket: "private-bucket"}, logging.Nop())
	assert.Equal(t, "https://private-bucket.s3.amazonaws.com/docs/a%20b.pdf", bare.URL("docs/a b.pdf"))
}

func TestSignedURL(t *testing.T) {
	signer := &fakeSigner{}
	s := New(nil, Options{Bucket: "private-bucket", Domain: "private.example.com"}, logging.Nop(), WithSigner(signer))

	got, err := s.SignedURL("docs/report.pdf", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://private.example.com/docs/report.pdf?Signature=x", got)
	assert.Equal(t, "private.example.com", signer.bucket)
	assert.Equal(t, "docs/report.pdf", signer.key)
	assert.Equal(t, 3, signer.ttl)

	_, err = New(nil, Options{Bucket: "b"}, logging.Nop()).SignedURL("x", 1)
	require.Error(t, err)
}
