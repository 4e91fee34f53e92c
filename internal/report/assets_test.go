package report

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	body := testPNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			assert.Equal(t, "k3rs", r.Header.Get("X-Client"))
			_, _ = w.Write(body)
		case "/empty.png":
		case "/big.png":
			_, _ = w.Write(bytes.Repeat([]byte{1}, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetcherConfig{MaxBytes: 32, BaseHeaders: http.Header{"X-Client": {"k3rs"}}})
	defer f.CloseIdleConnections()
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/big.png")
	assert.ErrorContains(t, err, "exceeds")

	f = NewHTTPFetcher(FetcherConfig{BaseHeaders: http.Header{"X-Client": {"k3rs"}}})
	defer f.CloseIdleConnections()

	got, err := f.Fetch(ctx, srv.URL+"/ok.png?token=secret")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = f.Fetch(ctx, srv.URL+"/missing.png?token=secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NotContains(t, err.Error(), "secret")

	_, err = f.Fetch(ctx, srv.URL+"/empty.png")
	assert.ErrorIs(t, err, ErrEmptyAsset)
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetcherConfig{})
	defer f.CloseIdleConnections()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAsset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	got, err := loadAsset(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	_, err = loadAsset(context.Background(), nil, filepath.Join(dir, "nope.png"))
	assert.Error(t, err)

	_, err = loadAsset(context.Background(), nil, "https://cdn.test/logo.png")
	assert.Error(t, err)

	stub := &stubFetcher{payload: map[string][]byte{"https://cdn.test/logo.png": []byte("remote")}}
	got, err = loadAsset(context.Background(), stub, "https://cdn.test/logo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), got)
}

func TestNormalizePhoto(t *testing.T) {
	out, err := normalizePhoto(testPNG(t, 50, 20), sheetPhotoPixelW, sheetPhotoPixelH)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(sheetPhotoPixelW, sheetPhotoPixelH), img.Bounds().Size())

	_, err = normalizePhoto([]byte("not an image"), 10, 10)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestCoverCrop(t *testing.T) {
	assert.Equal(t, image.Rect(25, 0, 75, 40), coverCrop(image.Rect(0, 0, 100, 40), 5, 4))
	assert.Equal(t, image.Rect(0, 30, 30, 70), coverCrop(image.Rect(0, 0, 30, 100), 3, 4))
}

func TestNormalizeLogo(t *testing.T) {
	out, size, err := normalizeLogo(testPNG(t, 12, 7))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(12, 7), size)

	_, err = png.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestPlaceholderLogo(t *testing.T) {
	out, err := placeholderLogo("RSP SUMBAR")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(120, 100), img.Bounds().Size())

	r, g, b, _ := img.At(3, 50).RGBA()
	assert.Equal(t, [3]uint32{0x28, 0xa7, 0x45}, [3]uint32{r >> 8, g >> 8, b >> 8})
	r, g, b, _ = img.At(10, 10).RGBA()
	assert.Equal(t, [3]uint32{0xf8, 0xf9, 0xfa}, [3]uint32{r >> 8, g >> 8, b >> 8})
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://s3.test/a.jpg", redactURL("https://s3.test/a.jpg?X-Amz-Signature=abc"))
	assert.Equal(t, "https://s3.test/a.jpg", redactURL("https://s3.test/a.jpg"))
}
