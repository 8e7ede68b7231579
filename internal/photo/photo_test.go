package photo

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/cloudinary"
	"absensi/internal/logging"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

func TestDecode(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(jpeg)

	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"raw base64", raw, jpeg, false},
		{"data url", "data:image/jpeg;base64," + raw, jpeg, false},
		{"png data url", "data:image/png;base64," + raw, jpeg, false},
		{"garbage", "%%%not-base64", nil, true},
		{"data url without comma", "data:image/jpeg;base64", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidImage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	store := NewLocal(dir, "/photos/", logging.Discard())

	url := store.Store(context.Background(), jpeg, "1709514000000-04:A1/B2")
	assert.Equal(t, "/photos/1709514000000-04_A1_B2.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "1709514000000-04_A1_B2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store := NewLocal(t.TempDir(), "/photos", logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, store.Store(ctx, jpeg, "x"))
}

func TestCloudinaryStore(t *testing.T) {
	var gotPublicID, gotFolder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotPublicID = r.FormValue("public_id")
		gotFolder = r.FormValue("folder")
		assert.NotEmpty(t, r.FormValue("signature"))
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"absensi-siswa/p1","secure_url":"https://res.example/p1.jpg"}`))
	}))
	defer srv.Close()

	client := cloudinary.New("demo", "key", "secret", "absensi-siswa")
	client.BaseURL = srv.URL
	store := NewCloudinary(client, logging.Discard())

	url := store.Store(context.Background(), jpeg, "p1")
	assert.Equal(t, "https://res.example/p1.jpg", url)
	assert.Equal(t, "p1", gotPublicID)
	assert.Equal(t, "absensi-siswa", gotFolder)
}

func TestCloudinaryStore_FailureYieldsEmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := cloudinary.New("demo", "key", "secret", "")
	client.BaseURL = srv.URL
	assert.Empty(t, NewCloudinary(client, logging.Discard()).Store(context.Background(), jpeg, "p1"))
}
