package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetKeys(t *testing.T) {
	assert.Equal(t, "schedule/room/r1", RoomFolder("r1"))
	assert.Equal(t, "schedule/room/r1/m1", AssetID("r1", "m1"))
}

func TestSignUploadParams(t *testing.T) {
	c := NewHTTPClient("https://api.example.com/v1_1/demo", "key", "topsecret")

	// Parameters must be signed in sorted key order regardless of map order.
	signature := c.SignUploadParams(map[string]string{
		"timestamp": "1700000000",
		"public_id": "member-1",
		"folder":    "schedule/room/room-1",
	})

	assert.Equal(t, "43eac1140aa1db0f839b4b3e001d7aa0e2ffdac5", signature)
}

func TestUpload(t *testing.T) {
	var gotPath string
	var gotFields map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url": "https://cdn.example.com/schedule/room/r1/m1.png"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	url, err := c.Upload(context.Background(), "schedule/room/r1", "m1", strings.NewReader("fake-image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/schedule/room/r1/m1.png", url)
	assert.Equal(t, "/image/upload", gotPath)
	assert.Equal(t, "schedule/room/r1", gotFields["folder"])
	assert.Equal(t, "m1", gotFields["public_id"])
	assert.Equal(t, "key", gotFields["api_key"])
	assert.NotEmpty(t, gotFields["signature"])
	assert.NotEmpty(t, gotFields["timestamp"])
}

func TestUploadErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Invalid signature"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	_, err := c.Upload(context.Background(), "schedule/room/r1", "m1", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestDestroy(t *testing.T) {
	var gotPublicID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPublicID = r.PostFormValue("public_id")
		w.Write([]byte(`{"result": "ok"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	require.NoError(t, c.Destroy(context.Background(), "schedule/room/r1/m1"))
	assert.Equal(t, "schedule/room/r1/m1", gotPublicID)
}

func TestDestroyMissingAssetIsFine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": "not found"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	assert.NoError(t, c.Destroy(context.Background(), "schedule/room/r1/gone"))
}

func TestDeleteFolder(t *testing.T) {
	var requests []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		requests = append(requests, r.Method+" "+r.URL.RequestURI())
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	require.NoError(t, c.DeleteFolder(context.Background(), "schedule/room/r1"))

	require.Len(t, requests, 2)
	assert.Contains(t, requests[0], "DELETE /resources/image/upload?prefix=")
	assert.Contains(t, requests[1], "DELETE /folders/schedule/room/r1")
}
