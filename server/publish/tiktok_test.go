package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tj/assert"
)

func TestTikTokPublishPost(t *testing.T) {
	var initCalled, uploadCalled, publishCalled bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media/clip.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("fake video bytes")) //nolint:errcheck

		case "/v2/post/publish/video/init/":
			initCalled = true
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			var body struct {
				PostInfo struct {
					Title        string `json:"title"`
					PrivacyLevel string `json:"privacy_level"`
				} `json:"post_info"`
				SourceInfo struct {
					Source    string `json:"source"`
					VideoSize int64  `json:"video_size"`
				} `json:"source_info"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "my clip", body.PostInfo.Title)
			assert.Equal(t, "PUBLIC", body.PostInfo.PrivacyLevel)
			assert.Equal(t, "FILE_UPLOAD", body.SourceInfo.Source)
			assert.Equal(t, int64(16), body.SourceInfo.VideoSize)

			fmt.Fprintf(w, `{"data":{"video_id":"v123","upload_url":%q}}`, "http://"+r.Host+"/upload/v123")

		case "/upload/v123":
			uploadCalled = true
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "video/mp4", r.Header.Get("Content-Type"))
			got, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, "fake video bytes", string(got))

		case "/v2/post/publish/":
			publishCalled = true
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var body struct {
				VideoID string `json:"video_id"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "v123", body.VideoID)
			fmt.Fprint(w, `{}`)

		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tk := NewTikTok(&TikTokOptions{BaseURL: srv.URL})
	err := tk.PublishPost(context.Background(), &Request{
		PostID:      "p1",
		Content:     "my clip",
		AccessToken: "tok",
		Media: []Media{
			{URL: srv.URL + "/media/clip.mp4", ContentType: "video/mp4", SizeBytes: 16},
		},
	})
	require.NoError(t, err)

	require.True(t, initCalled)
	require.True(t, uploadCalled)
	require.True(t, publishCalled)
}

func TestTikTokPublishPostNoMedia(t *testing.T) {
	tk := NewTikTok(&TikTokOptions{BaseURL: "http://unused"})
	err := tk.PublishPost(context.Background(), &Request{PostID: "p1", Content: "text"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no video attachment")
}

func TestTikTokInitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"access_token_invalid","message":"The access token is invalid"}}`)
	}))
	defer srv.Close()

	tk := NewTikTok(&TikTokOptions{BaseURL: srv.URL})
	err := tk.PublishPost(context.Background(), &Request{
		PostID:      "p1",
		AccessToken: "bad",
		Media:       []Media{{URL: "http://unused", ContentType: "video/mp4"}},
	})
	require.Error(t, err)

	// the platform's message surfaces in the error, it ends up on the post
	require.Contains(t, err.Error(), "access token is invalid")
}
