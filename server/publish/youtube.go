package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crosspostd/crosspost/pkg/crosshttp"
)

const youtubeDefaultBaseURL = "https://www.googleapis.com/upload/youtube/v3"

// YouTube publishes videos through the Data API resumable upload protocol:
// an initialization request with the video metadata returns a session URL,
// then the video bytes are PUT to that URL.
type YouTube struct {
	client  HTTPDoer
	baseURL string
}

// YouTubeOptions defines the options to configure a YouTube publisher.
type YouTubeOptions struct {
	BaseURL string
	Timeout time.Duration
}

func NewYouTube(opts *YouTubeOptions) *YouTube {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = youtubeDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		// video uploads can be slow
		timeout = 5 * time.Minute
	}
	return &YouTube{
		client:  crosshttp.NewClient(crosshttp.WithTimeout(timeout)),
		baseURL: baseURL,
	}
}

func (y *YouTube) Platform() string { return "youtube" }

func (y *YouTube) PublishPost(ctx context.Context, req *Request) error {
	if len(req.Media) == 0 {
		return fmt.Errorf("youtube: post %s has no video attachment", req.PostID)
	}
	video := req.Media[0]

	sessionURL, err := y.startUploadSession(ctx, req, video)
	if err != nil {
		return err
	}
	return y.uploadVideo(ctx, req.AccessToken, sessionURL, video)
}

func (y *YouTube) startUploadSession(ctx context.Context, req *Request, video Media) (string, error) {
	// the post content becomes the video title, YouTube has no separate
	// short-text body
	body, err := json.Marshal(map[string]interface{}{
		"snippet": map[string]interface{}{
			"title":       req.Content,
			"description": req.Content,
		},
		"status": map[string]interface{}{
			"privacyStatus": "public",
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		y.baseURL+"/videos?uploadType=resumable&part=snippet,status", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Upload-Content-Type", video.ContentType)

	resp, err := y.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("youtube: start upload session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", statusError("youtube", resp)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("youtube: upload session returned no location")
	}
	return sessionURL, nil
}

func (y *YouTube) uploadVideo(ctx context.Context, accessToken, sessionURL string, video Media) error {
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, video.URL, nil)
	if err != nil {
		return err
	}
	getResp, err := y.client.Do(getReq)
	if err != nil {
		return fmt.Errorf("youtube: fetch media: %w", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		return statusError("youtube", getResp)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, getResp.Body)
	if err != nil {
		return err
	}
	putReq.Header.Set("Authorization", "Bearer "+accessToken)
	putReq.Header.Set("Content-Type", video.ContentType)
	if video.SizeBytes > 0 {
		putReq.ContentLength = video.SizeBytes
	}

	putResp, err := y.client.Do(putReq)
	if err != nil {
		return fmt.Errorf("youtube: upload video: %w", err)
	}
	defer putResp.Body.Close()
	io.Copy(io.Discard, putResp.Body) //nolint:errcheck

	if putResp.StatusCode != http.StatusOK && putResp.StatusCode != http.StatusCreated {
		return statusError("youtube", putResp)
	}
	return nil
}
