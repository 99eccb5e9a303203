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

const tiktokDefaultBaseURL = "https://open.tiktokapis.com"

// TikTok publishes video posts through the TikTok content posting API. The
// flow is three requests: initialize the upload, PUT the video bytes to the
// upload URL returned by the initialization, then publish the video id.
type TikTok struct {
	client  HTTPDoer
	baseURL string
}

// TikTokOptions defines the options to configure a TikTok publisher.
type TikTokOptions struct {
	// BaseURL overrides the TikTok API base URL, used in tests and for
	// sandbox environments.
	BaseURL string
	Timeout time.Duration
}

func NewTikTok(opts *TikTokOptions) *TikTok {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = tiktokDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TikTok{
		client:  crosshttp.NewClient(crosshttp.WithTimeout(timeout)),
		baseURL: baseURL,
	}
}

func (t *TikTok) Platform() string { return "tiktok" }

type tiktokInitResponse struct {
	Data struct {
		VideoID   string `json:"video_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (t *TikTok) PublishPost(ctx context.Context, req *Request) error {
	if len(req.Media) == 0 {
		return fmt.Errorf("tiktok: post %s has no video attachment", req.PostID)
	}
	video := req.Media[0]

	initResp, err := t.initUpload(ctx, req, video)
	if err != nil {
		return err
	}
	if err := t.uploadVideo(ctx, initResp.Data.UploadURL, video); err != nil {
		return err
	}
	return t.publishVideo(ctx, req.AccessToken, initResp.Data.VideoID)
}

// initUpload registers the pending upload and returns the video id and the
// one-time upload URL.
func (t *TikTok) initUpload(ctx context.Context, req *Request, video Media) (*tiktokInitResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":         req.Content,
			"privacy_level": "PUBLIC",
		},
		"source_info": map[string]interface{}{
			"source":     "FILE_UPLOAD",
			"video_size": video.SizeBytes,
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/v2/post/publish/video/init/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tiktok: init upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("tiktok", resp)
	}

	var initResp tiktokInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return nil, fmt.Errorf("tiktok: decode init response: %w", err)
	}
	if initResp.Data.UploadURL == "" {
		return nil, fmt.Errorf("tiktok: init upload failed: %s %s", initResp.Error.Code, initResp.Error.Message)
	}
	return &initResp, nil
}

// uploadVideo streams the video bytes from the signed media URL to the
// upload URL returned by the initialization.
func (t *TikTok) uploadVideo(ctx context.Context, uploadURL string, video Media) error {
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, video.URL, nil)
	if err != nil {
		return err
	}
	getResp, err := t.client.Do(getReq)
	if err != nil {
		return fmt.Errorf("tiktok: fetch media: %w", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		return statusError("tiktok", getResp)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, getResp.Body)
	if err != nil {
		return err
	}
	putReq.Header.Set("Content-Type", video.ContentType)
	if video.SizeBytes > 0 {
		putReq.ContentLength = video.SizeBytes
		putReq.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", video.SizeBytes-1, video.SizeBytes))
	}

	putResp, err := t.client.Do(putReq)
	if err != nil {
		return fmt.Errorf("tiktok: upload video: %w", err)
	}
	defer putResp.Body.Close()
	io.Copy(io.Discard, putResp.Body) //nolint:errcheck

	if putResp.StatusCode != http.StatusOK && putResp.StatusCode != http.StatusCreated {
		return statusError("tiktok", putResp)
	}
	return nil
}

func (t *TikTok) publishVideo(ctx context.Context, accessToken, videoID string) error {
	body, err := json.Marshal(map[string]string{"video_id": videoID})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/v2/post/publish/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("tiktok: publish video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("tiktok", resp)
	}
	return nil
}
