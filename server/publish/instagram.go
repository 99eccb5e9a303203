package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crosspostd/crosspost/pkg/crosshttp"
)

// Instagram publishes through the Graph API content publishing flow: first
// create a media container from the signed media URL, then publish the
// container. Instagram has no text-only posts, media is required and the
// validation gate enforces it before a post ever reaches this publisher.
type Instagram struct {
	client  HTTPDoer
	baseURL string
}

// InstagramOptions defines the options to configure an Instagram publisher.
type InstagramOptions struct {
	BaseURL string
	Timeout time.Duration
}

func NewInstagram(opts *InstagramOptions) *Instagram {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = graphDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Instagram{
		client:  crosshttp.NewClient(crosshttp.WithTimeout(timeout)),
		baseURL: baseURL,
	}
}

func (i *Instagram) Platform() string { return "instagram" }

func (i *Instagram) PublishPost(ctx context.Context, req *Request) error {
	if len(req.Media) == 0 {
		return fmt.Errorf("instagram: post %s has no media attachment", req.PostID)
	}
	media := req.Media[0]

	containerID, err := i.createContainer(ctx, req, media)
	if err != nil {
		return err
	}
	return i.publishContainer(ctx, req, containerID)
}

func (i *Instagram) createContainer(ctx context.Context, req *Request, media Media) (string, error) {
	form := url.Values{}
	form.Set("access_token", req.AccessToken)
	form.Set("caption", req.Content)
	if strings.HasPrefix(media.ContentType, "video/") {
		form.Set("media_type", "REELS")
		form.Set("video_url", media.URL)
	} else {
		form.Set("image_url", media.URL)
	}

	endpoint := fmt.Sprintf("%s/%s/media", i.baseURL, req.PlatformUserID)
	created, err := i.postForm(ctx, endpoint, form)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("instagram: container creation returned no id")
	}
	return created.ID, nil
}

func (i *Instagram) publishContainer(ctx context.Context, req *Request, containerID string) error {
	form := url.Values{}
	form.Set("access_token", req.AccessToken)
	form.Set("creation_id", containerID)

	endpoint := fmt.Sprintf("%s/%s/media_publish", i.baseURL, req.PlatformUserID)
	created, err := i.postForm(ctx, endpoint, form)
	if err != nil {
		return err
	}
	if created.ID == "" {
		return fmt.Errorf("instagram: publish returned no media id")
	}
	return nil
}

type graphCreated struct {
	ID string `json:"id"`
}

func (i *Instagram) postForm(ctx context.Context, endpoint string, form url.Values) (*graphCreated, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("instagram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("instagram", resp)
	}

	var created graphCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("instagram: decode response: %w", err)
	}
	return &created, nil
}
