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

const graphDefaultBaseURL = "https://graph.facebook.com/v18.0"

// Facebook publishes to a Facebook page through the Graph API. Text-only
// posts go to the page feed, posts with an image attachment go through the
// photos edge with the signed media URL.
type Facebook struct {
	client  HTTPDoer
	baseURL string
}

// FacebookOptions defines the options to configure a Facebook publisher.
type FacebookOptions struct {
	BaseURL string
	Timeout time.Duration
}

func NewFacebook(opts *FacebookOptions) *Facebook {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = graphDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Facebook{
		client:  crosshttp.NewClient(crosshttp.WithTimeout(timeout)),
		baseURL: baseURL,
	}
}

func (f *Facebook) Platform() string { return "facebook" }

func (f *Facebook) PublishPost(ctx context.Context, req *Request) error {
	form := url.Values{}
	form.Set("access_token", req.AccessToken)

	edge := "feed"
	if len(req.Media) > 0 {
		edge = "photos"
		form.Set("url", req.Media[0].URL)
		form.Set("caption", req.Content)
	} else {
		form.Set("message", req.Content)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", f.baseURL, req.PlatformUserID, edge)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("facebook: publish post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("facebook", resp)
	}

	var created struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("facebook: decode response: %w", err)
	}
	if created.ID == "" && created.PostID == "" {
		return fmt.Errorf("facebook: publish returned no post id")
	}
	return nil
}
