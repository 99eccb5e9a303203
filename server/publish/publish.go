// Package publish provides the platform publishers used by the publication
// pipeline, typically via the platforms' REST APIs.
package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPDoer defines the method required for an HTTP client. The net/http.Client
// standard library type satisfies this interface.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Media is an attachment ready for publication. The URL is a time-limited
// signed URL the platform (or the publisher itself) can fetch the bytes from.
type Media struct {
	URL         string
	ContentType string
	SizeBytes   int64
}

// Request carries everything a publisher needs to push one post to one
// platform account.
type Request struct {
	PostID         string
	Content        string
	AccessToken    string
	PlatformUserID string
	Media          []Media
}

// Publisher pushes a post to a single platform. Implementations return an
// error describing the failure, they do not decide whether it is retried.
type Publisher interface {
	// Platform returns the platform code the publisher handles.
	Platform() string

	// PublishPost performs the platform-specific publication.
	PublishPost(ctx context.Context, req *Request) error
}

// Registry maps platform codes to their publisher.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher)}
	r.Register(publishers...)
	return r
}

func (r *Registry) Register(publishers ...Publisher) {
	for _, p := range publishers {
		code := p.Platform()
		if _, ok := r.publishers[code]; ok {
			panic(fmt.Sprintf("publisher %s already registered", code))
		}
		r.publishers[code] = p
	}
}

// For returns the publisher for the platform code, or an error if no
// publisher handles it.
func (r *Registry) For(platform string) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for platform: %s", platform)
	}
	return p, nil
}

// statusError turns a non-2xx platform response into an error that carries
// the status and a snippet of the body, which ends up verbatim on the post.
func statusError(platform string, resp *http.Response) error {
	const maxBodyLen = 512

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%s: unexpected status %d: %s", platform, resp.StatusCode, msg)
}
