package crosspost

import (
	"fmt"
	"strings"
)

// PlatformSpec describes the publishing capabilities and content constraints
// of a social platform. The table below is static: platform constraints
// change with API versions, not at runtime.
type PlatformSpec struct {
	Code              string
	Name              string
	MaxTextLength     int
	AllowedMediaTypes []string
	// RequiresVideo means at least one video attachment is mandatory.
	RequiresVideo bool
	// RequiresMedia means at least one attachment of any allowed type is
	// mandatory.
	RequiresMedia bool
}

var platformSpecs = map[string]PlatformSpec{
	"instagram": {
		Code:              "instagram",
		Name:              "Instagram",
		MaxTextLength:     2200,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "video/mp4"},
		RequiresMedia:     true,
	},
	"facebook": {
		Code:              "facebook",
		Name:              "Facebook",
		MaxTextLength:     63206,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "image/gif", "video/mp4"},
	},
	"tiktok": {
		Code:              "tiktok",
		Name:              "TikTok",
		MaxTextLength:     2200,
		AllowedMediaTypes: []string{"video/mp4", "video/webm"},
		RequiresVideo:     true,
	},
	"youtube": {
		Code:              "youtube",
		Name:              "YouTube",
		MaxTextLength:     5000,
		AllowedMediaTypes: []string{"video/mp4", "video/webm", "video/quicktime"},
		RequiresVideo:     true,
	},
}

// PlatformSpecByCode returns the capability spec for the given platform code.
func PlatformSpecByCode(code string) (PlatformSpec, bool) {
	spec, ok := platformSpecs[code]
	return spec, ok
}

func (s PlatformSpec) allowsMediaType(contentType string) bool {
	for _, t := range s.AllowedMediaTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// ValidatePost checks the post's content and media against each target
// platform's constraints. It returns a map of platform code to violation
// messages; an empty map means every platform passed. Pure function over the
// static capability table, no side effects.
func ValidatePost(content string, media []AttachmentPayload, specs ...PlatformSpec) map[string][]string {
	errs := make(map[string][]string)
	for _, spec := range specs {
		var violations []string

		if len(content) > spec.MaxTextLength {
			violations = append(violations, fmt.Sprintf(
				"content exceeds %s's maximum length of %d characters", spec.Code, spec.MaxTextLength))
		}

		hasVideo := false
		for _, m := range media {
			if !spec.allowsMediaType(m.ContentType) {
				violations = append(violations, fmt.Sprintf(
					"media type %s is not supported by %s", m.ContentType, spec.Code))
			}
			if strings.HasPrefix(m.ContentType, "video/") {
				hasVideo = true
			}
		}

		if spec.RequiresVideo && !hasVideo {
			violations = append(violations, fmt.Sprintf("%s requires a video attachment", spec.Code))
		}
		if spec.RequiresMedia && len(media) == 0 {
			violations = append(violations, fmt.Sprintf("%s requires at least one media attachment", spec.Code))
		}

		if len(violations) > 0 {
			errs[spec.Code] = violations
		}
	}
	return errs
}
