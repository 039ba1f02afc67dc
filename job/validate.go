package job

import "regexp"

// Accepted YouTube URL shapes. Anything else is rejected before a job is created.
var sourceURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/shorts/[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/embed/[\w-]+`),
}

// ValidSourceURL reports whether url is an acceptable video page URL.
func ValidSourceURL(url string) bool {
	for _, p := range sourceURLPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}
