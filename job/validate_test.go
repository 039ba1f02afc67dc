package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSourceURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=abc123",
		"http://youtube.com/watch?v=dQw4w9WgXcQ",
		"youtube.com/watch?v=a-b_c",
		"https://www.youtube.com/shorts/xYz-123",
		"https://youtu.be/dQw4w9WgXcQ",
		"www.youtu.be/abc",
		"https://www.youtube.com/embed/abc123",
	}
	for _, url := range valid {
		assert.True(t, ValidSourceURL(url), "expected valid: %s", url)
	}

	invalid := []string{
		"",
		"not-a-url",
		"https://vimeo.com/12345",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/playlist?list=abc",
		"ftp://youtube.com/watch?v=abc",
	}
	for _, url := range invalid {
		assert.False(t, ValidSourceURL(url), "expected invalid: %s", url)
	}
}
