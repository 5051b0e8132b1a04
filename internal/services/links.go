package services

import (
	"fmt"
	"strings"

	"github.com/rescale/bucketdesk/internal/pathkey"
)

// FormatLink builds the public link to key on domain. The key is appended
// verbatim, so a key with a leading separator keeps it. With markdown on the
// link is wrapped as an image reference named after the key's base name.
func FormatLink(domain, key string, markdown bool) string {
	domain = strings.TrimSuffix(domain, "/")
	if i := strings.Index(domain, "://"); i >= 0 {
		domain = domain[i+3:]
	}
	link := fmt.Sprintf("http://%s/%s", domain, key)
	if markdown {
		return fmt.Sprintf("![%s](%s)", pathkey.Base(key), link)
	}
	return link
}
