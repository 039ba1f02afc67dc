package ytdlp

import (
	"log"
	"os"

	"ytqueue/config"
)

// SetupCookies materializes the credential blob from configuration to the
// cookies file path and reports whether a usable cookies file exists. A
// missing credential is never fatal; fetches may still succeed depending on
// site policy.
func SetupCookies(cfg *config.Config) bool {
	if cfg.Cookies != "" {
		if err := os.WriteFile(cfg.CookiesFile, []byte(cfg.Cookies), 0o600); err != nil {
			log.Printf("Warning: failed to write cookies file: %v", err)
			return false
		}
		log.Println("YouTube cookies loaded from environment")
		return true
	}
	if _, err := os.Stat(cfg.CookiesFile); err == nil {
		log.Println("YouTube cookies file found")
		return true
	}
	log.Println("Warning: no YouTube cookies found, downloads may fail")
	return false
}
