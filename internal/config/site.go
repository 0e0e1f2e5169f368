package config

import "time"

// SiteConfig holds settings for one mirrored host.
// Zero values mean "not set" and leave the inherited value in place.
type SiteConfig struct {
	// Depth overrides the maximum crawl depth.
	Depth int `yaml:"depth,omitempty"`

	// Delay overrides the pause after each saved resource, e.g. "500ms".
	Delay time.Duration `yaml:"delay,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are custom HTTP headers sent with every request to the site,
	// e.g. Accept-Language.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .sitemirror configuration file.
type File struct {
	// Sites maps hosts to their settings.
	// Keys are the host as it appears in the URL, including a non-default
	// port (e.g., "example.com" or "localhost:8080").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := mergeSiteConfig(SiteConfig{}, cf.Defaults)
	if site, ok := cf.Sites[host]; ok {
		result = mergeSiteConfig(result, site)
	}
	return result
}

// mergeSiteConfig returns base with every set field of override applied.
// Headers are merged key by key; the result never shares a map with its
// inputs.
func mergeSiteConfig(base, override SiteConfig) SiteConfig {
	result := base
	if override.Depth != 0 {
		result.Depth = override.Depth
	}
	if override.Delay != 0 {
		result.Delay = override.Delay
	}
	if override.UserAgent != "" {
		result.UserAgent = override.UserAgent
	}

	if len(base.Headers) > 0 || len(override.Headers) > 0 {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}
	return result
}
