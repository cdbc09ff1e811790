package utils

import "net/url"

// ValidateURL reports whether rawURL is an absolute http(s) URL with a host.
func ValidateURL(rawURL string) bool {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return true
	}
	return false
}

// RedactURL returns rawURL without its password and query, for logs.
// Unparsable input is replaced entirely.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
