// Package validation checks user-supplied paths, names and origins before
// they reach the filesystem or the preview server.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidatePath rejects empty paths, parent directory traversal and shell
// metacharacters. Absolute paths are allowed.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateRelativePath is ValidatePath for paths that must stay below the
// directory they are resolved against.
func ValidateRelativePath(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if !filepath.IsLocal(path) {
		return fmt.Errorf("path escapes its base directory: %s", path)
	}

	return nil
}

// ValidateExtension checks a template file extension such as ".html".
func ValidateExtension(ext string) error {
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return fmt.Errorf("extension %q must start with a dot and name a suffix", ext)
	}
	if strings.ContainsAny(ext, `/\*?[`) {
		return fmt.Errorf("extension %q contains path or pattern characters", ext)
	}

	return nil
}

// ValidateOrigin validates a websocket Origin header against the hosts the
// preview server answers on. An origin matches an allowed entry by full
// origin or by host.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}
