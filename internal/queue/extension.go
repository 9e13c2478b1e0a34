package queue

import (
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Script suffixes name the portal endpoint serving a file, not the file.
var scriptExtensions = map[string]bool{
	".php": true, ".asp": true, ".aspx": true, ".jsp": true, ".cgi": true,
}

// ResolveExtension picks the extension for a downloaded file. Sources in
// order: the response content type, the URL path, the original file name and
// finally the sniffed content of the file at localPath. The first usable
// result wins; "" when none is.
func ResolveExtension(contentType, sourceURL, originalName, localPath string) string {
	if ext := extensionForContentType(contentType); ext != "" {
		return ext
	}
	if u, err := url.Parse(sourceURL); err == nil {
		if ext := usableExtension(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	if ext := usableExtension(path.Ext(strings.TrimSpace(originalName))); ext != "" {
		return ext
	}
	if localPath != "" {
		if m, err := mimetype.DetectFile(localPath); err == nil {
			return usableExtension(m.Extension())
		}
	}
	return ""
}

func extensionForContentType(contentType string) string {
	ct := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if ct == "" {
		return ""
	}
	m := mimetype.Lookup(strings.ToLower(ct))
	if m == nil {
		return ""
	}
	return usableExtension(m.Extension())
}

// usableExtension returns ext lower-cased if it is a dot followed by one to
// four letters or digits and not a script suffix.
func usableExtension(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 5 || ext[0] != '.' {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	if scriptExtensions[ext] {
		return ""
	}
	return ext
}
