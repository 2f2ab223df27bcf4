package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"feed-digest/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

// sourcesFile is the layout of FEED_SOURCES_FILE:
//
//	sources:
//	  - name: golang-blog
//	    url: https://go.dev/blog/feed.atom
type sourcesFile struct {
	Sources []entity.Source `yaml:"sources"`
}

// ParseSourceList parses FEED_SOURCES entries. Each entry is either
// "name=url" or a bare URL, in which case the host and path become the name,
// so several feeds on one host keep distinct names.
func ParseSourceList(entries []string) ([]entity.Source, error) {
	sources := make([]entity.Source, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		src, err := parseSourceEntry(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, errors.Join(errs...)
}

func parseSourceEntry(entry string) (entity.Source, error) {
	entry = strings.TrimSpace(entry)
	// A '=' inside a bare URL's query string must not be taken as the separator.
	if name, rawURL, ok := strings.Cut(entry, "="); ok && !strings.Contains(name, "://") {
		name, rawURL = strings.TrimSpace(name), strings.TrimSpace(rawURL)
		if name == "" {
			return entity.Source{}, fmt.Errorf("source %q: name before '=' is empty", entry)
		}
		return entity.Source{Name: name, URL: rawURL}, nil
	}

	u, err := url.Parse(entry)
	if err != nil || u.Host == "" {
		return entity.Source{}, fmt.Errorf("source %q: expected name=url or an absolute URL", entry)
	}
	return entity.Source{Name: derivedName(u), URL: entry}, nil
}

// derivedName is "host/path" without a trailing slash, or just the host for a
// root URL.
func derivedName(u *url.URL) string {
	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		return u.Hostname()
	}
	return u.Hostname() + path
}

// LoadSourcesFile reads a YAML sources file. Unknown keys are rejected so
// a typo such as "ulr" fails startup instead of producing an empty source.
func LoadSourcesFile(path string) ([]entity.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file sourcesFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	for i := range file.Sources {
		file.Sources[i].Name = strings.TrimSpace(file.Sources[i].Name)
		file.Sources[i].URL = strings.TrimSpace(file.Sources[i].URL)
	}
	return file.Sources, nil
}

// mergeSources validates every source and rejects two different feeds under
// one name. A URL listed again is dropped; it would only fetch the same items
// twice.
func mergeSources(lists ...[]entity.Source) ([]entity.Source, error) {
	var (
		merged []entity.Source
		errs   []error
		seen   = make(map[string]bool)
		urls   = make(map[string]bool)
	)
	for _, list := range lists {
		for _, src := range list {
			if err := src.Validate(); err != nil {
				errs = append(errs, err)
				continue
			}
			if urls[src.URL] {
				continue
			}
			urls[src.URL] = true
			if seen[src.Name] {
				errs = append(errs, fmt.Errorf("source %q is configured more than once", src.Name))
				continue
			}
			seen[src.Name] = true
			merged = append(merged, src)
		}
	}
	return merged, errors.Join(errs...)
}
