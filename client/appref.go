package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// DefaultHubURL is the hosting service used to resolve "org/space" references.
const DefaultHubURL = "https://huggingface.co"

var spaceNamePattern = regexp.MustCompile(`^[^/:]+/[^/:]+$`)

// AppRef is a resolved application reference.
type AppRef struct {
	// Endpoint is the base HTTP URL of the app, without a trailing slash.
	Endpoint string
	// SpaceID is set for hosted apps: an "org/space" name or a subdomain.
	SpaceID string
	// ConfigFile is set for file: references, which run offline.
	ConfigFile string
}

// spaceIDIsName reports whether SpaceID is an "org/space" name rather than a subdomain.
func (r AppRef) spaceIDIsName() bool {
	return spaceNamePattern.MatchString(r.SpaceID)
}

// ResolveAppRef interprets ref as a URL, a file: config path, an
// "org/space" identifier or a bare host name.
func ResolveAppRef(ctx context.Context, httpClient *http.Client, hubURL, ref, token string) (AppRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return AppRef{}, fmt.Errorf("empty app reference")
	}

	switch {
	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(ref, "file://"), "file:")
		if path == "" {
			return AppRef{}, fmt.Errorf("empty file reference %q", ref)
		}
		return AppRef{ConfigFile: path}, nil

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return AppRef{}, fmt.Errorf("parse app url: %w", err)
		}
		r := AppRef{Endpoint: u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/")}
		if sub, ok := strings.CutSuffix(u.Hostname(), ".hf.space"); ok {
			r.SpaceID = sub
		}
		return r, nil

	case spaceNamePattern.MatchString(ref):
		host, err := lookupSpaceHost(ctx, httpClient, hubURL, ref, token)
		if err != nil {
			return AppRef{}, err
		}
		return AppRef{Endpoint: strings.TrimRight(host, "/"), SpaceID: ref}, nil

	default:
		scheme := "http"
		host := strings.TrimRight(ref, "/")
		r := AppRef{}
		if sub, ok := strings.CutSuffix(host, ".hf.space"); ok {
			scheme = "https"
			r.SpaceID = sub
		}
		r.Endpoint = scheme + "://" + host
		return r, nil
	}
}

// lookupSpaceHost asks the hub for the public host of a space.
func lookupSpaceHost(ctx context.Context, httpClient *http.Client, hubURL, spaceID, token string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if hubURL == "" {
		hubURL = DefaultHubURL
	}

	endpoint := joinURL(hubURL, "/api/spaces/"+spaceID+"/host")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("resolve space %s: %w", spaceID, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve space %s: %w", spaceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("resolve space %s: status %d: %s", spaceID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info struct {
		Subdomain string `json:"subdomain"`
		Host      string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("resolve space %s: decode: %w", spaceID, err)
	}
	if info.Host == "" {
		return "", fmt.Errorf("resolve space %s: hub returned no host", spaceID)
	}
	return info.Host, nil
}
