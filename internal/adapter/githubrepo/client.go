// Package githubrepo implements adapter.ContentStore over the GitHub
// Contents and Git Trees APIs.
package githubrepo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com/"

	userAgent      = "repocms"
	requestTimeout = 30 * time.Second
)

// NewClient returns a go-github client authenticating every request with token.
// apiURL overrides the REST endpoint for GitHub Enterprise and tests.
func NewClient(token, apiURL string) (*github.Client, error) {
	httpClient := &http.Client{Timeout: requestTimeout}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		httpClient.Timeout = requestTimeout
	}

	client := github.NewClient(httpClient)
	client.UserAgent = userAgent
	if apiURL != "" && apiURL != DefaultAPIURL {
		u, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
		client.BaseURL = u
	}
	return client, nil
}
