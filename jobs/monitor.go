// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// MonitorJob records the latest upstream client release.
func (r *Runner) MonitorJob(ctx context.Context) error {
	if r.feed == nil {
		log.Debug("No release feed configured")
		return nil
	}
	release, err := r.feed.LatestRelease(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch latest release")
	}
	if release == nil {
		return nil
	}
	if err := r.db.SetRelease(ctx, release.Name, release.PublishedAt.UnixMilli()); err != nil {
		return err
	}
	log.WithField("release", release.Name).Info("Recorded upstream release")
	return nil
}

// GitHubFeed reads the latest release of a repository from the
// public GitHub API.
type GitHubFeed struct {
	repo   string
	client *http.Client
}

var _ ReleaseFeed = (*GitHubFeed)(nil)

// NewGitHubFeed watches owner/name for releases.
func NewGitHubFeed(repo string) *GitHubFeed {
	return &GitHubFeed{
		repo:   repo,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GitHubFeed) LatestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", g.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build release request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch release")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("release feed returned %d", resp.StatusCode)
	}

	var body struct {
		TagName     string    `json:"tag_name"`
		PublishedAt time.Time `json:"published_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode release")
	}
	if body.TagName == "" {
		return nil, nil
	}
	return &Release{Name: body.TagName, PublishedAt: body.PublishedAt}, nil
}
