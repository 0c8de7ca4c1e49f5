// Package source validates repository access and resolves branches to
// commits. Read-only against the source-control provider; never retries.
package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
)

type Verifier struct {
	defaultOwner string

	// baseURL points the client at a test server when set.
	baseURL string
}

func NewVerifier(defaultOwner string) *Verifier {
	return &Verifier{defaultOwner: defaultOwner}
}

func (v *Verifier) client(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if v.baseURL != "" {
		base, _ := url.Parse(v.baseURL)
		client.BaseURL = base
	}
	return client
}

// Verify confirms token can read repoRef and resolves branch to a commit
// SHA. repoRef is "owner/name" or a bare name under the platform account.
func (v *Verifier) Verify(ctx context.Context, repoRef, branch, token string) (string, error) {
	if strings.TrimSpace(repoRef) == "" {
		return "", errs.Validation("repository is required")
	}
	if strings.TrimSpace(token) == "" {
		return "", errs.Validation("access token is required")
	}
	if branch == "" {
		branch = "main"
	}

	owner, name := v.splitRepo(repoRef)
	client := v.client(ctx, token)

	if _, _, err := client.Users.Get(ctx, ""); err != nil {
		return "", errs.Authentication("token rejected by provider: %v", err)
	}

	_, resp, err := client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return "", errs.NotFound("repository %s/%s", owner, name)
		}
		return "", errs.Authentication("cannot read repository %s/%s: %v", owner, name, err)
	}
	if scopes := resp.Header.Get("X-OAuth-Scopes"); scopes != "" && !hasRepoScope(scopes) {
		return "", errs.Authentication("token lacks repo scope (has: %s)", scopes)
	}

	br, resp, err := client.Repositories.GetBranch(ctx, owner, name, branch, 1)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return "", errs.NotFound("branch %s of %s/%s", branch, owner, name)
		}
		return "", errs.Authentication("cannot resolve branch %s: %v", branch, err)
	}

	return br.GetCommit().GetSHA(), nil
}

func (v *Verifier) splitRepo(repoRef string) (owner, name string) {
	parts := strings.SplitN(repoRef, "/", 2)
	if len(parts) == 2 && parts[0] != "" {
		return parts[0], parts[1]
	}
	return v.defaultOwner, repoRef
}

func hasRepoScope(scopes string) bool {
	for _, s := range strings.Split(scopes, ",") {
		if strings.TrimSpace(s) == "repo" {
			return true
		}
	}
	return false
}
