package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/go-realmgate/realmgate/internal/core"
)

// GitHubProviderConfig contains configuration for the GitHub provider.
type GitHubProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Org and Team, when set, restrict logins to members of that GitHub
	// organization (and optionally team).
	Org  string
	Team string
	// APIBase overrides the GitHub API root; tests point it at a fake.
	APIBase string
}

// GitHubProvider implements ProviderClient against the GitHub API.
type GitHubProvider struct {
	config  *oauth2.Config
	org     string
	team    string
	apiBase string
}

func NewGitHubProvider(cfg GitHubProviderConfig) *GitHubProvider {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	scopes := []string{"read:user", "user:email"}
	if cfg.Org != "" {
		scopes = append(scopes, "read:org")
	}
	return &GitHubProvider{
		org:     cfg.Org,
		team:    cfg.Team,
		apiBase: apiBase,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     github.Endpoint,
		},
	}
}

func (p *GitHubProvider) Name() string {
	return core.BackendGitHub
}

// AuthCodeURL returns the provider authorization URL for the redirect stage.
func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the callback's authorization code for an access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

type githubUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchUser retrieves the authenticated account's profile.
func (p *GitHubProvider) FetchUser(
	ctx context.Context,
	token *oauth2.Token,
) (*ProviderUser, error) {
	var user githubUser
	if err := p.getJSON(ctx, token, "/user", &user); err != nil {
		return nil, err
	}
	return &ProviderUser{
		Login:     user.Login,
		FullName:  user.Name,
		AvatarURL: user.AvatarURL,
	}, nil
}

// FetchEmails retrieves the account's (email, verified, primary) tuples.
func (p *GitHubProvider) FetchEmails(
	ctx context.Context,
	token *oauth2.Token,
) ([]ProviderEmail, error) {
	var emails []githubEmail
	if err := p.getJSON(ctx, token, "/user/emails", &emails); err != nil {
		return nil, err
	}
	out := make([]ProviderEmail, 0, len(emails))
	for _, e := range emails {
		out = append(out, ProviderEmail{
			Email:    e.Email,
			Verified: e.Verified,
			Primary:  e.Primary,
		})
	}
	return out, nil
}

// CheckMembership queries the organization (and team) membership gate.
func (p *GitHubProvider) CheckMembership(
	ctx context.Context,
	token *oauth2.Token,
	login string,
) error {
	if p.org == "" {
		return nil
	}
	path := fmt.Sprintf("/orgs/%s/members/%s", p.org, login)
	if p.team != "" {
		path = fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", p.org, p.team, login)
	}

	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	// GitHub answers 204 (org member) or 200 (team membership record).
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return fmt.Errorf("%w: %s status %d", ErrMembershipDenied, path, resp.StatusCode)
}

func (p *GitHubProvider) getJSON(
	ctx context.Context,
	token *oauth2.Token,
	path string,
	out any,
) error {
	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provider API error: %s - %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ProviderClient = (*GitHubProvider)(nil)
