package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/utils"
	http_utils "github.com/benmeehan/docks/pkg/httpUtils"
	"github.com/rs/zerolog"
)

// GitHubService resolves GitHub org and user ids to their login names.
type GitHubService struct {
	config *utils.Config
	client *http.Client
	logger zerolog.Logger
}

// NewGitHubService creates a new GitHubService.
func NewGitHubService(config *utils.Config, client *http.Client, logger zerolog.Logger) *GitHubService {
	return &GitHubService{config: config, client: client, logger: logger}
}

// Login returns the login of the GitHub account with id. The shared
// "default" org has no account and resolves to "n/a".
func (gs *GitHubService) Login(ctx context.Context, id string) (string, error) {
	if id == constants.DefaultOrg {
		return "n/a", nil
	}
	var user struct {
		Login string `json:"login"`
	}
	target := strings.TrimSuffix(gs.config.GitHub.APIURL, "/") + "/user/" + url.PathEscape(id)
	err := http_utils.GetJSON(ctx, gs.client, target, &user,
		http_utils.WithHeader("User-Agent", constants.GitHubUserAgent),
		http_utils.WithHeader("Authorization", tokenHeader(gs.config.GitHub.Token)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to look up github id %s: %w", id, err)
	}
	return user.Login, nil
}

// Logins resolves every distinct id concurrently. Ids that fail to resolve
// are left out and logged.
func (gs *GitHubService) Logins(ctx context.Context, ids []string) map[string]string {
	seen := make(map[string]struct{}, len(ids))
	var unique []string
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	logins, err := utils.Map(ctx, gs.config.GitHub.Workers, unique, gs.Login)
	if err != nil {
		gs.logger.Warn().Err(err).Msg("Failed to resolve some github ids")
	}

	names := make(map[string]string, len(unique))
	for i, id := range unique {
		if logins[i] != "" {
			names[id] = logins[i]
		}
	}
	return names
}

func tokenHeader(token string) string {
	if token == "" {
		return ""
	}
	return "token " + token
}
