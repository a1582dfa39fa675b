package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/file"
	"github.com/rs/zerolog"
)

// ErrNoRepository is returned when no local clone is configured for updates.
var ErrNoRepository = errors.New("no repository configured for updates")

// ErrDirtyRepository is returned when the local clone has uncommitted changes.
var ErrDirtyRepository = errors.New("repository has uncommitted changes")

// GitRunner runs git in a repository.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecGit runs the git binary.
type ExecGit struct {
	Binary string
}

// Run implements GitRunner.
func (g ExecGit) Run(ctx context.Context, dir string, args ...string) (string, error) {
	binary := g.Binary
	if binary == "" {
		binary = "git"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, append([]string{"-C", dir}, args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ReleaseStatus is the outcome of a release check.
type ReleaseStatus struct {
	Current         *semver.Version
	Latest          *semver.Version
	UpdateAvailable bool
	// Skipped is set when the last check is too recent.
	Skipped bool
}

// ReleaseService checks for and installs newer releases of the local clone.
type ReleaseService struct {
	runner     *operation.Runner
	config     *utils.Config
	fileClient file.FileOperations
	git        GitRunner
	now        func() time.Time
	logger     zerolog.Logger
}

// NewReleaseService creates a new ReleaseService.
func NewReleaseService(runner *operation.Runner, config *utils.Config, fileClient file.FileOperations, git GitRunner, logger zerolog.Logger) *ReleaseService {
	return &ReleaseService{
		runner:     runner,
		config:     config,
		fileClient: fileClient,
		git:        git,
		now:        time.Now,
		logger:     logger,
	}
}

// Check compares the checked out release with the newest remote release
// tag. Unless force is set, it runs at most once per configured interval.
func (rs *ReleaseService) Check(ctx context.Context, force bool) (ReleaseStatus, error) {
	repo := rs.config.Updates.Repository
	if repo == "" {
		return ReleaseStatus{}, ErrNoRepository
	}

	if !force && !rs.due() {
		rs.logger.Debug().Str("state_file", rs.config.Updates.StateFile).Msg("Release check not due")
		return ReleaseStatus{Skipped: true}, nil
	}

	req := operation.Request{Name: "release check", Intent: dryrun.Intent{Kind: dryrun.Read}}
	status, err := operation.Execute(ctx, rs.runner, req, func(ctx context.Context, s operation.Session) (ReleaseStatus, error) {
		described, err := rs.git.Run(ctx, repo, "describe", "--tags", "--abbrev=0")
		if err != nil {
			return ReleaseStatus{}, fmt.Errorf("failed to read current release: %w", err)
		}
		current, err := semver.NewVersion(described)
		if err != nil {
			return ReleaseStatus{}, fmt.Errorf("failed to parse current release %q: %w", described, err)
		}

		refs, err := rs.git.Run(ctx, repo, "ls-remote", "--tags", "origin")
		if err != nil {
			return ReleaseStatus{}, fmt.Errorf("failed to list remote releases: %w", err)
		}
		latest := LatestRelease(refs)
		if latest == nil {
			latest = current
		}

		return ReleaseStatus{
			Current:         current,
			Latest:          latest,
			UpdateAvailable: latest.GreaterThan(current),
		}, nil
	})
	if err != nil {
		return ReleaseStatus{}, err
	}

	if err := rs.fileClient.WriteFile(rs.config.Updates.StateFile, rs.now().UTC().Format(time.RFC3339)); err != nil {
		rs.logger.Warn().Err(err).Str("state_file", rs.config.Updates.StateFile).Msg("Failed to record release check")
	}
	return status, nil
}

// Update checks out release latest in the local clone.
func (rs *ReleaseService) Update(ctx context.Context, latest *semver.Version, dry bool) (dryrun.Result[string], error) {
	repo := rs.config.Updates.Repository
	if repo == "" {
		return dryrun.Result[string]{}, ErrNoRepository
	}
	tag := latest.Original()

	req := operation.Request{Name: "update", Intent: dryrun.Intent{Kind: dryrun.Mutate, DryRun: dry}}
	return operation.Execute(ctx, rs.runner, req, func(ctx context.Context, s operation.Session) (dryrun.Result[string], error) {
		if _, err := rs.git.Run(ctx, repo, "diff-files", "--quiet"); err != nil {
			return dryrun.Result[string]{}, fmt.Errorf("failed to update %s: %w", repo, ErrDirtyRepository)
		}
		return operation.Guard(ctx, s, dryrun.Action[string]{
			Description: fmt.Sprintf("check out release %s in %s", tag, repo),
			Preview:     tag,
			Run: func(ctx context.Context) (string, error) {
				if _, err := rs.git.Run(ctx, repo, "fetch", "--quiet", "--tags", "origin"); err != nil {
					return tag, err
				}
				if _, err := rs.git.Run(ctx, repo, "checkout", "--quiet", tag); err != nil {
					return tag, err
				}
				return tag, nil
			},
		})
	})
}

// due reports whether the last recorded check is older than the interval.
func (rs *ReleaseService) due() bool {
	raw, err := rs.fileClient.ReadFile(rs.config.Updates.StateFile)
	if err != nil {
		return true
	}
	last, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return true
	}
	return rs.now().Sub(last) > rs.config.Updates.Interval
}

// LatestRelease returns the highest semver tag in `git ls-remote --tags`
// output, or nil when there is none.
func LatestRelease(lsRemote string) *semver.Version {
	var latest *semver.Version
	for _, line := range strings.Split(lsRemote, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(fields[1], "refs/tags/"), "^{}")
		v, err := semver.NewVersion(name)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest
}
