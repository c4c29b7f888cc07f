package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GitDestination commits each export batch to a file in a local clone and
// pushes it, so the repository history doubles as an audit trail.
type GitDestination struct {
	repo   string
	file   string
	branch string
}

// NewGitDestination creates a git destination. repo must be an existing
// clone with an "origin" remote; branch is created if missing.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) Name() string { return "git:" + d.repo + "/" + d.file + "@" + d.branch }

// Write replaces the export file with b and commits it. An unchanged
// batch makes no commit.
func (d *GitDestination) Write(ctx context.Context, b *Batch) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		if _, err := d.git(ctx, "checkout", "-b", d.branch); err != nil {
			return fmt.Errorf("git checkout %s: %w", d.branch, err)
		}
	}
	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, b.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", d.file, err)
	}
	if _, err := d.git(ctx, "add", d.file); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if _, err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}

	if _, err := d.git(ctx, "commit", "-m", commitMessage(b)); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if _, err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func commitMessage(b *Batch) string {
	noun := "deliberations"
	if b.Deliberations == 1 {
		noun = "deliberation"
	}
	return fmt.Sprintf("export: %d %s at %s", b.Deliberations, noun, b.GeneratedAt.UTC().Format(time.RFC3339))
}

// git runs one git command in the clone. Its output is folded into the
// error on failure.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return out.String(), nil
}
