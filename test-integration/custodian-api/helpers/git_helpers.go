package helpers

import (
	"fmt"
	"net/http/cgi"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/onsi/gomega"
)

// GitTestHelper manages fixture repositories and serves them over the
// Git smart HTTP protocol, so clone URLs look exactly like the ones a
// production deployment registers.
type GitTestHelper struct {
	tempDir string
	server  *httptest.Server
}

// GitTestRepository is one fixture repository.
type GitTestRepository struct {
	Name     string
	Path     string
	CloneURL string

	repo *git.Repository
}

// NewGitTestHelper creates the fixture root and starts a git
// http-backend instance serving every repository under it.
func NewGitTestHelper() *GitTestHelper {
	tempDir, err := os.MkdirTemp("", "custodian-git-fixtures-*")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	gitBin, err := exec.LookPath("git")
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), "integration tests require a git binary to serve fixture repositories")

	handler := &cgi.Handler{
		Path: gitBin,
		Args: []string{"http-backend"},
		Env: []string{
			"GIT_PROJECT_ROOT=" + tempDir,
			"GIT_HTTP_EXPORT_ALL=1",
		},
	}

	return &GitTestHelper{
		tempDir: tempDir,
		server:  httptest.NewServer(handler),
	}
}

// CreateRepository initializes an empty fixture repository. Commits are
// added through AddCommit.
func (g *GitTestHelper) CreateRepository(name string) *GitTestRepository {
	// The on-disk directory carries the .git suffix so http-backend
	// resolves the request path directly.
	repoPath := filepath.Join(g.tempDir, name+".git")
	repo, err := git.PlainInit(repoPath, false)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &GitTestRepository{
		Name:     name,
		Path:     repoPath,
		CloneURL: fmt.Sprintf("%s/%s.git", g.server.URL, name),
		repo:     repo,
	}
}

// AddCommit writes a file into the fixture repository and commits it,
// returning the commit hash.
func (g *GitTestHelper) AddCommit(r *GitTestRepository, filename, content, message string) string {
	wt, err := r.repo.Worktree()
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	fullPath := filepath.Join(r.Path, filename)
	gomega.Expect(os.MkdirAll(filepath.Dir(fullPath), 0o750)).To(gomega.Succeed())
	gomega.Expect(os.WriteFile(fullPath, []byte(content), 0o600)).To(gomega.Succeed())

	_, err = wt.Add(filename)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Integration Test",
			Email: "integration@example.com",
			When:  time.Now(),
		},
	})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return hash.String()
}

// Cleanup stops the fixture server and removes every repository.
func (g *GitTestHelper) Cleanup() {
	g.server.Close()
	_ = os.RemoveAll(g.tempDir)
}
