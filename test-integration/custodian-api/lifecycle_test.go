package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/crpaas/repo-custodian/test-integration/custodian-api/helpers"
)

var _ = Describe("Repository Lifecycle", Label("lifecycle"), func() {
	var (
		tempDir     string
		storageRoot string
		gitHelper   *helpers.GitTestHelper
		fixture     *helpers.GitTestRepository
		commits     []string
		recorder    *helpers.ReindexRecorder
		server      *helpers.ServerTestHelper
		client      *helpers.APIClient
	)

	BeforeEach(func() {
		tempDir = createTempDir("lifecycle-test-")
		storageRoot = filepath.Join(tempDir, "storage")
		Expect(os.MkdirAll(storageRoot, 0o750)).To(Succeed())

		gitHelper = helpers.NewGitTestHelper()
		fixture = gitHelper.CreateRepository("sample-service")
		commits = []string{
			gitHelper.AddCommit(fixture, "main.go", "package main\n", "Initial commit"),
			gitHelper.AddCommit(fixture, "README.md", "# sample\n", "Add readme"),
		}

		recorder = helpers.NewReindexRecorder()
		server = helpers.NewServerTestHelper(ctx, helpers.ServerConfig{
			StorageRoot: storageRoot,
			ReindexURL:  recorder.URL(),
		})
		client = helpers.NewAPIClient(server.BaseURL())
	})

	AfterEach(func() {
		server.Stop()
		recorder.Close()
		gitHelper.Cleanup()
		cleanupTempDir(tempDir)
	})

	// waitForStatus polls the list endpoint until the record reaches the
	// wanted status and returns it.
	waitForStatus := func(id, want string) helpers.Repository {
		var repo helpers.Repository
		Eventually(func() string {
			found, ok := client.FindRepository(id)
			if !ok {
				return "<absent>"
			}
			repo = found
			return found.Status
		}).WithTimeout(15 * time.Second).WithPolling(100 * time.Millisecond).Should(Equal(want))
		return repo
	}

	It("provisions a repository and completes the initial clone", func() {
		status, created := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: commits[0],
		})
		Expect(status).To(Equal(http.StatusAccepted))
		Expect(created.Status).To(Equal("PENDING"))
		Expect(created.PVCPath).To(HavePrefix("sample-service-"))

		repo := waitForStatus(created.ID, "COMPLETED")

		// The working tree carries the pinned commit, not the branch head.
		content, err := os.ReadFile(filepath.Join(storageRoot, repo.PVCPath, "main.go"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(Equal("package main\n"))
		_, err = os.Stat(filepath.Join(storageRoot, repo.PVCPath, "README.md"))
		Expect(os.IsNotExist(err)).To(BeTrue())

		Eventually(recorder.Hits).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 1))
	})

	It("returns the existing record when the same commit is registered twice", func() {
		status, first := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: commits[0],
		})
		Expect(status).To(Equal(http.StatusAccepted))
		waitForStatus(first.ID, "COMPLETED")

		status, second := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: commits[0],
		})
		Expect(status).To(Equal(http.StatusOK))
		Expect(second.ID).To(Equal(first.ID))
		Expect(client.ListRepositories()).To(HaveLen(1))
	})

	It("rejects registrations that fail validation", func() {
		status, _ := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  "not-a-git-url",
			CommitID: commits[0],
		})
		Expect(status).To(Equal(http.StatusUnprocessableEntity))

		status, _ = client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL: fixture.CloneURL,
		})
		Expect(status).To(Equal(http.StatusUnprocessableEntity))

		badSchedule := "late evening"
		status, _ = client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:          fixture.CloneURL,
			CommitID:         commits[0],
			AutoSyncEnabled:  true,
			AutoSyncSchedule: &badSchedule,
		})
		Expect(status).To(Equal(http.StatusUnprocessableEntity))

		Expect(client.ListRepositories()).To(BeEmpty())
	})

	It("marks a repository FAILED when the pinned commit does not exist", func() {
		status, created := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: "0000000000000000000000000000000000000000",
		})
		Expect(status).To(Equal(http.StatusAccepted))

		waitForStatus(created.ID, "FAILED")

		status, logs := client.RepositoryLogs(created.ID)
		Expect(status).To(Equal(http.StatusOK))
		Expect(logs).To(ContainSubstring("failed to resolve commit"))
	})

	It("re-syncs an existing repository on demand", func() {
		_, created := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: commits[1],
		})
		completed := waitForStatus(created.ID, "COMPLETED")
		Expect(completed.LastSyncedAt).NotTo(BeNil())

		status, queued := client.SyncRepository(created.ID)
		Expect(status).To(Equal(http.StatusAccepted))
		Expect(queued.Status).To(Equal("PENDING"))
		Expect(queued.JobName).To(Equal("SYNC"))

		resynced := waitForStatus(created.ID, "COMPLETED")
		Expect(resynced.LastSyncedAt).NotTo(BeNil())
		Expect(*resynced.LastSyncedAt).To(BeTemporally(">", *completed.LastSyncedAt))
	})

	It("serves the task transcript through the logs endpoint", func() {
		_, created := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: commits[0],
		})
		waitForStatus(created.ID, "COMPLETED")

		status, logs := client.RepositoryLogs(created.ID)
		Expect(status).To(Equal(http.StatusOK))
		Expect(logs).To(ContainSubstring("Cloning " + fixture.CloneURL))
		Expect(logs).To(ContainSubstring("Checked out " + commits[0]))
	})

	It("retires a repository and removes its working tree", func() {
		_, created := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  fixture.CloneURL,
			CommitID: commits[0],
		})
		repo := waitForStatus(created.ID, "COMPLETED")

		cloneDir := filepath.Join(storageRoot, repo.PVCPath)
		Expect(cloneDir).To(BeADirectory())
		baseline := recorder.Hits()

		Expect(client.DeleteRepository(created.ID)).To(Equal(http.StatusAccepted))

		Eventually(func() bool {
			_, ok := client.FindRepository(created.ID)
			return ok
		}).WithTimeout(15 * time.Second).WithPolling(100 * time.Millisecond).Should(BeFalse())
		Expect(cloneDir).NotTo(BeADirectory())

		Eventually(recorder.Hits).WithTimeout(5 * time.Second).Should(BeNumerically(">", baseline))
	})

	It("answers 404 for an unknown repository", func() {
		status, _ := client.SyncRepository(uuid.NewString())
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("answers 400 for a malformed repository id", func() {
		Expect(client.DeleteRepository("not-a-uuid")).To(Equal(http.StatusBadRequest))
	})

	Context("settings updates", func() {
		var repoID string

		BeforeEach(func() {
			_, created := client.CreateRepository(helpers.CreateRepositoryRequest{
				RepoURL:  fixture.CloneURL,
				CommitID: commits[0],
			})
			repoID = created.ID
			waitForStatus(repoID, "COMPLETED")
		})

		It("moves and clears the retirement time", func() {
			status, repo := client.UpdateExpiration(repoID, 7)
			Expect(status).To(Equal(http.StatusOK))
			Expect(repo.ExpiredAt).NotTo(BeNil())
			Expect(repo.ExpiredAt.Sub(time.Now())).To(BeNumerically("~", 7*24*time.Hour, time.Hour))

			status, repo = client.UpdateExpiration(repoID, 0)
			Expect(status).To(Equal(http.StatusOK))
			Expect(repo.ExpiredAt).To(BeNil())
		})

		It("validates and applies auto-sync schedules", func() {
			badSchedule := "25:99"
			status, _ := client.UpdateAutoSync(repoID, true, &badSchedule)
			Expect(status).To(Equal(http.StatusUnprocessableEntity))

			schedule := "03:30"
			status, repo := client.UpdateAutoSync(repoID, true, &schedule)
			Expect(status).To(Equal(http.StatusOK))
			Expect(repo.AutoSyncEnabled).To(BeTrue())
			Expect(repo.AutoSyncSchedule).To(HaveValue(Equal("03:30")))

			status, repo = client.UpdateAutoSync(repoID, false, nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(repo.AutoSyncEnabled).To(BeFalse())
			Expect(repo.AutoSyncSchedule).To(BeNil())
		})
	})
})
