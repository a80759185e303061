package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/crpaas/repo-custodian/test-integration/custodian-api/helpers"
)

var _ = Describe("Snapshot Export and Import", Label("snapshot"), func() {
	var (
		tempDir     string
		storageRoot string
		gitHelper   *helpers.GitTestHelper
		alpha       *helpers.GitTestRepository
		beta        *helpers.GitTestRepository
		alphaCommit string
		betaCommit  string
		server      *helpers.ServerTestHelper
		client      *helpers.APIClient
	)

	BeforeEach(func() {
		tempDir = createTempDir("snapshot-test-")
		storageRoot = filepath.Join(tempDir, "storage")
		Expect(os.MkdirAll(storageRoot, 0o750)).To(Succeed())

		gitHelper = helpers.NewGitTestHelper()
		alpha = gitHelper.CreateRepository("alpha-service")
		alphaCommit = gitHelper.AddCommit(alpha, "alpha.txt", "alpha\n", "Initial commit")
		beta = gitHelper.CreateRepository("beta-service")
		betaCommit = gitHelper.AddCommit(beta, "beta.txt", "beta\n", "Initial commit")

		server = helpers.NewServerTestHelper(ctx, helpers.ServerConfig{
			StorageRoot: storageRoot,
		})
		client = helpers.NewAPIClient(server.BaseURL())
	})

	AfterEach(func() {
		server.Stop()
		gitHelper.Cleanup()
		cleanupTempDir(tempDir)
	})

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

	It("recreates exported definitions that were retired", func() {
		retention := 5
		schedule := "04:30"
		_, alphaRepo := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:          alpha.CloneURL,
			CommitID:         alphaCommit,
			RetentionDays:    &retention,
			AutoSyncEnabled:  true,
			AutoSyncSchedule: &schedule,
		})
		_, betaRepo := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  beta.CloneURL,
			CommitID: betaCommit,
		})
		alphaRecord := waitForStatus(alphaRepo.ID, "COMPLETED")
		waitForStatus(betaRepo.ID, "COMPLETED")

		snapshot := client.ExportRepositories()
		Expect(snapshot.Repositories).To(HaveLen(2))

		var alphaEntry helpers.ExportedRepository
		for _, entry := range snapshot.Repositories {
			if entry.PVCPath == alphaRecord.PVCPath {
				alphaEntry = entry
			}
		}
		Expect(alphaEntry.RepoURL).To(Equal(alpha.CloneURL))
		// Retention is exported as whole days left, so a freshly set five
		// day retention reads back as four or five.
		Expect(alphaEntry.RetentionDays).NotTo(BeNil())
		Expect(*alphaEntry.RetentionDays).To(BeNumerically("~", 5, 1))
		Expect(alphaEntry.AutoSyncEnabled).To(BeTrue())
		Expect(alphaEntry.AutoSyncSchedule).To(HaveValue(Equal("04:30")))

		Expect(client.DeleteRepository(alphaRepo.ID)).To(Equal(http.StatusAccepted))
		Eventually(func() bool {
			_, ok := client.FindRepository(alphaRepo.ID)
			return ok
		}).WithTimeout(15 * time.Second).WithPolling(100 * time.Millisecond).Should(BeFalse())

		status, summary := client.ImportRepositories(snapshot.Repositories)
		Expect(status).To(Equal(http.StatusOK))
		Expect(summary.Total).To(Equal(2))
		Expect(summary.Created).To(Equal(1))
		Expect(summary.Skipped).To(Equal(1))
		Expect(summary.Errors).To(BeZero())

		restored, ok := client.FindRepositoryByPath(alphaRecord.PVCPath)
		Expect(ok).To(BeTrue())
		restored = waitForStatus(restored.ID, "COMPLETED")
		Expect(restored.ID).NotTo(Equal(alphaRepo.ID))
		Expect(restored.RepoURL).To(Equal(alpha.CloneURL))
		Expect(restored.CommitID).To(Equal(alphaCommit))
		Expect(restored.ExpiredAt).NotTo(BeNil())
		Expect(restored.AutoSyncEnabled).To(BeTrue())
		Expect(restored.AutoSyncSchedule).To(HaveValue(Equal("04:30")))

		Expect(filepath.Join(storageRoot, alphaRecord.PVCPath)).To(BeADirectory())
	})

	It("skips entries whose clone directory is still managed", func() {
		_, created := client.CreateRepository(helpers.CreateRepositoryRequest{
			RepoURL:  beta.CloneURL,
			CommitID: betaCommit,
		})
		waitForStatus(created.ID, "COMPLETED")

		snapshot := client.ExportRepositories()
		Expect(snapshot.Repositories).To(HaveLen(1))

		status, summary := client.ImportRepositories(snapshot.Repositories)
		Expect(status).To(Equal(http.StatusOK))
		Expect(summary.Total).To(Equal(1))
		Expect(summary.Created).To(BeZero())
		Expect(summary.Skipped).To(Equal(1))
		Expect(summary.Errors).To(BeZero())
		Expect(client.ListRepositories()).To(HaveLen(1))
	})
})
