package integration

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/crpaas/repo-custodian/test-integration/custodian-api/helpers"
)

var _ = Describe("Service Endpoints", Label("endpoints"), func() {
	var (
		tempDir string
		server  *helpers.ServerTestHelper
		client  *helpers.APIClient
	)

	BeforeEach(func() {
		tempDir = createTempDir("endpoints-test-")
		server = helpers.NewServerTestHelper(ctx, helpers.ServerConfig{
			StorageRoot:     filepath.Join(tempDir, "storage"),
			OpenGrokBaseURL: "https://opengrok.example.com",
		})
		client = helpers.NewAPIClient(server.BaseURL())
	})

	AfterEach(func() {
		server.Stop()
		cleanupTempDir(tempDir)
	})

	It("reports health, readiness and version", func() {
		status, body := client.Get("/health")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"status":"healthy"`))

		status, body = client.Get("/readiness")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"status":"ready"`))

		status, body = client.Get("/version")
		Expect(status).To(Equal(http.StatusOK))
		var version map[string]string
		Expect(json.Unmarshal(body, &version)).To(Succeed())
		Expect(version).To(HaveKey("version"))
		Expect(version).To(HaveKey("go_version"))
	})

	It("hands out the configured browse URL", func() {
		status, body := client.Get("/api/v1/config")
		Expect(status).To(Equal(http.StatusOK))

		var cfg struct {
			OpenGrokBaseURL string `json:"opengrok_base_url"`
		}
		Expect(json.Unmarshal(body, &cfg)).To(Succeed())
		Expect(cfg.OpenGrokBaseURL).To(Equal("https://opengrok.example.com"))
	})

	It("declines deployment inspection without the kubernetes backend", func() {
		status, _ := client.Get("/api/v1/opengrok/status")
		Expect(status).To(Equal(http.StatusServiceUnavailable))

		status, _ = client.Get("/api/v1/opengrok/logs?pod_name=opengrok-0")
		Expect(status).To(Equal(http.StatusServiceUnavailable))
	})

	It("starts with an empty repository list", func() {
		Expect(client.ListRepositories()).To(BeEmpty())
	})
})
