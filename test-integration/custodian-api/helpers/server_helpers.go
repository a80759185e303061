package helpers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/onsi/gomega"

	custodianapp "github.com/crpaas/repo-custodian/internal/app"
	"github.com/crpaas/repo-custodian/internal/config"
)

// ServerConfig parameterizes a test server instance.
type ServerConfig struct {
	// StorageRoot is where the inline backend materializes clones.
	StorageRoot string

	// ReindexURL, when set, wires the real reindex notifier at this URL.
	ReindexURL string

	// OpenGrokBaseURL is handed out through the config endpoint.
	OpenGrokBaseURL string
}

// ServerTestHelper runs a fully wired custodian server: in-memory
// store, inline execution backend and short controller intervals.
type ServerTestHelper struct {
	app        *custodianapp.CustodianApp
	baseURL    string
	httpClient *http.Client
	serverErr  chan error
}

// NewServerTestHelper builds and starts the server, then blocks until
// the health endpoint answers.
func NewServerTestHelper(ctx context.Context, cfg ServerConfig) *ServerTestHelper {
	address := freeAddress()

	appCfg := &config.Config{
		Server:  config.ServerConfig{Address: address},
		Storage: config.StorageConfig{Mode: config.StorageModeMemory},
		Backend: config.BackendConfig{
			Direct: &config.DirectBackendConfig{Root: cfg.StorageRoot},
		},
		Controller: config.ControllerConfig{
			WatchInterval:      "100ms",
			AutoSyncInterval:   "250ms",
			SweepInterval:      "250ms",
			MaxConcurrentTasks: 4,
		},
	}
	if cfg.ReindexURL != "" {
		appCfg.Reindex = &config.ReindexConfig{URL: cfg.ReindexURL}
	}
	if cfg.OpenGrokBaseURL != "" {
		appCfg.OpenGrok = &config.OpenGrokConfig{BaseURL: cfg.OpenGrokBaseURL}
	}

	application, err := custodianapp.NewCustodianApp(ctx, custodianapp.WithConfig(appCfg))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	s := &ServerTestHelper{
		app:        application,
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		serverErr:  make(chan error, 1),
	}

	go func() {
		s.serverErr <- application.Start()
	}()
	s.waitReady()

	return s
}

// BaseURL returns the server's root URL.
func (s *ServerTestHelper) BaseURL() string {
	return s.baseURL
}

// Stop shuts the server down and asserts a clean exit.
func (s *ServerTestHelper) Stop() {
	gomega.Expect(s.app.Stop(15 * time.Second)).To(gomega.Succeed())
	gomega.Eventually(s.serverErr).WithTimeout(5 * time.Second).Should(gomega.Receive(gomega.BeNil()))
}

func (s *ServerTestHelper) waitReady() {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/health")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health answered %d", resp.StatusCode)
		}
		return nil
	}).WithTimeout(10 * time.Second).WithPolling(50 * time.Millisecond).Should(gomega.Succeed())
}

// freeAddress reserves an ephemeral port and releases it for the server
// to bind. The window between closing and rebinding is small enough for
// tests.
func freeAddress() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	addr := l.Addr().String()
	gomega.Expect(l.Close()).To(gomega.Succeed())
	return addr
}
