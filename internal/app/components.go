package app

import (
	"github.com/crpaas/repo-custodian/internal/controller"
	"github.com/crpaas/repo-custodian/internal/service"
	"github.com/crpaas/repo-custodian/internal/store"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Controller runs the background reconciliation loops
	Controller *controller.Controller

	// Service provides the repository lifecycle business logic
	Service service.Service

	// Store persists repository records; closed on shutdown
	Store store.Store
}
