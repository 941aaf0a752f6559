package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/raycross/internal/adapters/postgres"
	"github.com/samirrijal/raycross/internal/adapters/valkey"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions     *usecases.SessionService
	Projections  *usecases.ProjectionService
	Observations ports.ObservationRepository
	NATS         *nats.Conn
	DB           *postgres.DB
	Cache        *valkey.Cache
}
