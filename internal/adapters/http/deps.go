package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/stopgrid/internal/adapters/postgres"
	"github.com/samirrijal/stopgrid/internal/adapters/valkey"
	"github.com/samirrijal/stopgrid/internal/core/ports"
	"github.com/samirrijal/stopgrid/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Accessibility *usecases.AccessibilityService
	Stops         ports.StopRepository
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
}
