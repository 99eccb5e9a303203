// Package service holds the implementation of the crosspost service
// interface: the business logic of scheduling, cancelling and listing posts.
package service

import (
	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/crosspost"
	kitlog "github.com/go-kit/log"
)

// Service is the concrete implementation of crosspost.Service.
type Service struct {
	ds     crosspost.Datastore
	logger kitlog.Logger
	clock  clock.Clock
}

var _ crosspost.Service = (*Service)(nil)

// NewService creates a new service for the scheduling pipeline.
func NewService(ds crosspost.Datastore, logger kitlog.Logger, c clock.Clock) *Service {
	return &Service{
		ds:     ds,
		logger: logger,
		clock:  c,
	}
}
