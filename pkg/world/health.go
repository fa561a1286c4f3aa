package world

import (
	"context"

	"github.com/ejc3/workflow/pkg/storage"
)

// Status is the aggregate health payload spec.md §6 describes: the
// adapter's liveness probe plus a trivial runs.list({limit:1}) call,
// folded with the resolved tenant identity.
type Status struct {
	Healthy  bool     `json:"healthy"`
	DB       bool     `json:"db"`
	Storage  bool     `json:"storage"`
	Identity Identity `json:"identity"`
}

// Health aggregates adapter.IsHealthy() and a one-row runs.list() into the
// status payload the out-of-scope health-check HTTP surface exposes.
func (w *World) Health(ctx context.Context, identity Identity) Status {
	dbOK := w.Adapter.IsHealthy(ctx)
	storageOK := dbOK
	if dbOK {
		if _, err := w.Storage.Runs.List(ctx, storage.ListRunsParams{Page: storage.Page{Limit: 1}}); err != nil {
			storageOK = false
		}
	}
	return Status{
		Healthy:  dbOK && storageOK,
		DB:       dbOK,
		Storage:  storageOK,
		Identity: identity,
	}
}
