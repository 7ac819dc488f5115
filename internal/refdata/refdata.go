// Package refdata validates company and security-class references against
// the reference-data collaborator. The engine only ever asks existence
// questions; reference-data management itself lives elsewhere.
package refdata

import (
	"context"
	"strings"
	"sync"
)

// Directory answers existence questions about companies and their
// security classes.
type Directory interface {
	CompanyExists(ctx context.Context, companyID string) (bool, error)
	SecurityClassExists(ctx context.Context, companyID, securityClassID string) (bool, error)
}

// Registry is a seedable in-memory Directory for single-process
// deployments and tests.
type Registry struct {
	mu        sync.RWMutex
	companies map[string]map[string]bool // company_id → security_class_id set
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		companies: make(map[string]map[string]bool),
	}
}

// Add registers a company and any number of its security classes.
func (r *Registry) Add(companyID string, securityClassIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	classes, ok := r.companies[companyID]
	if !ok {
		classes = make(map[string]bool)
		r.companies[companyID] = classes
	}
	for _, id := range securityClassIDs {
		classes[id] = true
	}
}

// CompanyExists reports whether the company is registered.
func (r *Registry) CompanyExists(_ context.Context, companyID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.companies[companyID]
	return ok, nil
}

// SecurityClassExists reports whether the class is registered under the
// company.
func (r *Registry) SecurityClassExists(_ context.Context, companyID, securityClassID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.companies[companyID][securityClassID], nil
}

// Seed populates the registry from a comma-separated list of
// "companyID:securityClassID" pairs, e.g. "acme:series-a,acme:common".
// Malformed entries are skipped.
func (r *Registry) Seed(spec string) {
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		r.Add(parts[0], parts[1])
	}
}
