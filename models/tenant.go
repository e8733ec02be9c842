package models

// Tenant represents an isolation boundary ("buildable") under which resources
// are scoped. A global tenant does not own data directly; reads and writes
// performed under it are redirected to its PipelineTenantID.
type Tenant struct {
	ID               string `json:"_id" db:"id"`
	Name             string `json:"name,omitempty" db:"name"`
	Global           bool   `json:"__global,omitempty" db:"global"`
	PipelineTenantID string `json:"pipelineTenantId,omitempty" db:"pipeline_tenant_id"`
}

// EffectiveID returns the tenant id used for query scoping. Global tenants
// scope against their designated pipeline tenant instead of themselves.
func (t *Tenant) EffectiveID() string {
	if t.Global && t.PipelineTenantID != "" {
		return t.PipelineTenantID
	}
	return t.ID
}
