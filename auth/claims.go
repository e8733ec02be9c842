// Package auth validates the JWT bearer tokens callers present to the
// gateway and translates their claims into pipeline metadata.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims represents the custom claims in the JWT token. Subject carries the
// user id; the tenant claims mirror the tenant record the caller belongs to.
type Claims struct {
	jwt.RegisteredClaims
	FirstName        string `json:"firstName,omitempty"`
	Role             string `json:"role,omitempty"`
	Type             string `json:"type,omitempty"`
	BusinessID       string `json:"businessId,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	TenantGlobal     bool   `json:"tenantGlobal,omitempty"`
	PipelineTenantID string `json:"pipelineTenantId,omitempty"`
}

// Validate checks that all required claims are present and well formed.
func (c *Claims) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if c.TenantID == "" {
		return fmt.Errorf("%w: tenantId", ErrMissingClaim)
	}
	if c.Role != "" {
		role := models.UserRole(c.Role)
		if role != models.RoleNormal && role != models.RoleAdmin {
			return fmt.Errorf("invalid role value: %s", c.Role)
		}
	}
	return nil
}

// ToMeta builds the request metadata every action invoked on behalf of this
// caller will carry.
func (c *Claims) ToMeta() *pipeline.Meta {
	return &pipeline.Meta{
		Caller: &models.User{
			ID:         c.Subject,
			FirstName:  c.FirstName,
			Role:       models.UserRole(c.Role),
			Type:       c.Type,
			BusinessID: c.BusinessID,
		},
		Tenant: &models.Tenant{
			ID:               c.TenantID,
			Global:           c.TenantGlobal,
			PipelineTenantID: c.PipelineTenantID,
		},
	}
}
