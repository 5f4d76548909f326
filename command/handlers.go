package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-paypal-proxy/core"
)

// SiteAdminService is the mutating slice of the proxy service the admin
// command surface needs.
type SiteAdminService interface {
	RegisterSite(ctx context.Context, req core.RegisterSiteRequest) (core.TenantSite, error)
	UpdateSite(ctx context.Context, req core.UpdateSiteRequest) (core.TenantSite, error)
	RotateSiteCredentials(ctx context.Context, id string) (core.TenantSite, error)
	DeleteSite(ctx context.Context, id string) error
	CancelTransaction(ctx context.Context, key core.TransactionKey, reason string) (core.TransitionResult, error)
}

type RegisterSiteCommand struct {
	service SiteAdminService
}

func NewRegisterSiteCommand(service SiteAdminService) *RegisterSiteCommand {
	return &RegisterSiteCommand{service: service}
}

func (c *RegisterSiteCommand) Execute(ctx context.Context, msg RegisterSiteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site admin service is required")
	}
	out, err := c.service.RegisterSite(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateSiteCommand struct {
	service SiteAdminService
}

func NewUpdateSiteCommand(service SiteAdminService) *UpdateSiteCommand {
	return &UpdateSiteCommand{service: service}
}

func (c *UpdateSiteCommand) Execute(ctx context.Context, msg UpdateSiteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site admin service is required")
	}
	out, err := c.service.UpdateSite(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RotateSiteCredentialsCommand struct {
	service SiteAdminService
}

func NewRotateSiteCredentialsCommand(service SiteAdminService) *RotateSiteCredentialsCommand {
	return &RotateSiteCredentialsCommand{service: service}
}

func (c *RotateSiteCredentialsCommand) Execute(ctx context.Context, msg RotateSiteCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site admin service is required")
	}
	out, err := c.service.RotateSiteCredentials(ctx, msg.SiteID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteSiteCommand struct {
	service SiteAdminService
}

func NewDeleteSiteCommand(service SiteAdminService) *DeleteSiteCommand {
	return &DeleteSiteCommand{service: service}
}

func (c *DeleteSiteCommand) Execute(ctx context.Context, msg DeleteSiteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site admin service is required")
	}
	return c.service.DeleteSite(ctx, msg.SiteID)
}

type CancelTransactionCommand struct {
	service SiteAdminService
}

func NewCancelTransactionCommand(service SiteAdminService) *CancelTransactionCommand {
	return &CancelTransactionCommand{service: service}
}

func (c *CancelTransactionCommand) Execute(ctx context.Context, msg CancelTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site admin service is required")
	}
	out, err := c.service.CancelTransaction(ctx, msg.Key, msg.Reason)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
