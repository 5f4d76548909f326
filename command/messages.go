package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-paypal-proxy/core"
)

const (
	TypeRegisterSite          = "proxy.command.site.register"
	TypeUpdateSite            = "proxy.command.site.update"
	TypeRotateSiteCredentials = "proxy.command.site.rotate_credentials"
	TypeDeleteSite            = "proxy.command.site.delete"
	TypeCancelTransaction     = "proxy.command.transaction.cancel"
)

type RegisterSiteMessage struct {
	Request core.RegisterSiteRequest
}

func (RegisterSiteMessage) Type() string { return TypeRegisterSite }

func (m RegisterSiteMessage) Validate() error {
	if strings.TrimSpace(m.Request.URL) == "" {
		return fmt.Errorf("command: site url is required")
	}
	return nil
}

type UpdateSiteMessage struct {
	Request core.UpdateSiteRequest
}

func (UpdateSiteMessage) Type() string { return TypeUpdateSite }

func (m UpdateSiteMessage) Validate() error {
	if strings.TrimSpace(m.Request.ID) == "" {
		return fmt.Errorf("command: site id is required")
	}
	return nil
}

type RotateSiteCredentialsMessage struct {
	SiteID string
}

func (RotateSiteCredentialsMessage) Type() string { return TypeRotateSiteCredentials }

func (m RotateSiteCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.SiteID) == "" {
		return fmt.Errorf("command: site id is required")
	}
	return nil
}

type DeleteSiteMessage struct {
	SiteID string
}

func (DeleteSiteMessage) Type() string { return TypeDeleteSite }

func (m DeleteSiteMessage) Validate() error {
	if strings.TrimSpace(m.SiteID) == "" {
		return fmt.Errorf("command: site id is required")
	}
	return nil
}

type CancelTransactionMessage struct {
	Key    core.TransactionKey
	Reason string
}

func (CancelTransactionMessage) Type() string { return TypeCancelTransaction }

func (m CancelTransactionMessage) Validate() error {
	if m.Key.Empty() {
		return fmt.Errorf("command: transaction key is required")
	}
	return nil
}
