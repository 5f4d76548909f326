package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-paypal-proxy/core"
)

const (
	TypeGetSite         = "proxy.query.site.get"
	TypeListSites       = "proxy.query.site.list"
	TypeFindTransaction = "proxy.query.transaction.find"
)

type GetSiteMessage struct {
	SiteID string
}

func (GetSiteMessage) Type() string { return TypeGetSite }

func (m GetSiteMessage) Validate() error {
	if strings.TrimSpace(m.SiteID) == "" {
		return fmt.Errorf("query: site id is required")
	}
	return nil
}

type ListSitesMessage struct{}

func (ListSitesMessage) Type() string { return TypeListSites }

func (ListSitesMessage) Validate() error { return nil }

type FindTransactionMessage struct {
	Key core.TransactionKey
}

func (FindTransactionMessage) Type() string { return TypeFindTransaction }

func (m FindTransactionMessage) Validate() error {
	if m.Key.Empty() {
		return fmt.Errorf("query: transaction key is required")
	}
	return nil
}
