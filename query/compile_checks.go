package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-paypal-proxy/core"
)

var (
	_ gocmd.Querier[GetSiteMessage, core.TenantSite]          = (*GetSiteQuery)(nil)
	_ gocmd.Querier[ListSitesMessage, []core.TenantSite]      = (*ListSitesQuery)(nil)
	_ gocmd.Querier[FindTransactionMessage, core.Transaction] = (*FindTransactionQuery)(nil)
)
