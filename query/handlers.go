package query

import (
	"context"

	"github.com/goliatone/go-paypal-proxy/core"
)

type SiteReader interface {
	GetSite(ctx context.Context, id string) (core.TenantSite, error)
	ListSites(ctx context.Context) ([]core.TenantSite, error)
}

type TransactionReader interface {
	FindTransaction(ctx context.Context, key core.TransactionKey) (core.Transaction, error)
}

type GetSiteQuery struct {
	reader SiteReader
}

func NewGetSiteQuery(reader SiteReader) *GetSiteQuery {
	return &GetSiteQuery{reader: reader}
}

func (q *GetSiteQuery) Query(ctx context.Context, msg GetSiteMessage) (core.TenantSite, error) {
	if q == nil || q.reader == nil {
		return core.TenantSite{}, queryDependencyError("query: site reader is required")
	}
	return q.reader.GetSite(ctx, msg.SiteID)
}

type ListSitesQuery struct {
	reader SiteReader
}

func NewListSitesQuery(reader SiteReader) *ListSitesQuery {
	return &ListSitesQuery{reader: reader}
}

func (q *ListSitesQuery) Query(ctx context.Context, msg ListSitesMessage) ([]core.TenantSite, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: site reader is required")
	}
	return q.reader.ListSites(ctx)
}

type FindTransactionQuery struct {
	reader TransactionReader
}

func NewFindTransactionQuery(reader TransactionReader) *FindTransactionQuery {
	return &FindTransactionQuery{reader: reader}
}

func (q *FindTransactionQuery) Query(ctx context.Context, msg FindTransactionMessage) (core.Transaction, error) {
	if q == nil || q.reader == nil {
		return core.Transaction{}, queryDependencyError("query: transaction reader is required")
	}
	return q.reader.FindTransaction(ctx, msg.Key)
}
