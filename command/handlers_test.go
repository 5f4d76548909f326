package command

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-paypal-proxy/core"
)

type stubSiteAdminService struct {
	registerFn func(ctx context.Context, req core.RegisterSiteRequest) (core.TenantSite, error)
	updateFn   func(ctx context.Context, req core.UpdateSiteRequest) (core.TenantSite, error)
	rotateFn   func(ctx context.Context, id string) (core.TenantSite, error)
	deleteFn   func(ctx context.Context, id string) error
	cancelFn   func(ctx context.Context, key core.TransactionKey, reason string) (core.TransitionResult, error)
}

func (s stubSiteAdminService) RegisterSite(ctx context.Context, req core.RegisterSiteRequest) (core.TenantSite, error) {
	return s.registerFn(ctx, req)
}

func (s stubSiteAdminService) UpdateSite(ctx context.Context, req core.UpdateSiteRequest) (core.TenantSite, error) {
	return s.updateFn(ctx, req)
}

func (s stubSiteAdminService) RotateSiteCredentials(ctx context.Context, id string) (core.TenantSite, error) {
	return s.rotateFn(ctx, id)
}

func (s stubSiteAdminService) DeleteSite(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func (s stubSiteAdminService) CancelTransaction(ctx context.Context, key core.TransactionKey, reason string) (core.TransitionResult, error) {
	return s.cancelFn(ctx, key, reason)
}

func TestRegisterSiteCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.TenantSite{ID: "site_1", URL: "https://shop.example.com", APIKey: "key_1"}
	called := false

	svc := stubSiteAdminService{
		registerFn: func(_ context.Context, req core.RegisterSiteRequest) (core.TenantSite, error) {
			called = true
			if req.URL != "https://shop.example.com" {
				t.Fatalf("unexpected url %q", req.URL)
			}
			return expected, nil
		},
	}

	cmd := NewRegisterSiteCommand(svc)
	collector := gocmd.NewResult[core.TenantSite]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, RegisterSiteMessage{Request: core.RegisterSiteRequest{
		URL:  "https://shop.example.com",
		Name: "Example Shop",
	}})
	if err != nil {
		t.Fatalf("execute register site: %v", err)
	}
	if !called {
		t.Fatalf("expected register site invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != expected.ID || result.APIKey != expected.APIKey {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestSiteCommands_DelegateToService(t *testing.T) {
	t.Run("update", func(t *testing.T) {
		called := false
		svc := stubSiteAdminService{
			updateFn: func(_ context.Context, req core.UpdateSiteRequest) (core.TenantSite, error) {
				called = true
				if req.ID != "site_1" || req.Status != core.SiteStatusInactive {
					t.Fatalf("unexpected update payload: %#v", req)
				}
				return core.TenantSite{ID: req.ID, Status: req.Status}, nil
			},
		}
		cmd := NewUpdateSiteCommand(svc)
		err := cmd.Execute(context.Background(), UpdateSiteMessage{Request: core.UpdateSiteRequest{
			ID:     "site_1",
			Status: core.SiteStatusInactive,
		}})
		if err != nil {
			t.Fatalf("execute update site: %v", err)
		}
		if !called {
			t.Fatalf("expected update site invocation")
		}
	})

	t.Run("rotate credentials", func(t *testing.T) {
		rotated := core.TenantSite{ID: "site_1", APIKey: "key_2", APISecret: "secret_2"}
		svc := stubSiteAdminService{
			rotateFn: func(_ context.Context, id string) (core.TenantSite, error) {
				if id != "site_1" {
					t.Fatalf("unexpected site id %q", id)
				}
				return rotated, nil
			},
		}
		cmd := NewRotateSiteCredentialsCommand(svc)
		collector := gocmd.NewResult[core.TenantSite]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RotateSiteCredentialsMessage{SiteID: "site_1"}); err != nil {
			t.Fatalf("execute rotate credentials: %v", err)
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected rotated site result")
		}
		if stored.APIKey != rotated.APIKey {
			t.Fatalf("unexpected rotated key: %#v", stored)
		}
	})

	t.Run("delete", func(t *testing.T) {
		called := false
		svc := stubSiteAdminService{
			deleteFn: func(_ context.Context, id string) error {
				called = true
				if id != "site_1" {
					t.Fatalf("unexpected site id %q", id)
				}
				return nil
			},
		}
		cmd := NewDeleteSiteCommand(svc)
		if err := cmd.Execute(context.Background(), DeleteSiteMessage{SiteID: "site_1"}); err != nil {
			t.Fatalf("execute delete site: %v", err)
		}
		if !called {
			t.Fatalf("expected delete site invocation")
		}
	})

	t.Run("cancel transaction", func(t *testing.T) {
		key := core.TransactionKey{SiteID: "site_1", OrderID: "order_9", PayPalOrderID: "5O1"}
		svc := stubSiteAdminService{
			cancelFn: func(_ context.Context, got core.TransactionKey, reason string) (core.TransitionResult, error) {
				if got != key || reason != "abandoned checkout" {
					t.Fatalf("unexpected cancel payload: %#v %q", got, reason)
				}
				return core.TransitionResult{
					Transaction: core.Transaction{Status: core.TransactionStatusCancelled},
					Applied:     true,
				}, nil
			},
		}
		cmd := NewCancelTransactionCommand(svc)
		collector := gocmd.NewResult[core.TransitionResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, CancelTransactionMessage{Key: key, Reason: "abandoned checkout"})
		if err != nil {
			t.Fatalf("execute cancel transaction: %v", err)
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected cancel result")
		}
		if !stored.Applied || stored.Transaction.Status != core.TransactionStatusCancelled {
			t.Fatalf("unexpected cancel result: %#v", stored)
		}
	})
}

func TestCommandMessages_Validate(t *testing.T) {
	if err := (RegisterSiteMessage{}).Validate(); err == nil {
		t.Fatalf("expected register validation error for missing url")
	}
	if err := (UpdateSiteMessage{}).Validate(); err == nil {
		t.Fatalf("expected update validation error for missing id")
	}
	if err := (DeleteSiteMessage{}).Validate(); err == nil {
		t.Fatalf("expected delete validation error for missing id")
	}
	if err := (CancelTransactionMessage{}).Validate(); err == nil {
		t.Fatalf("expected cancel validation error for empty key")
	}
	msg := CancelTransactionMessage{Key: core.TransactionKey{PayPalOrderID: "5O1"}}
	if err := msg.Validate(); err != nil {
		t.Fatalf("partial key should validate: %v", err)
	}
}

func TestCommands_RequireService(t *testing.T) {
	if err := (&RegisterSiteCommand{}).Execute(context.Background(), RegisterSiteMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
	if err := (&DeleteSiteCommand{}).Execute(context.Background(), DeleteSiteMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}
