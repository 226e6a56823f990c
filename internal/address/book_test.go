package address

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeAddressAPI struct {
	mu        sync.Mutex
	addresses []Address
	listCalls int
	deleteErr error
	nextID    int64
}

func (f *fakeAddressAPI) Addresses(context.Context) ([]Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]Address, len(f.addresses))
	copy(out, f.addresses)
	return out, nil
}

func (f *fakeAddressAPI) CreateAddress(_ context.Context, draft Address) (Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	draft.ID = f.nextID + 100
	f.addresses = append(f.addresses, draft)
	return draft, nil
}

func (f *fakeAddressAPI) DeleteAddress(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.addresses[:0]
	for _, a := range f.addresses {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.addresses = kept
	return nil
}

func seededAPI() *fakeAddressAPI {
	return &fakeAddressAPI{addresses: []Address{
		{ID: 1, Name: "Home", City: "Riyadh"},
		{ID: 2, Name: "Office", City: "Jeddah"},
	}}
}

func TestRefreshAndSelect(t *testing.T) {
	api := seededAPI()
	book := NewBook(api, nil)

	if err := book.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := len(book.Addresses()); got != 2 {
		t.Fatalf("expected 2 addresses, got %d", got)
	}
	if !book.Select(2) {
		t.Fatal("expected selection of cached address to apply")
	}
	if book.Select(999) {
		t.Fatal("unknown address must not select")
	}
	selected, ok := book.Selected()
	if !ok || selected.ID != 2 {
		t.Fatalf("unexpected selection %+v ok=%v", selected, ok)
	}
}

func TestDeleteTriggersExactlyOneRefetch(t *testing.T) {
	api := seededAPI()
	book := NewBook(api, nil)
	ctx := context.Background()
	_ = book.Refresh(ctx)
	baseline := api.listCalls

	if err := book.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := api.listCalls - baseline; got != 1 {
		t.Fatalf("delete must re-fetch exactly once, got %d", got)
	}
	if got := len(book.Addresses()); got != 1 {
		t.Fatalf("expected 1 address after delete, got %d", got)
	}
}

func TestDeletingSelectedAddressClearsSelection(t *testing.T) {
	api := seededAPI()
	book := NewBook(api, nil)
	ctx := context.Background()
	_ = book.Refresh(ctx)
	book.Select(1)

	deselected := false
	book.SetOnDeselect(func() { deselected = true })

	if err := book.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := book.Selected(); ok {
		t.Fatal("no address may remain selected after deleting the selected one")
	}
	if !deselected {
		t.Fatal("deselect callback must fire")
	}
}

func TestDeletingOtherAddressKeepsSelection(t *testing.T) {
	api := seededAPI()
	book := NewBook(api, nil)
	ctx := context.Background()
	_ = book.Refresh(ctx)
	book.Select(2)

	if err := book.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	selected, ok := book.Selected()
	if !ok || selected.ID != 2 {
		t.Fatalf("selection of surviving address must persist: %+v ok=%v", selected, ok)
	}
}

func TestDeleteFailureDoesNotRefetch(t *testing.T) {
	api := seededAPI()
	api.deleteErr = errors.New("boom")
	book := NewBook(api, nil)
	ctx := context.Background()
	_ = book.Refresh(ctx)
	baseline := api.listCalls

	if err := book.Delete(ctx, 1); err == nil {
		t.Fatal("expected delete error")
	}
	if api.listCalls != baseline {
		t.Fatal("failed delete must not re-fetch")
	}
}

func TestCreateAppendsAndRefetches(t *testing.T) {
	api := seededAPI()
	book := NewBook(api, nil)
	ctx := context.Background()
	_ = book.Refresh(ctx)

	created, err := book.Create(ctx, Address{Name: "Warehouse", City: "Dammam"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created address must carry the remote id")
	}
	if got := len(book.Addresses()); got != 3 {
		t.Fatalf("expected 3 addresses after create, got %d", got)
	}
}
