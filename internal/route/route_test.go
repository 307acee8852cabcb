// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package route

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/refsync/internal/backend"
	"github.com/pdiddy/refsync/pkg/types"
)

// fakeProber returns a fixed connectivity state.
type fakeProber struct {
	state types.ConnectivityState
}

func (p *fakeProber) Probe(_ context.Context, _ bool) types.ConnectivityState { return p.state }

func online() *fakeProber {
	return &fakeProber{state: types.ConnectivityState{
		CheckedAt:          time.Now(),
		InternetReachable:  true,
		RemoteAPIReachable: true,
	}}
}

func offline() *fakeProber {
	return &fakeProber{state: types.ConnectivityState{CheckedAt: time.Now()}}
}

func degraded() *fakeProber {
	return &fakeProber{state: types.ConnectivityState{
		CheckedAt:         time.Now(),
		InternetReachable: true,
	}}
}

// fakeAdapter counts calls and answers from function hooks; unset hooks
// report ErrUnsupported.
type fakeAdapter struct {
	kind    types.BackendKind
	calls   int
	items   func() ([]types.BibRecord, error)
	create  func() (string, error)
	del     func() error
	item    func(key string) (*types.BibRecord, error)
	cols    func() ([]types.Collection, error)
	mkCol   func(name string) (string, error)
	assign  func(itemKey, collectionKey string) error
	colItem func(key string) ([]types.BibRecord, error)
}

func (f *fakeAdapter) Kind() types.BackendKind { return f.kind }

func (f *fakeAdapter) Items(_ context.Context, _ backend.ItemQuery) ([]types.BibRecord, error) {
	f.calls++
	if f.items == nil {
		return nil, backend.ErrUnsupported
	}
	return f.items()
}

func (f *fakeAdapter) Item(_ context.Context, key string) (*types.BibRecord, error) {
	f.calls++
	if f.item == nil {
		return nil, backend.ErrUnsupported
	}
	return f.item(key)
}

func (f *fakeAdapter) Collections(_ context.Context) ([]types.Collection, error) {
	f.calls++
	if f.cols == nil {
		return nil, backend.ErrUnsupported
	}
	return f.cols()
}

func (f *fakeAdapter) CollectionItems(_ context.Context, key string) ([]types.BibRecord, error) {
	f.calls++
	if f.colItem == nil {
		return nil, backend.ErrUnsupported
	}
	return f.colItem(key)
}

func (f *fakeAdapter) Create(_ context.Context, _ types.BibRecord, _ string) (string, error) {
	f.calls++
	if f.create == nil {
		return "", backend.ErrUnsupported
	}
	return f.create()
}

func (f *fakeAdapter) Delete(_ context.Context, _ string) error {
	f.calls++
	if f.del == nil {
		return backend.ErrUnsupported
	}
	return f.del()
}

func (f *fakeAdapter) CreateCollection(_ context.Context, name string) (string, error) {
	f.calls++
	if f.mkCol == nil {
		return "", backend.ErrUnsupported
	}
	return f.mkCol(name)
}

func (f *fakeAdapter) AddToCollection(_ context.Context, itemKey, collectionKey string) error {
	f.calls++
	if f.assign == nil {
		return backend.ErrUnsupported
	}
	return f.assign(itemKey, collectionKey)
}

func TestCreateRefusedOffline(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, create: func() (string, error) { return "K", nil }}
	connector := &fakeAdapter{kind: types.BackendConnector, create: func() (string, error) { return "", nil }}
	r := New(offline(), nil, remote, connector)

	_, _, err := r.Create(context.Background(), types.BibRecord{Title: "x"}, "")
	if !errors.Is(err, ErrWriteUnavailableOffline) {
		t.Fatalf("err = %v, want ErrWriteUnavailableOffline", err)
	}
	if remote.calls != 0 || connector.calls != 0 {
		t.Errorf("offline refusal must not touch backends (remote %d, connector %d calls)", remote.calls, connector.calls)
	}
}

func TestCreateFallsBackToConnector(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, create: func() (string, error) {
		return "", errors.New("cloud down")
	}}
	connector := &fakeAdapter{kind: types.BackendConnector, create: func() (string, error) { return "", nil }}
	var log bytes.Buffer
	r := New(online(), &log, remote, connector)

	key, dec, err := r.Create(context.Background(), types.BibRecord{Title: "Fallback Paper"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key != "" {
		t.Errorf("key = %q, connector saves carry no key", key)
	}
	if dec.Chosen != types.BackendConnector {
		t.Errorf("Chosen = %s, want connector", dec.Chosen)
	}
	if !reflect.DeepEqual(dec.FallbackChain, []types.BackendKind{types.BackendRemote}) {
		t.Errorf("FallbackChain = %v, want [remote]", dec.FallbackChain)
	}
	if dec.Verified {
		t.Error("fire-and-forget save must not report Verified")
	}
	if !strings.Contains(log.String(), "pending sync") {
		t.Errorf("log missing pending-sync note: %q", log.String())
	}
}

func TestCreateVerifiedOnRemote(t *testing.T) {
	remote := &fakeAdapter{
		kind:   types.BackendRemote,
		create: func() (string, error) { return "NEWKEY99", nil },
		item: func(key string) (*types.BibRecord, error) {
			if key != "NEWKEY99" {
				t.Errorf("verification read key = %q, want NEWKEY99", key)
			}
			return &types.BibRecord{Key: key}, nil
		},
	}
	r := New(online(), nil, remote, &fakeAdapter{kind: types.BackendConnector})

	key, dec, err := r.Create(context.Background(), types.BibRecord{Title: "Verified Paper"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key != "NEWKEY99" {
		t.Errorf("key = %q", key)
	}
	if !dec.Verified {
		t.Error("verification read succeeded but Verified is false")
	}
}

func TestCreateVerificationFallsBackToReadOrder(t *testing.T) {
	remote := &fakeAdapter{
		kind:   types.BackendRemote,
		create: func() (string, error) { return "NEWKEY99", nil },
		item:   func(string) (*types.BibRecord, error) { return nil, errors.New("read timeout") },
	}
	local := &fakeAdapter{
		kind: types.BackendLocal,
		item: func(key string) (*types.BibRecord, error) { return &types.BibRecord{Key: key}, nil },
	}
	r := New(online(), nil, remote, local)

	_, dec, err := r.Create(context.Background(), types.BibRecord{Title: "x"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !dec.Verified {
		t.Error("local read saw the item but Verified is false")
	}
}

func TestCreateVerificationFailureIsNotAnError(t *testing.T) {
	remote := &fakeAdapter{
		kind:   types.BackendRemote,
		create: func() (string, error) { return "NEWKEY99", nil },
		item:   func(string) (*types.BibRecord, error) { return nil, errors.New("read timeout") },
	}
	var log bytes.Buffer
	r := New(online(), &log, remote)

	key, dec, err := r.Create(context.Background(), types.BibRecord{Title: "x"}, "")
	if err != nil {
		t.Fatalf("unverified success must not error: %v", err)
	}
	if key != "NEWKEY99" || dec.Verified {
		t.Errorf("key = %q, Verified = %v; want key kept and Verified false", key, dec.Verified)
	}
	if !strings.Contains(log.String(), "pending sync") {
		t.Errorf("log missing pending-sync note: %q", log.String())
	}
}

func TestCreateSkipsUnreachableRemote(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, create: func() (string, error) { return "K", nil }}
	connector := &fakeAdapter{kind: types.BackendConnector, create: func() (string, error) { return "", nil }}
	r := New(degraded(), nil, remote, connector)

	_, dec, err := r.Create(context.Background(), types.BibRecord{Title: "x"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if remote.calls != 0 {
		t.Error("remote must not be called while its API is unreachable")
	}
	if dec.Chosen != types.BackendConnector {
		t.Errorf("Chosen = %s, want connector", dec.Chosen)
	}
}

func TestDeleteVerifiedAbsent(t *testing.T) {
	remote := &fakeAdapter{
		kind: types.BackendRemote,
		del:  func() error { return nil },
		item: func(string) (*types.BibRecord, error) { return nil, backend.ErrNotFound },
	}
	r := New(online(), nil, remote, &fakeAdapter{kind: types.BackendLocal})

	dec, err := r.Delete(context.Background(), "GONE1234")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if dec.Chosen != types.BackendRemote || !dec.Verified {
		t.Errorf("Chosen = %s, Verified = %v; want remote, verified", dec.Chosen, dec.Verified)
	}
}

func TestDeleteStillVisibleIsNotAnError(t *testing.T) {
	remote := &fakeAdapter{
		kind: types.BackendRemote,
		del:  func() error { return nil },
		item: func(key string) (*types.BibRecord, error) { return &types.BibRecord{Key: key}, nil },
	}
	var log bytes.Buffer
	r := New(online(), &log, remote)

	dec, err := r.Delete(context.Background(), "STUCK999")
	if err != nil {
		t.Fatalf("unverified delete must not error: %v", err)
	}
	if dec.Verified {
		t.Error("key still readable after delete but Verified is true")
	}
	if !strings.Contains(log.String(), "pending sync") {
		t.Errorf("log missing pending-sync note: %q", log.String())
	}
}

func TestDeleteFallsBackToLocal(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, del: func() error {
		return errors.New("cloud down")
	}}
	local := &fakeAdapter{
		kind: types.BackendLocal,
		del:  func() error { return nil },
		item: func(string) (*types.BibRecord, error) { return nil, backend.ErrNotFound },
	}
	var log bytes.Buffer
	r := New(online(), &log, remote, local)

	dec, err := r.Delete(context.Background(), "K1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if dec.Chosen != types.BackendLocal {
		t.Errorf("Chosen = %s, want local", dec.Chosen)
	}
	if !reflect.DeepEqual(dec.FallbackChain, []types.BackendKind{types.BackendRemote}) {
		t.Errorf("FallbackChain = %v, want [remote]", dec.FallbackChain)
	}
}

func TestCreateExhaustedNamesBackends(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, create: func() (string, error) {
		return "", errors.New("cloud down")
	}}
	connector := &fakeAdapter{kind: types.BackendConnector, create: func() (string, error) {
		return "", errors.New("desktop not running")
	}}
	r := New(online(), nil, remote, connector)

	_, _, err := r.Create(context.Background(), types.BibRecord{Title: "x"}, "")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	want := []types.BackendKind{types.BackendRemote, types.BackendConnector}
	if !reflect.DeepEqual(exhausted.Backends(), want) {
		t.Errorf("Backends() = %v, want %v", exhausted.Backends(), want)
	}
	for _, s := range []string{"cloud down", "desktop not running"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("error %q missing cause %q", err, s)
		}
	}
}

func TestReadFallsBackToLocal(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, items: func() ([]types.BibRecord, error) {
		return nil, errors.New("cloud flake")
	}}
	local := &fakeAdapter{kind: types.BackendLocal, items: func() ([]types.BibRecord, error) {
		return []types.BibRecord{{Key: "LOCAL111", Title: "Cached"}}, nil
	}}
	r := New(online(), nil, remote, local)

	records, dec, err := r.ReadLibrary(context.Background(), backend.ItemQuery{})
	if err != nil {
		t.Fatalf("ReadLibrary: %v", err)
	}
	if len(records) != 1 || records[0].Key != "LOCAL111" {
		t.Errorf("records = %+v", records)
	}
	if dec.Chosen != types.BackendLocal {
		t.Errorf("Chosen = %s, want local", dec.Chosen)
	}
	if !reflect.DeepEqual(dec.FallbackChain, []types.BackendKind{types.BackendRemote}) {
		t.Errorf("FallbackChain = %v, want [remote]", dec.FallbackChain)
	}
}

func TestReadOfflineSkipsRemote(t *testing.T) {
	remote := &fakeAdapter{kind: types.BackendRemote, items: func() ([]types.BibRecord, error) {
		return []types.BibRecord{{Key: "R"}}, nil
	}}
	local := &fakeAdapter{kind: types.BackendLocal, items: func() ([]types.BibRecord, error) {
		return []types.BibRecord{{Key: "L"}}, nil
	}}
	r := New(offline(), nil, remote, local)

	records, dec, err := r.ReadLibrary(context.Background(), backend.ItemQuery{})
	if err != nil {
		t.Fatalf("ReadLibrary: %v", err)
	}
	if remote.calls != 0 {
		t.Error("remote must not be read while unreachable")
	}
	if records[0].Key != "L" || dec.Chosen != types.BackendLocal {
		t.Errorf("records = %+v, Chosen = %s", records, dec.Chosen)
	}
	if len(dec.FallbackChain) != 0 {
		t.Errorf("FallbackChain = %v, want empty for single-backend ordering", dec.FallbackChain)
	}
}

func TestAssignToCollection(t *testing.T) {
	var gotItem, gotCol string
	local := &fakeAdapter{kind: types.BackendLocal, assign: func(itemKey, collectionKey string) error {
		gotItem, gotCol = itemKey, collectionKey
		return nil
	}}
	r := New(online(), nil, local)

	if err := r.AssignToCollection(context.Background(), "ITEM1111", "COLL1"); err != nil {
		t.Fatalf("AssignToCollection: %v", err)
	}
	if gotItem != "ITEM1111" || gotCol != "COLL1" {
		t.Errorf("assigned %q to %q", gotItem, gotCol)
	}
}

func TestAssignUnavailable(t *testing.T) {
	// Deployment without the assignment primitive.
	local := &fakeAdapter{kind: types.BackendLocal}
	r := New(online(), nil, local, &fakeAdapter{kind: types.BackendRemote})
	if err := r.AssignToCollection(context.Background(), "I", "C"); !errors.Is(err, ErrAssignUnavailable) {
		t.Errorf("err = %v, want ErrAssignUnavailable", err)
	}

	// No local backend configured at all.
	r = New(online(), nil, &fakeAdapter{kind: types.BackendRemote})
	if err := r.AssignToCollection(context.Background(), "I", "C"); !errors.Is(err, ErrAssignUnavailable) {
		t.Errorf("err = %v, want ErrAssignUnavailable", err)
	}
}

func TestEnsureCollectionFindsExisting(t *testing.T) {
	remote := &fakeAdapter{
		kind: types.BackendRemote,
		cols: func() ([]types.Collection, error) {
			return []types.Collection{{Key: "COLL1", Name: "Reading List"}}, nil
		},
	}
	r := New(online(), nil, remote)

	key, err := r.EnsureCollection(context.Background(), "Reading List")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if key != "COLL1" {
		t.Errorf("key = %q, want COLL1", key)
	}
}

func TestEnsureCollectionCreates(t *testing.T) {
	remote := &fakeAdapter{
		kind:  types.BackendRemote,
		cols:  func() ([]types.Collection, error) { return nil, nil },
		mkCol: func(name string) (string, error) { return "NEWCOL99", nil },
	}
	r := New(online(), nil, remote)

	key, err := r.EnsureCollection(context.Background(), "Fresh Stream")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if key != "NEWCOL99" {
		t.Errorf("key = %q, want NEWCOL99", key)
	}
}
