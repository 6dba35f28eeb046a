package panel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"panel-dash/internal/apperr"
	"panel-dash/internal/authz"
	"panel-dash/internal/metrics"
	"panel-dash/internal/model"
	"panel-dash/internal/pterodactyl"

	"go.uber.org/zap"
)

type fakeAccess map[string][]model.ServerID

func (f fakeAccess) GetAccess(id string) ([]model.ServerID, error) { return f[id], nil }

type fakeAudit struct{ events []model.AuditEvent }

func (f *fakeAudit) Record(_ context.Context, ev model.AuditEvent) { f.events = append(f.events, ev) }

type fakePanel struct {
	existing  map[string]bool
	createErr error
	created   []pterodactyl.CreateUserRequest
}

func (f *fakePanel) UserExists(_ context.Context, name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakePanel) CreateUser(_ context.Context, r pterodactyl.CreateUserRequest) (*pterodactyl.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, r)
	return &pterodactyl.User{ID: len(f.created), Username: r.Username, Email: r.Email}, nil
}

func newService(remote *fakePanel, access fakeAccess, audit *fakeAudit) *Service {
	return NewService(Options{
		Servers: []model.Server{
			{ID: "srv1", Domain: "https://one.example", APIKey: "ptla_1"},
			{ID: "srv2", Domain: "https://two.example", APIKey: "ptla_2"},
			{ID: "srv3", Domain: "-", APIKey: "-"},
		},
		Access:      access,
		Clients:     func(model.Server) Provisioner { return remote },
		Audit:       audit,
		Metrics:     metrics.New(),
		Log:         zap.NewNop(),
		EmailDomain: "panel.com",
	})
}

func reseller() authz.Subject {
	return authz.Subject{UserID: "123456789", Tier: model.TierReseller}
}

func TestCreateOnAccessibleServer(t *testing.T) {
	remote := &fakePanel{}
	audit := &fakeAudit{}
	svc := newService(remote, fakeAccess{"123456789": {"srv1"}}, audit)

	p, err := svc.Create(context.Background(), reseller(), "10.0.0.1", Request{Name: "alice_1", Server: "srv1", RAMLimit: 2048})
	if err != nil {
		t.Fatal(err)
	}
	if p.Username != "alice_1" || p.Email != "alice_1@panel.com" || p.Server != "srv1" || p.RAMLimit != 2048 {
		t.Errorf("panel = %+v", p)
	}
	if len(p.Password) != passwordLength || p.Password != remote.created[0].Password {
		t.Errorf("password = %q", p.Password)
	}
	if remote.created[0].RootAdmin || remote.created[0].LastName != "User" {
		t.Errorf("request = %+v", remote.created[0])
	}
	if len(audit.events) != 1 || audit.events[0].Outcome != model.OutcomeSuccess {
		t.Fatalf("audit = %+v", audit.events)
	}
	if strings.Contains(audit.events[0].Target, p.Password) {
		t.Error("credentials leaked into audit trail")
	}
}

func TestCreateWithoutServerAccessForbidden(t *testing.T) {
	remote := &fakePanel{}
	audit := &fakeAudit{}
	svc := newService(remote, fakeAccess{"123456789": {"srv1"}}, audit)

	_, err := svc.Create(context.Background(), reseller(), "", Request{Name: "alice_1", Server: "srv2"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
	if len(remote.created) != 0 {
		t.Error("remote called without access")
	}
	if len(audit.events) != 1 || audit.events[0].Outcome != model.OutcomeDenied {
		t.Errorf("audit = %+v", audit.events)
	}
}

func TestCreateWithoutTierForbidden(t *testing.T) {
	svc := newService(&fakePanel{}, fakeAccess{"123456789": {"srv1"}}, &fakeAudit{})
	_, err := svc.Create(context.Background(), authz.Subject{UserID: "123456789"}, "", Request{Name: "alice", Server: "srv1"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateExistingNameConflict(t *testing.T) {
	remote := &fakePanel{existing: map[string]bool{"alice": true}}
	svc := newService(remote, fakeAccess{"123456789": {"srv1"}}, &fakeAudit{})
	_, err := svc.Create(context.Background(), reseller(), "", Request{Name: "alice", Server: "srv1"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v", err)
	}
	if len(remote.created) != 0 {
		t.Error("account created despite existing name")
	}
}

func TestCreateMixedCaseExistingNameConflict(t *testing.T) {
	var posts int
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.Write([]byte(`{"object":"list","data":[{"object":"user","attributes":{"id":9,"username":"alice"}}]}`))
	}))
	defer remote.Close()

	svc := NewService(Options{
		Servers:     []model.Server{{ID: "srv1", Domain: remote.URL, APIKey: "ptla_1"}},
		Access:      fakeAccess{"123456789": {"srv1"}},
		Clients:     func(srv model.Server) Provisioner { return pterodactyl.NewClient(srv.BaseURL(), srv.APIKey, time.Second) },
		Audit:       &fakeAudit{},
		Metrics:     metrics.New(),
		Log:         zap.NewNop(),
		EmailDomain: "panel.com",
	})

	_, err := svc.Create(context.Background(), reseller(), "", Request{Name: "Alice", Server: "srv1"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if posts != 0 {
		t.Errorf("create called %d times for an existing name", posts)
	}
}

func TestCreateUnconfiguredServer(t *testing.T) {
	svc := newService(&fakePanel{}, fakeAccess{"123456789": {"srv3"}}, &fakeAudit{})
	_, err := svc.Create(context.Background(), reseller(), "", Request{Name: "alice", Server: "srv3"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateUpstreamFailureHidesDetail(t *testing.T) {
	remote := &fakePanel{createErr: &pterodactyl.APIError{StatusCode: 500, Body: "SQLSTATE[23000] secret"}}
	audit := &fakeAudit{}
	svc := newService(remote, fakeAccess{"123456789": {"srv1"}}, audit)

	_, err := svc.Create(context.Background(), reseller(), "", Request{Name: "alice", Server: "srv1"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
	if msg := apperr.Message(err); strings.Contains(msg, "SQLSTATE") {
		t.Errorf("client message leaks remote detail: %q", msg)
	}
	if len(audit.events) != 1 || audit.events[0].Outcome != model.OutcomeFailure {
		t.Errorf("audit = %+v", audit.events)
	}
}

func TestValidate(t *testing.T) {
	svc := newService(&fakePanel{}, fakeAccess{}, &fakeAudit{})
	tests := []struct {
		req Request
		ok  bool
	}{
		{Request{Name: "abc", Server: "srv1"}, true},
		{Request{Name: "ab", Server: "srv1"}, false},
		{Request{Name: "this_name_is_too_long_x", Server: "srv1"}, false},
		{Request{Name: "bad-name", Server: "srv1"}, false},
		{Request{Name: "<script>", Server: "srv1"}, false},
		{Request{Name: "abc", Server: "srv9"}, false},
		{Request{Name: "abc", Server: "srv1", RAMLimit: -1}, false},
	}
	for _, tt := range tests {
		err := svc.Validate(tt.req)
		if (err == nil) != tt.ok {
			t.Errorf("Validate(%+v) = %v, want ok=%v", tt.req, err, tt.ok)
		}
	}
}

func TestGeneratePasswordIsRandom(t *testing.T) {
	a, _ := generatePassword()
	b, _ := generatePassword()
	if a == b || len(a) != passwordLength {
		t.Errorf("passwords %q %q", a, b)
	}
}
