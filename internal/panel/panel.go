// Package panel provisions accounts on the remote panels for dashboard users.
package panel

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"panel-dash/internal/apperr"
	"panel-dash/internal/authz"
	"panel-dash/internal/metrics"
	"panel-dash/internal/model"
	"panel-dash/internal/pterodactyl"

	"go.uber.org/zap"
)

const (
	passwordLength   = 12
	passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// Request is a create-panel submission.
type Request struct {
	Name     string
	Server   model.ServerID
	RAMLimit int
}

// Provisioner is the remote panel API.
type Provisioner interface {
	UserExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, r pterodactyl.CreateUserRequest) (*pterodactyl.User, error)
}

// ClientFactory returns a Provisioner for a configured server.
type ClientFactory func(srv model.Server) Provisioner

// AccessReader resolves a user's current server access.
type AccessReader interface {
	GetAccess(userID string) ([]model.ServerID, error)
}

type Auditor interface {
	Record(ctx context.Context, ev model.AuditEvent)
}

type Service struct {
	servers     map[model.ServerID]model.Server
	access      AccessReader
	clients     ClientFactory
	audit       Auditor
	metrics     *metrics.Metrics
	log         *zap.Logger
	emailDomain string
}

type Options struct {
	Servers     []model.Server
	Access      AccessReader
	Clients     ClientFactory
	Audit       Auditor
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	EmailDomain string
}

func NewService(o Options) *Service {
	servers := make(map[model.ServerID]model.Server, len(o.Servers))
	for _, s := range o.Servers {
		servers[s.ID] = s
	}
	return &Service{
		servers:     servers,
		access:      o.Access,
		clients:     o.Clients,
		audit:       o.Audit,
		metrics:     o.Metrics,
		log:         o.Log,
		emailDomain: o.EmailDomain,
	}
}

// Validate checks the request shape.
func (s *Service) Validate(r Request) error {
	if !namePattern.MatchString(r.Name) {
		return apperr.New(apperr.ValidationFailed, "name must be 3-20 letters, digits or underscores")
	}
	if _, ok := s.servers[r.Server]; !ok {
		return apperr.New(apperr.ValidationFailed, "unknown server")
	}
	if r.RAMLimit < 0 {
		return apperr.New(apperr.ValidationFailed, "ramLimit must not be negative")
	}
	return nil
}

// Create provisions a panel account for sub. The returned password is not
// stored anywhere.
func (s *Service) Create(ctx context.Context, sub authz.Subject, clientIP string, r Request) (*model.Panel, error) {
	if !authz.Allow(sub, authz.CreatePanel) {
		return nil, apperr.New(apperr.Forbidden, "a tier (RESELLER or higher) is required to create panels")
	}
	r.Name = strings.TrimSpace(r.Name)
	if err := s.Validate(r); err != nil {
		return nil, err
	}

	ev := model.AuditEvent{Actor: sub.UserID, Action: model.ActionPanelCreate, Target: string(r.Server), ClientIP: clientIP}

	access, err := s.access.GetAccess(sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("read access: %w", err)
	}
	if !authz.CanUseServer(access, r.Server) {
		ev.Outcome = model.OutcomeDenied
		s.audit.Record(ctx, ev)
		return nil, apperr.New(apperr.Forbidden, "no access to this server")
	}

	srv := s.servers[r.Server]
	if !srv.Configured() {
		return nil, apperr.New(apperr.ValidationFailed, "server is not configured")
	}
	client := s.clients(srv)

	exists, err := client.UserExists(ctx, r.Name)
	if err != nil {
		return nil, s.upstream(ctx, ev, "lookup", err)
	}
	if exists {
		s.metrics.Panels.WithLabelValues(string(r.Server), "exists").Inc()
		return nil, apperr.New(apperr.Conflict, "username already exists")
	}

	password, err := generatePassword()
	if err != nil {
		return nil, err
	}
	email := fmt.Sprintf("%s@%s", strings.ToLower(r.Name), s.emailDomain)
	u, err := client.CreateUser(ctx, pterodactyl.CreateUserRequest{
		Username:  r.Name,
		Email:     email,
		FirstName: r.Name,
		LastName:  "User",
		Password:  password,
		RootAdmin: false,
	})
	if err != nil {
		return nil, s.upstream(ctx, ev, "create", err)
	}

	ev.Outcome = model.OutcomeSuccess
	s.audit.Record(ctx, ev)
	s.metrics.Panels.WithLabelValues(string(r.Server), "success").Inc()
	s.log.Info("panel created",
		zap.String("user_id", sub.UserID),
		zap.String("server", string(r.Server)),
		zap.Int("panel_id", u.ID))

	return &model.Panel{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Password: password,
		Server:   r.Server,
		RAMLimit: r.RAMLimit,
	}, nil
}

func (s *Service) upstream(ctx context.Context, ev model.AuditEvent, step string, err error) error {
	s.log.Error("panel provisioning failed",
		zap.String("step", step),
		zap.String("user_id", ev.Actor),
		zap.String("server", ev.Target),
		zap.Error(err))
	ev.Outcome = model.OutcomeFailure
	s.audit.Record(ctx, ev)
	s.metrics.Panels.WithLabelValues(ev.Target, "failure").Inc()
	return apperr.Wrap(apperr.UpstreamFailure, "", err)
}

func generatePassword() (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, passwordLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b), nil
}
