package target

import (
	"context"
	"fmt"

	"github.com/notify-dispatch/internal/domain"
)

// Service resolves notification targets into concrete recipients.
type Service interface {
	// Resolve expands a single target into its ordered recipients.
	Resolve(ctx context.Context, tenantID, targetID string) ([]domain.Recipient, error)
	// ResolveAll expands every target of a request, deduplicating recipients
	// across targets while keeping independent per-target counts. A target
	// that fails to resolve is recorded in TargetErrors and excluded; the
	// remaining targets still contribute.
	ResolveAll(ctx context.Context, tenantID string, targetIDs []string) (*Resolution, error)
	// ResolveFilter expands a bare users filter without a stored target,
	// for internal submitters.
	ResolveFilter(ctx context.Context, tenantID string, filter domain.UsersFilterType) ([]domain.Recipient, error)
}

// Resolution is the merged outcome of resolving all targets of one request.
type Resolution struct {
	// Recipients is deduplicated by recipient id, in first-seen order.
	Recipients []domain.Recipient
	// CountByTarget keeps the pre-dedup cardinality of each target, keyed by
	// target name, for the preview operation.
	CountByTarget map[string]int
	// Preview holds the display strings of all deduplicated recipients.
	Preview []string
	// TargetErrors records targets that could not be resolved, keyed by
	// target id. A missing target has no name, so the id is the one identity
	// every failure shape carries.
	TargetErrors map[string]error
}

type targetStore interface {
	Get(ctx context.Context, targetID string) (*domain.NotificationTarget, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.User, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.User, error)
	ListByTenantAndAuthority(ctx context.Context, tenantID, authority string) ([]domain.User, error)
	ListByAuthority(ctx context.Context, authority string) ([]domain.User, error)
}

type customerStore interface {
	Get(ctx context.Context, customerID string) (*domain.Customer, error)
}

type service struct {
	targets   targetStore
	users     userStore
	customers customerStore
}

type ServiceDeps struct {
	TargetRepo   targetStore
	UserRepo     userStore
	CustomerRepo customerStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		targets:   deps.TargetRepo,
		users:     deps.UserRepo,
		customers: deps.CustomerRepo,
	}
}

func (s *service) Resolve(ctx context.Context, tenantID, targetID string) ([]domain.Recipient, error) {
	t, err := s.targets.Get(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", targetID, domain.ErrTargetResolution)
	}
	if t.TenantID != tenantID {
		return nil, fmt.Errorf("target %s belongs to another tenant: %w", targetID, domain.ErrForbidden)
	}
	return s.resolveConfig(ctx, tenantID, t.Config)
}

func (s *service) ResolveAll(ctx context.Context, tenantID string, targetIDs []string) (*Resolution, error) {
	res := &Resolution{
		CountByTarget: make(map[string]int),
		TargetErrors:  make(map[string]error),
	}
	seen := make(map[string]struct{})
	for _, targetID := range targetIDs {
		t, err := s.targets.Get(ctx, targetID)
		if err != nil {
			res.TargetErrors[targetID] = fmt.Errorf("target %s: %w", targetID, domain.ErrTargetResolution)
			continue
		}
		recipients, err := s.resolveConfig(ctx, tenantID, t.Config)
		if err != nil {
			res.TargetErrors[targetID] = err
			continue
		}
		res.CountByTarget[t.Name] = len(recipients)
		for _, r := range recipients {
			if _, dup := seen[r.RecipientID()]; dup {
				continue
			}
			seen[r.RecipientID()] = struct{}{}
			res.Recipients = append(res.Recipients, r)
			res.Preview = append(res.Preview, r.Preview())
		}
	}
	return res, nil
}

func (s *service) ResolveFilter(ctx context.Context, tenantID string, filter domain.UsersFilterType) ([]domain.Recipient, error) {
	return s.resolveConfig(ctx, tenantID, domain.TargetConfig{
		Type:   domain.TargetPlatformUsers,
		Filter: filter,
	})
}

func (s *service) resolveConfig(ctx context.Context, tenantID string, cfg domain.TargetConfig) ([]domain.Recipient, error) {
	switch cfg.Type {
	case domain.TargetPlatformUsers:
		return s.resolveUsersFilter(ctx, tenantID, cfg)
	case domain.TargetSlack:
		if cfg.Conversation == nil {
			return nil, fmt.Errorf("slack target without conversation: %w", domain.ErrTargetResolution)
		}
		return []domain.Recipient{&domain.SlackRecipient{Conversation: *cfg.Conversation}}, nil
	case domain.TargetTeams:
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("teams target without webhook url: %w", domain.ErrTargetResolution)
		}
		return []domain.Recipient{&domain.TeamsRecipient{WebhookURL: cfg.WebhookURL, ChannelName: cfg.ChannelName}}, nil
	default:
		return nil, fmt.Errorf("unknown target type %q: %w", cfg.Type, domain.ErrTargetResolution)
	}
}

func (s *service) resolveUsersFilter(ctx context.Context, tenantID string, cfg domain.TargetConfig) ([]domain.Recipient, error) {
	var (
		users []domain.User
		err   error
	)
	switch cfg.Filter {
	case domain.FilterAllUsers:
		users, err = s.users.ListByTenant(ctx, tenantID)
	case domain.FilterUserList:
		for _, userID := range cfg.UserIDs {
			u, uerr := s.users.Get(ctx, userID)
			if uerr != nil {
				// A single vanished user does not invalidate the list target.
				continue
			}
			users = append(users, *u)
		}
	case domain.FilterCustomerUsers:
		if _, cerr := s.customers.Get(ctx, cfg.CustomerID); cerr != nil {
			return nil, fmt.Errorf("customer %s: %w", cfg.CustomerID, domain.ErrTargetResolution)
		}
		users, err = s.users.ListByCustomer(ctx, cfg.CustomerID)
	case domain.FilterTenantAdmins:
		users, err = s.users.ListByTenantAndAuthority(ctx, tenantID, domain.AuthorityTenantAdmin)
	case domain.FilterSystemAdmins:
		users, err = s.users.ListByAuthority(ctx, domain.AuthoritySysAdmin)
	default:
		return nil, fmt.Errorf("unknown users filter %q: %w", cfg.Filter, domain.ErrTargetResolution)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve users filter %s: %w", cfg.Filter, err)
	}
	recipients := make([]domain.Recipient, 0, len(users))
	for i := range users {
		u := users[i]
		recipients = append(recipients, &u)
	}
	return recipients, nil
}
