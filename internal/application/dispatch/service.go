package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/notify-dispatch/internal/application/target"
	"github.com/notify-dispatch/internal/application/template"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/pkg/id"
	"github.com/rs/zerolog"
)

// Callback receives the final stats snapshot once every send of a request
// completed, or the request-level failure when processing could not start.
type Callback func(stats *domain.RequestStats, err error)

type Service interface {
	// SubmitRequest persists a new request and dispatches it, immediately or
	// after its configured delay.
	SubmitRequest(ctx context.Context, tenantID string, req *domain.NotificationRequest) (*domain.NotificationRequest, error)
	// ProcessRequest runs one request end-to-end: resolve targets, render per
	// recipient and method, fan out sends concurrently, persist stats, mark
	// the request SENT. Per-recipient failures land in stats; only
	// request-level precondition failures reach the callback as an error.
	ProcessRequest(ctx context.Context, tenantID string, req *domain.NotificationRequest, cb Callback)
	// Preview computes recipient counts and representative rendered templates
	// without sending anything.
	Preview(ctx context.Context, tenantID string, req *domain.NotificationRequest) (*domain.RequestPreview, error)
	GetStats(ctx context.Context, tenantID, requestID string) (*domain.RequestStats, error)
	// DeleteRequest cancels the pending dispatch if any, cascade-deletes the
	// request's notifications and flushes affected live sessions.
	DeleteRequest(ctx context.Context, tenantID, requestID string) error
	ListRequests(ctx context.Context, tenantID string, limit int32, cursor string) ([]domain.RequestInfoView, string, error)
	// DeleteTenant cascade-deletes every request of the tenant.
	DeleteTenant(ctx context.Context, tenantID string) error
	// SendGeneralWebNotification delivers an ad-hoc web-only template to all
	// users matching the filter, for internal submitters.
	SendGeneralWebNotification(ctx context.Context, tenantID string, filter domain.UsersFilterType, tpl *domain.NotificationTemplate) error
	// SweepScheduled re-arms persisted SCHEDULED requests; wired to the
	// scheduler's periodic sweep so deferred work survives restarts.
	SweepScheduled(ctx context.Context)
}

type templateStore interface {
	Get(ctx context.Context, templateID string) (*domain.NotificationTemplate, error)
}

type requestStore interface {
	Put(ctx context.Context, r *domain.NotificationRequest) error
	Get(ctx context.Context, requestID string) (*domain.NotificationRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status domain.RequestStatus) error
	SaveStats(ctx context.Context, requestID string, stats *domain.RequestStats) error
	Delete(ctx context.Context, requestID string) error
	ListByTenant(ctx context.Context, tenantID string, limit int32, cursor string) ([]domain.NotificationRequest, string, error)
	ListScheduled(ctx context.Context) ([]domain.NotificationRequest, error)
}

type notificationStore interface {
	DeleteByRequest(ctx context.Context, requestID string) ([]string, error)
}

type settingsStore interface {
	GetUserSettings(ctx context.Context, userID string) (*domain.UserNotificationSettings, error)
}

type resolver interface {
	ResolveAll(ctx context.Context, tenantID string, targetIDs []string) (*target.Resolution, error)
	ResolveFilter(ctx context.Context, tenantID string, filter domain.UsersFilterType) ([]domain.Recipient, error)
}

type feedHub interface {
	OnRequestDeleted(ctx context.Context, requestID string, recipientIDs []string)
}

type scheduler interface {
	Schedule(key string, delay time.Duration, fn func()) bool
	Cancel(key string) bool
}

type service struct {
	templates     templateStore
	requests      requestStore
	notifications notificationStore
	settings      settingsStore
	resolver      resolver
	hub           feedHub
	sched         scheduler
	senders       map[domain.DeliveryMethod]Sender
	log           zerolog.Logger
}

type ServiceDeps struct {
	TemplateRepo     templateStore
	RequestRepo      requestStore
	NotificationRepo notificationStore
	SettingsRepo     settingsStore
	Resolver         resolver
	Hub              feedHub
	Scheduler        scheduler
	Senders          []Sender
	Logger           zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	senders := make(map[domain.DeliveryMethod]Sender, len(deps.Senders))
	for _, snd := range deps.Senders {
		senders[snd.Method()] = snd
	}
	return &service{
		templates:     deps.TemplateRepo,
		requests:      deps.RequestRepo,
		notifications: deps.NotificationRepo,
		settings:      deps.SettingsRepo,
		resolver:      deps.Resolver,
		hub:           deps.Hub,
		sched:         deps.Scheduler,
		senders:       senders,
		log:           deps.Logger.With().Str("component", "dispatch").Logger(),
	}
}

func (s *service) SubmitRequest(ctx context.Context, tenantID string, req *domain.NotificationRequest) (*domain.NotificationRequest, error) {
	if req.TemplateID == "" || len(req.Targets) == 0 {
		return nil, fmt.Errorf("template and at least one target are required: %w", domain.ErrBadRequest)
	}
	if _, err := s.templates.Get(ctx, req.TemplateID); err != nil {
		return nil, fmt.Errorf("template %s: %w", req.TemplateID, domain.ErrNotFound)
	}

	req.RequestID = id.New()
	req.TenantID = tenantID
	req.CreatedAt = time.Now().UnixMilli()
	if req.DelaySec > 0 {
		req.Status = domain.RequestScheduled
	} else {
		req.Status = domain.RequestProcessing
	}
	if err := s.requests.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}

	s.arm(req, time.Duration(req.DelaySec)*time.Second)
	return req, nil
}

// arm schedules the deferred dispatch of a persisted request. The request is
// re-fetched at fire time: if it was deleted meanwhile the dispatch is a
// silent no-op rather than an error.
func (s *service) arm(req *domain.NotificationRequest, delay time.Duration) {
	tenantID, requestID := req.TenantID, req.RequestID
	s.sched.Schedule(requestID, delay, func() {
		ctx := context.Background()
		fresh, err := s.requests.Get(ctx, requestID)
		if err != nil || fresh.Status == domain.RequestSent {
			return
		}
		s.ProcessRequest(ctx, tenantID, fresh, nil)
	})
}

func (s *service) ProcessRequest(ctx context.Context, tenantID string, req *domain.NotificationRequest, cb Callback) {
	log := s.log.With().Str("request", req.RequestID).Str("tenant", tenantID).Logger()

	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		s.failRequest(log, cb, fmt.Errorf("template %s: %w", req.TemplateID, domain.ErrNotFound))
		return
	}
	methods := tpl.EnabledMethods()
	if req.Status != domain.RequestProcessing {
		req.Status = domain.RequestProcessing
		_ = s.requests.UpdateStatus(ctx, req.RequestID, domain.RequestProcessing)
	}

	res, err := s.resolver.ResolveAll(ctx, tenantID, req.Targets)
	if err != nil {
		s.failRequest(log, cb, err)
		return
	}
	// Targets that resolve to zero recipients are a valid outcome; a request
	// whose every target failed to resolve is not.
	if len(req.Targets) > 0 && len(res.TargetErrors) == len(req.Targets) {
		s.failRequest(log, cb, fmt.Errorf("no target could be resolved: %w", domain.ErrTargetResolution))
		return
	}

	stats := NewStats(methods)
	for targetID, terr := range res.TargetErrors {
		stats.ReportTargetError(targetID, terr.Error())
		log.Warn().Err(terr).Str("target", targetID).Msg("target excluded from dispatch")
	}
	ctxParams := req.Info.TemplateParams()
	var wg sync.WaitGroup

	for _, m := range methods {
		mt := tpl.Deliveries[m]
		snd, haveSender := s.senders[m]
		for _, r := range res.Recipients {
			if !r.Supports(m) {
				continue
			}
			if !haveSender {
				stats.ReportError(m, r.RecipientID(), fmt.Sprintf("no sender configured for %s", m))
				continue
			}
			if req.RuleID != "" && s.methodDisabled(ctx, r, tpl.Type, m) {
				stats.ReportError(m, r.RecipientID(),
					fmt.Sprintf("%s: %s over %s", domain.ErrSettingsDisabled.Error(), tpl.Type, m))
				continue
			}
			wg.Add(1)
			go s.sendOne(ctx, &wg, stats, snd, req, tpl.Type, mt, r, ctxParams)
		}
	}

	go func() {
		wg.Wait()
		snapshot := stats.Snapshot()
		if err := s.requests.SaveStats(ctx, req.RequestID, snapshot); err != nil {
			log.Error().Err(err).Msg("persist stats failed")
		}
		if err := s.requests.UpdateStatus(ctx, req.RequestID, domain.RequestSent); err != nil {
			log.Error().Err(err).Msg("mark request sent failed")
		}
		req.Status = domain.RequestSent
		req.Stats = snapshot
		requestsProcessed.WithLabelValues("sent").Inc()
		log.Info().Int("recipients", len(res.Recipients)).Msg("request processed")
		if cb != nil {
			cb(snapshot, nil)
		}
	}()
}

// sendOne renders and delivers to one recipient over one method. A panicking
// sender is contained here and becomes that recipient's error entry.
func (s *service) sendOne(ctx context.Context, wg *sync.WaitGroup, stats *Stats, snd Sender,
	req *domain.NotificationRequest, notifType domain.NotificationType,
	mt *domain.MethodTemplate, r domain.Recipient, ctxParams map[string]string) {

	m := snd.Method()
	defer wg.Done()
	defer func() {
		if p := recover(); p != nil {
			stats.ReportError(m, r.RecipientID(), fmt.Sprintf("%v", p))
			sendTotal.WithLabelValues(string(m), "panic").Inc()
		}
	}()

	rendered := template.Render(mt, template.Params(ctxParams, r.TemplateParams()))
	start := time.Now()
	err := snd.Send(ctx, Message{
		TenantID:  req.TenantID,
		RequestID: req.RequestID,
		Type:      notifType,
		Template:  rendered,
		Recipient: r,
	})
	sendDuration.WithLabelValues(string(m)).Observe(time.Since(start).Seconds())
	if err != nil {
		stats.ReportError(m, r.RecipientID(), err.Error())
		sendTotal.WithLabelValues(string(m), "error").Inc()
		return
	}
	stats.ReportSent(m)
	sendTotal.WithLabelValues(string(m), "ok").Inc()
}

// methodDisabled consults the recipient's notification settings. Only
// platform users carry settings; unknown users and lookup failures default
// to enabled so a broken settings row never silently drops notifications.
func (s *service) methodDisabled(ctx context.Context, r domain.Recipient, t domain.NotificationType, m domain.DeliveryMethod) bool {
	u, ok := r.(*domain.User)
	if !ok {
		return false
	}
	settings, err := s.settings.GetUserSettings(ctx, u.UserID)
	if err != nil {
		return false
	}
	return !settings.MethodEnabled(t, m)
}

func (s *service) failRequest(log zerolog.Logger, cb Callback, err error) {
	requestsProcessed.WithLabelValues("failed").Inc()
	log.Error().Err(err).Msg("request processing failed")
	if cb != nil {
		cb(nil, err)
	}
}

func (s *service) Preview(ctx context.Context, tenantID string, req *domain.NotificationRequest) (*domain.RequestPreview, error) {
	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", req.TemplateID, domain.ErrNotFound)
	}
	res, err := s.resolver.ResolveAll(ctx, tenantID, req.Targets)
	if err != nil {
		return nil, err
	}

	preview := &domain.RequestPreview{
		TotalRecipientsCount:    len(res.Recipients),
		RecipientsCountByTarget: res.CountByTarget,
		RecipientsPreview:       res.Preview,
		ProcessedTemplates:      make(map[domain.DeliveryMethod]*domain.MethodTemplate),
	}
	for targetID, terr := range res.TargetErrors {
		if preview.TargetErrors == nil {
			preview.TargetErrors = make(map[string]string, len(res.TargetErrors))
		}
		preview.TargetErrors[targetID] = terr.Error()
	}
	ctxParams := req.Info.TemplateParams()
	for _, m := range tpl.EnabledMethods() {
		params := ctxParams
		// Render against the first recipient the method can actually reach,
		// so the operator sees representative content.
		for _, r := range res.Recipients {
			if r.Supports(m) {
				params = template.Params(ctxParams, r.TemplateParams())
				break
			}
		}
		preview.ProcessedTemplates[m] = template.Render(tpl.Deliveries[m], params)
	}
	return preview, nil
}

func (s *service) GetStats(ctx context.Context, tenantID, requestID string) (*domain.RequestStats, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if req.TenantID != tenantID {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrForbidden)
	}
	return req.Stats, nil
}

func (s *service) DeleteRequest(ctx context.Context, tenantID, requestID string) error {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if req.TenantID != tenantID {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrForbidden)
	}

	cancelled := s.sched.Cancel(requestID)

	// Notification rows go first, then the live sessions are flushed, then
	// the request row itself: no session can observe a notification of a
	// request that is already gone.
	recipients, err := s.notifications.DeleteByRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("delete notifications of request %s: %w", requestID, err)
	}
	s.hub.OnRequestDeleted(ctx, requestID, recipients)
	if err := s.requests.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("delete request %s: %w", requestID, err)
	}
	s.log.Info().Str("request", requestID).Bool("cancelled_pending", cancelled).
		Int("recipients", len(recipients)).Msg("request deleted")
	return nil
}

func (s *service) ListRequests(ctx context.Context, tenantID string, limit int32, cursor string) ([]domain.RequestInfoView, string, error) {
	reqs, next, err := s.requests.ListByTenant(ctx, tenantID, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	views := make([]domain.RequestInfoView, 0, len(reqs))
	templates := make(map[string]*domain.NotificationTemplate)
	for _, req := range reqs {
		view := domain.RequestInfoView{NotificationRequest: req}
		tpl, ok := templates[req.TemplateID]
		if !ok {
			if tpl, err = s.templates.Get(ctx, req.TemplateID); err == nil {
				templates[req.TemplateID] = tpl
			}
		}
		if tpl != nil {
			view.TemplateName = tpl.Name
			view.DeliveryMethods = tpl.EnabledMethods()
		}
		views = append(views, view)
	}
	return views, next, nil
}

func (s *service) DeleteTenant(ctx context.Context, tenantID string) error {
	for {
		reqs, next, err := s.requests.ListByTenant(ctx, tenantID, 100, "")
		if err != nil {
			return err
		}
		for i := range reqs {
			if err := s.DeleteRequest(ctx, tenantID, reqs[i].RequestID); err != nil {
				return err
			}
		}
		if next == "" || len(reqs) == 0 {
			return nil
		}
	}
}

func (s *service) SendGeneralWebNotification(ctx context.Context, tenantID string, filter domain.UsersFilterType, tpl *domain.NotificationTemplate) error {
	snd, ok := s.senders[domain.DeliveryWeb]
	if !ok {
		return fmt.Errorf("no sender configured for %s", domain.DeliveryWeb)
	}
	mt, ok := tpl.Deliveries[domain.DeliveryWeb]
	if !ok || !mt.Enabled {
		return fmt.Errorf("template %s has no web delivery: %w", tpl.Name, domain.ErrBadRequest)
	}
	recipients, err := s.resolver.ResolveFilter(ctx, tenantID, filter)
	if err != nil {
		return err
	}
	requestID := id.New()
	for _, r := range recipients {
		rendered := template.Render(mt, r.TemplateParams())
		if err := snd.Send(ctx, Message{
			TenantID:  tenantID,
			RequestID: requestID,
			Type:      tpl.Type,
			Template:  rendered,
			Recipient: r,
		}); err != nil {
			s.log.Warn().Err(err).Str("recipient", r.RecipientID()).Msg("general web notification failed")
		}
	}
	return nil
}

func (s *service) SweepScheduled(ctx context.Context) {
	reqs, err := s.requests.ListScheduled(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled sweep query failed")
		return
	}
	for i := range reqs {
		req := reqs[i]
		remaining := time.Until(time.UnixMilli(req.CreatedAt).Add(time.Duration(req.DelaySec) * time.Second))
		if remaining < time.Millisecond {
			// Missed while the process was down; fire now, through the
			// scheduler so an already-armed timer is never doubled.
			remaining = time.Millisecond
		}
		if s.sched.Schedule(req.RequestID, remaining, func() {
			fresh, err := s.requests.Get(context.Background(), req.RequestID)
			if err != nil || fresh.Status == domain.RequestSent {
				return
			}
			s.ProcessRequest(context.Background(), fresh.TenantID, fresh, nil)
		}) {
			s.log.Info().Str("request", req.RequestID).Dur("remaining", remaining).Msg("scheduled request re-armed")
		}
	}
}
