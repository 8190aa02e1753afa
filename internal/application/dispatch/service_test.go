package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notify-dispatch/internal/application/target"
	"github.com/notify-dispatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTemplateStore struct{ mock.Mock }

func (m *mockTemplateStore) Get(ctx context.Context, templateID string) (*domain.NotificationTemplate, error) {
	args := m.Called(ctx, templateID)
	if t, _ := args.Get(0).(*domain.NotificationTemplate); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRequestStore struct{ mock.Mock }

func (m *mockRequestStore) Put(ctx context.Context, r *domain.NotificationRequest) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRequestStore) Get(ctx context.Context, requestID string) (*domain.NotificationRequest, error) {
	args := m.Called(ctx, requestID)
	if r, _ := args.Get(0).(*domain.NotificationRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRequestStore) UpdateStatus(ctx context.Context, requestID string, status domain.RequestStatus) error {
	return m.Called(ctx, requestID, status).Error(0)
}
func (m *mockRequestStore) SaveStats(ctx context.Context, requestID string, stats *domain.RequestStats) error {
	return m.Called(ctx, requestID, stats).Error(0)
}
func (m *mockRequestStore) Delete(ctx context.Context, requestID string) error {
	return m.Called(ctx, requestID).Error(0)
}
func (m *mockRequestStore) ListByTenant(ctx context.Context, tenantID string, limit int32, cursor string) ([]domain.NotificationRequest, string, error) {
	args := m.Called(ctx, tenantID, limit, cursor)
	return args.Get(0).([]domain.NotificationRequest), args.String(1), args.Error(2)
}
func (m *mockRequestStore) ListScheduled(ctx context.Context) ([]domain.NotificationRequest, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.NotificationRequest), args.Error(1)
}

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) DeleteByRequest(ctx context.Context, requestID string) ([]string, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).([]string), args.Error(1)
}

type mockSettingsStore struct{ mock.Mock }

func (m *mockSettingsStore) GetUserSettings(ctx context.Context, userID string) (*domain.UserNotificationSettings, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*domain.UserNotificationSettings); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) ResolveAll(ctx context.Context, tenantID string, targetIDs []string) (*target.Resolution, error) {
	args := m.Called(ctx, tenantID, targetIDs)
	if r, _ := args.Get(0).(*target.Resolution); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockResolver) ResolveFilter(ctx context.Context, tenantID string, filter domain.UsersFilterType) ([]domain.Recipient, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]domain.Recipient), args.Error(1)
}

type mockHub struct{ mock.Mock }

func (m *mockHub) OnRequestDeleted(ctx context.Context, requestID string, recipientIDs []string) {
	m.Called(ctx, requestID, recipientIDs)
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Duration
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Duration)}
}
func (f *fakeScheduler) Schedule(key string, delay time.Duration, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scheduled[key]; ok {
		return false
	}
	f.scheduled[key] = delay
	return true
}
func (f *fakeScheduler) Cancel(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, key)
	_, ok := f.scheduled[key]
	delete(f.scheduled, key)
	return ok
}

// fakeSender records deliveries and can fail or panic for chosen recipients.
type fakeSender struct {
	method   domain.DeliveryMethod
	mu       sync.Mutex
	sent     []Message
	failFor  map[string]error
	panicFor map[string]bool
}

func (f *fakeSender) Method() domain.DeliveryMethod { return f.method }
func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	id := msg.Recipient.RecipientID()
	if f.panicFor[id] {
		panic(fmt.Sprintf("sender blew up on %s", id))
	}
	if err, ok := f.failFor[id]; ok {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}
func (f *fakeSender) delivered() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// --- fixtures ---

func webEmailTemplate() *domain.NotificationTemplate {
	return &domain.NotificationTemplate{
		TemplateID: "tpl-1",
		TenantID:   "tenant-1",
		Name:       "Maintenance window",
		Type:       domain.TypeGeneral,
		Deliveries: map[domain.DeliveryMethod]*domain.MethodTemplate{
			domain.DeliveryWeb: {
				Enabled: true,
				Subject: "Hello ${recipientFirstName}",
				Body:    "Maintenance starts soon",
			},
			domain.DeliveryEmail: {
				Enabled: true,
				Subject: "Heads up",
				Body:    "Dear ${recipientTitle}, maintenance starts soon",
			},
		},
	}
}

func platformUsers(n int) []domain.Recipient {
	out := make([]domain.Recipient, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.User{
			UserID:    fmt.Sprintf("user-%d", i),
			TenantID:  "tenant-1",
			Email:     fmt.Sprintf("user-%d@example.com", i),
			FirstName: fmt.Sprintf("First%d", i),
			LastName:  fmt.Sprintf("Last%d", i),
		})
	}
	return out
}

func resolutionOf(recipients ...domain.Recipient) *target.Resolution {
	res := &target.Resolution{
		Recipients:    recipients,
		CountByTarget: map[string]int{"Everyone": len(recipients)},
		TargetErrors:  map[string]error{},
	}
	for _, r := range recipients {
		res.Preview = append(res.Preview, r.Preview())
	}
	return res
}

type fixture struct {
	templates *mockTemplateStore
	requests  *mockRequestStore
	notifs    *mockNotificationStore
	settings  *mockSettingsStore
	resolver  *mockResolver
	hub       *mockHub
	sched     *fakeScheduler
	web       *fakeSender
	email     *fakeSender
	svc       Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		templates: new(mockTemplateStore),
		requests:  new(mockRequestStore),
		notifs:    new(mockNotificationStore),
		settings:  new(mockSettingsStore),
		resolver:  new(mockResolver),
		hub:       new(mockHub),
		sched:     newFakeScheduler(),
		web:       &fakeSender{method: domain.DeliveryWeb},
		email:     &fakeSender{method: domain.DeliveryEmail},
	}
	f.svc = NewService(ServiceDeps{
		TemplateRepo:     f.templates,
		RequestRepo:      f.requests,
		NotificationRepo: f.notifs,
		SettingsRepo:     f.settings,
		Resolver:         f.resolver,
		Hub:              f.hub,
		Scheduler:        f.sched,
		Senders:          []Sender{f.web, f.email},
		Logger:           zerolog.Nop(),
	})
	return f
}

func processAndWait(t *testing.T, f *fixture, req *domain.NotificationRequest) (*domain.RequestStats, error) {
	t.Helper()
	type result struct {
		stats *domain.RequestStats
		err   error
	}
	done := make(chan result, 1)
	f.svc.ProcessRequest(context.Background(), req.TenantID, req, func(stats *domain.RequestStats, err error) {
		done <- result{stats, err}
	})
	select {
	case r := <-done:
		return r.stats, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("request processing did not complete")
		return nil, nil
	}
}

// --- tests ---

func TestProcessRequest_HappyPath(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		Status:     domain.RequestScheduled,
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestProcessing).Return(nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", []string{"tgt-1"}).
		Return(resolutionOf(platformUsers(3)...), nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(3), stats.Sent[domain.DeliveryWeb])
	assert.Equal(t, int64(3), stats.Sent[domain.DeliveryEmail])
	assert.Empty(t, stats.Errors[domain.DeliveryWeb])
	assert.Empty(t, stats.Errors[domain.DeliveryEmail])
	assert.Equal(t, domain.RequestSent, req.Status)
	assert.Len(t, f.web.delivered(), 3)
	assert.Len(t, f.email.delivered(), 3)
	f.requests.AssertCalled(t, "UpdateStatus", mock.Anything, "req-1", domain.RequestSent)
}

func TestProcessRequest_RendersPerRecipient(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		Status:     domain.RequestProcessing,
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", mock.Anything).
		Return(resolutionOf(platformUsers(1)...), nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	_, err := processAndWait(t, f, req)
	require.NoError(t, err)

	web := f.web.delivered()
	require.Len(t, web, 1)
	assert.Equal(t, "Hello First0", web[0].Template.Subject)
	email := f.email.delivered()
	require.Len(t, email, 1)
	assert.Equal(t, "Dear First0 Last0, maintenance starts soon", email[0].Template.Body)
}

func TestProcessRequest_PartialFailureIsolated(t *testing.T) {
	f := newFixture(t)
	f.email.failFor = map[string]error{"user-1": errors.New("mailbox unavailable")}
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		Status:     domain.RequestProcessing,
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", mock.Anything).
		Return(resolutionOf(platformUsers(3)...), nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Sent[domain.DeliveryWeb])
	assert.Equal(t, int64(2), stats.Sent[domain.DeliveryEmail])
	assert.Equal(t, "mailbox unavailable", stats.Errors[domain.DeliveryEmail]["user-1"])
	assert.Empty(t, stats.Errors[domain.DeliveryWeb])
}

func TestProcessRequest_SettingsGateRuleOriginated(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		RuleID:     "rule-1",
		Status:     domain.RequestProcessing,
	}
	optedOut := &domain.UserNotificationSettings{
		UserID: "user-1",
		Prefs: map[domain.NotificationType]domain.NotificationPref{
			domain.TypeGeneral: {
				Enabled:                true,
				EnabledDeliveryMethods: map[domain.DeliveryMethod]bool{domain.DeliveryEmail: false},
			},
		},
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", mock.Anything).
		Return(resolutionOf(platformUsers(2)...), nil)
	f.settings.On("GetUserSettings", mock.Anything, "user-0").Return(nil, domain.ErrNotFound)
	f.settings.On("GetUserSettings", mock.Anything, "user-1").Return(optedOut, nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sent[domain.DeliveryWeb])
	assert.Equal(t, int64(1), stats.Sent[domain.DeliveryEmail])
	require.Contains(t, stats.Errors[domain.DeliveryEmail], "user-1")
	assert.Contains(t, stats.Errors[domain.DeliveryEmail]["user-1"], "disabled")
}

func TestProcessRequest_SettingsIgnoredForDirectRequests(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		Status:     domain.RequestProcessing,
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", mock.Anything).
		Return(resolutionOf(platformUsers(2)...), nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sent[domain.DeliveryEmail])
	f.settings.AssertNotCalled(t, "GetUserSettings", mock.Anything, mock.Anything)
}

func TestProcessRequest_SenderPanicContained(t *testing.T) {
	f := newFixture(t)
	f.web.panicFor = map[string]bool{"user-2": true}
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		Status:     domain.RequestProcessing,
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", mock.Anything).
		Return(resolutionOf(platformUsers(3)...), nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sent[domain.DeliveryWeb])
	assert.Equal(t, int64(3), stats.Sent[domain.DeliveryEmail])
	assert.Contains(t, stats.Errors[domain.DeliveryWeb]["user-2"], "blew up")
}

func TestProcessRequest_ZeroRecipients(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		Status:     domain.RequestProcessing,
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", mock.Anything).
		Return(resolutionOf(), nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Sent[domain.DeliveryWeb])
	assert.Equal(t, int64(0), stats.Sent[domain.DeliveryEmail])
	assert.Equal(t, domain.RequestSent, req.Status)
}

func TestProcessRequest_AllTargetsUnresolvable(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-gone", "tgt-also-gone"},
		Status:     domain.RequestProcessing,
	}
	res := &target.Resolution{
		CountByTarget: map[string]int{},
		TargetErrors: map[string]error{
			"tgt-gone":      fmt.Errorf("target tgt-gone: %w", domain.ErrTargetResolution),
			"tgt-also-gone": fmt.Errorf("target tgt-also-gone: %w", domain.ErrTargetResolution),
		},
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", req.Targets).Return(res, nil)

	stats, err := processAndWait(t, f, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTargetResolution)
	assert.Nil(t, stats)
	f.requests.AssertNotCalled(t, "SaveStats", mock.Anything, mock.Anything, mock.Anything)
	f.requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, "req-1", domain.RequestSent)
}

func TestProcessRequest_PartialTargetFailureSurfacesInStats(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1", "tgt-gone"},
		Status:     domain.RequestProcessing,
	}
	res := resolutionOf(platformUsers(2)...)
	res.TargetErrors = map[string]error{
		"tgt-gone": fmt.Errorf("target tgt-gone: %w", domain.ErrTargetResolution),
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", req.Targets).Return(res, nil)
	f.requests.On("SaveStats", mock.Anything, "req-1", mock.Anything).Return(nil)
	f.requests.On("UpdateStatus", mock.Anything, "req-1", domain.RequestSent).Return(nil)

	stats, err := processAndWait(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sent[domain.DeliveryWeb])
	require.Contains(t, stats.TargetErrors, "tgt-gone")
	assert.Contains(t, stats.TargetErrors["tgt-gone"], "tgt-gone")
	assert.Equal(t, domain.RequestSent, req.Status)
}

func TestProcessRequest_TemplateMissing(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{
		RequestID:  "req-1",
		TenantID:   "tenant-1",
		TemplateID: "tpl-gone",
		Targets:    []string{"tgt-1"},
	}

	f.templates.On("Get", mock.Anything, "tpl-gone").Return(nil, domain.ErrNotFound)

	stats, err := processAndWait(t, f, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, stats)
	f.requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitRequest_ImmediateDispatch(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{TemplateID: "tpl-1", Targets: []string{"tgt-1"}}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.requests.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.requests.On("Get", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	out, err := f.svc.SubmitRequest(context.Background(), "tenant-1", req)
	require.NoError(t, err)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, "tenant-1", out.TenantID)
	assert.Equal(t, domain.RequestProcessing, out.Status)
	assert.Equal(t, time.Duration(0), f.sched.scheduled[out.RequestID])
}

func TestSubmitRequest_DelayedStaysScheduled(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{TemplateID: "tpl-1", Targets: []string{"tgt-1"}, DelaySec: 30}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.requests.On("Put", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.SubmitRequest(context.Background(), "tenant-1", req)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestScheduled, out.Status)
	assert.Equal(t, 30*time.Second, f.sched.scheduled[out.RequestID])
	assert.Empty(t, f.web.delivered())
	f.resolver.AssertNotCalled(t, "ResolveAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitRequest_RejectsMissingTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitRequest(context.Background(), "tenant-1",
		&domain.NotificationRequest{Targets: []string{"tgt-1"}})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	f.templates.On("Get", mock.Anything, "tpl-gone").Return(nil, domain.ErrNotFound)
	_, err = f.svc.SubmitRequest(context.Background(), "tenant-1",
		&domain.NotificationRequest{TemplateID: "tpl-gone", Targets: []string{"tgt-1"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRequest_CascadesAndFlushes(t *testing.T) {
	f := newFixture(t)
	f.sched.scheduled["req-1"] = 30 * time.Second
	stored := &domain.NotificationRequest{RequestID: "req-1", TenantID: "tenant-1", Status: domain.RequestScheduled}

	f.requests.On("Get", mock.Anything, "req-1").Return(stored, nil)
	f.notifs.On("DeleteByRequest", mock.Anything, "req-1").Return([]string{"user-0", "user-1"}, nil)
	f.hub.On("OnRequestDeleted", mock.Anything, "req-1", []string{"user-0", "user-1"}).Return()
	f.requests.On("Delete", mock.Anything, "req-1").Return(nil)

	require.NoError(t, f.svc.DeleteRequest(context.Background(), "tenant-1", "req-1"))
	assert.Contains(t, f.sched.cancelled, "req-1")
	f.hub.AssertCalled(t, "OnRequestDeleted", mock.Anything, "req-1", []string{"user-0", "user-1"})
	f.requests.AssertCalled(t, "Delete", mock.Anything, "req-1")
}

func TestDeleteRequest_ForbiddenAcrossTenants(t *testing.T) {
	f := newFixture(t)
	stored := &domain.NotificationRequest{RequestID: "req-1", TenantID: "tenant-2"}

	f.requests.On("Get", mock.Anything, "req-1").Return(stored, nil)

	err := f.svc.DeleteRequest(context.Background(), "tenant-1", "req-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	f.notifs.AssertNotCalled(t, "DeleteByRequest", mock.Anything, mock.Anything)
}

func TestGetStats_Forbidden(t *testing.T) {
	f := newFixture(t)
	stored := &domain.NotificationRequest{RequestID: "req-1", TenantID: "tenant-2"}

	f.requests.On("Get", mock.Anything, "req-1").Return(stored, nil)

	_, err := f.svc.GetStats(context.Background(), "tenant-1", "req-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPreview_CountsAndProcessedTemplates(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{TemplateID: "tpl-1", TenantID: "tenant-1", Targets: []string{"tgt-1", "tgt-2"}}
	slack := &domain.SlackRecipient{Conversation: domain.SlackConversation{
		Type: domain.SlackDirect, ID: "U123", Name: "jane", WholeName: "Jane Doe",
	}}
	res := resolutionOf(append(platformUsers(2), slack)...)
	res.CountByTarget = map[string]int{"Everyone": 2, "Slack DM": 1}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", []string{"tgt-1", "tgt-2"}).Return(res, nil)

	preview, err := f.svc.Preview(context.Background(), "tenant-1", req)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.TotalRecipientsCount)
	assert.Equal(t, map[string]int{"Everyone": 2, "Slack DM": 1}, preview.RecipientsCountByTarget)
	assert.Contains(t, preview.RecipientsPreview, "@Jane Doe")

	web, ok := preview.ProcessedTemplates[domain.DeliveryWeb]
	require.True(t, ok)
	assert.Equal(t, "Hello First0", web.Subject)
	assert.False(t, strings.Contains(web.Subject, "${"))
	// Dry run leaves every channel untouched.
	assert.Empty(t, f.web.delivered())
	assert.Empty(t, f.email.delivered())
}

func TestPreview_SurfacesTargetErrors(t *testing.T) {
	f := newFixture(t)
	req := &domain.NotificationRequest{TemplateID: "tpl-1", TenantID: "tenant-1", Targets: []string{"tgt-1", "tgt-gone"}}
	res := resolutionOf(platformUsers(1)...)
	res.TargetErrors = map[string]error{
		"tgt-gone": fmt.Errorf("target tgt-gone: %w", domain.ErrTargetResolution),
	}

	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil)
	f.resolver.On("ResolveAll", mock.Anything, "tenant-1", req.Targets).Return(res, nil)

	preview, err := f.svc.Preview(context.Background(), "tenant-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.TotalRecipientsCount)
	require.Contains(t, preview.TargetErrors, "tgt-gone")
	assert.Contains(t, preview.TargetErrors["tgt-gone"], "tgt-gone")
}

func TestSweepScheduled_ReArmsPastDue(t *testing.T) {
	f := newFixture(t)
	pastDue := domain.NotificationRequest{
		RequestID:  "req-old",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		DelaySec:   10,
		Status:     domain.RequestScheduled,
		CreatedAt:  time.Now().Add(-time.Minute).UnixMilli(),
	}
	upcoming := domain.NotificationRequest{
		RequestID:  "req-soon",
		TenantID:   "tenant-1",
		TemplateID: "tpl-1",
		Targets:    []string{"tgt-1"},
		DelaySec:   3600,
		Status:     domain.RequestScheduled,
		CreatedAt:  time.Now().UnixMilli(),
	}
	f.sched.scheduled["req-armed"] = time.Minute

	f.requests.On("ListScheduled", mock.Anything).
		Return([]domain.NotificationRequest{pastDue, upcoming}, nil)

	f.svc.SweepScheduled(context.Background())

	assert.Equal(t, time.Millisecond, f.sched.scheduled["req-old"])
	soon, ok := f.sched.scheduled["req-soon"]
	require.True(t, ok)
	assert.Greater(t, soon, 59*time.Minute)
}

func TestListRequests_EnrichesWithTemplate(t *testing.T) {
	f := newFixture(t)
	reqs := []domain.NotificationRequest{
		{RequestID: "req-1", TenantID: "tenant-1", TemplateID: "tpl-1", Status: domain.RequestSent},
		{RequestID: "req-2", TenantID: "tenant-1", TemplateID: "tpl-1", Status: domain.RequestScheduled},
	}

	f.requests.On("ListByTenant", mock.Anything, "tenant-1", int32(20), "").Return(reqs, "cur", nil)
	f.templates.On("Get", mock.Anything, "tpl-1").Return(webEmailTemplate(), nil).Once()

	views, next, err := f.svc.ListRequests(context.Background(), "tenant-1", 20, "")
	require.NoError(t, err)
	assert.Equal(t, "cur", next)
	require.Len(t, views, 2)
	assert.Equal(t, "Maintenance window", views[0].TemplateName)
	assert.ElementsMatch(t, []domain.DeliveryMethod{domain.DeliveryWeb, domain.DeliveryEmail}, views[1].DeliveryMethods)
	f.templates.AssertNumberOfCalls(t, "Get", 1)
}
