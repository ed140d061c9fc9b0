package service

import (
	"context"
	"fmt"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	"github.com/noah-isme/civic-complaints-api/pkg/jobs"
)

// EventPublisher receives committed lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt LifecycleEvent)
}

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type broadcaster interface {
	Emit(ctx context.Context, t realtime.Trigger, data any) error
}

type departmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

const analyticsCachePattern = "analytics:*"

// EventDispatcher runs the side effects of a committed change: notifications,
// realtime broadcasts and analytics cache invalidation. Every failure is
// logged and swallowed.
type EventDispatcher struct {
	notifications notificationWriter
	broadcaster   broadcaster
	departments   departmentLookup
	cache         cacheInvalidator
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewEventDispatcher wires the dispatcher. Any collaborator may be nil.
func NewEventDispatcher(notifications notificationWriter, b broadcaster, departments departmentLookup, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{notifications: notifications, broadcaster: b, departments: departments, cache: cache, metrics: metrics, logger: logger}
}

// Publish handles evt synchronously. It detaches from the caller's
// cancellation so a closed request does not abort half the fan-out.
func (d *EventDispatcher) Publish(ctx context.Context, evt LifecycleEvent) {
	ctx = context.WithoutCancel(ctx)
	log := d.logger.With(zap.String("event", string(evt.Kind)), zap.String("complaint_id", evt.Complaint.ID))

	if evt.Kind == EventChatMessage && evt.Actor.Role == models.RoleUser && evt.DepartmentHeadID == "" {
		evt.DepartmentHeadID = d.departmentHead(ctx, evt.Complaint, log)
	}

	for _, n := range FanOut(evt) {
		d.notify(ctx, n, log)
	}

	if trigger, data, ok := triggerFor(evt); ok && d.broadcaster != nil {
		if err := d.broadcaster.Emit(ctx, trigger, data); err != nil {
			d.metrics.RecordSideEffectFailure("broadcast")
			log.Warn("failed to broadcast lifecycle event", zap.Error(err))
		} else {
			d.metrics.RecordBroadcast(string(trigger.Kind))
		}
	}

	if evt.Kind != EventChatMessage && d.cache != nil {
		if err := d.cache.Invalidate(ctx, analyticsCachePattern); err != nil {
			d.metrics.RecordSideEffectFailure("cache")
			log.Warn("failed to invalidate analytics cache", zap.Error(err))
		}
	}
}

func (d *EventDispatcher) notify(ctx context.Context, n models.Notification, log *zap.Logger) {
	if d.notifications == nil {
		return
	}
	if err := d.notifications.Create(ctx, &n); err != nil {
		d.metrics.RecordSideEffectFailure("notification")
		log.Warn("failed to write notification", zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.Error(err))
		return
	}
	d.metrics.RecordNotification(string(n.Type))
	if d.broadcaster == nil {
		return
	}
	if err := d.broadcaster.Emit(ctx, realtime.Trigger{Kind: realtime.KindNotification, TargetID: n.UserID}, n); err != nil {
		d.metrics.RecordSideEffectFailure("broadcast")
		log.Warn("failed to push notification", zap.String("user_id", n.UserID), zap.Error(err))
	}
}

func (d *EventDispatcher) departmentHead(ctx context.Context, c models.Complaint, log *zap.Logger) string {
	if d.departments == nil || c.AssignedDepartmentID == nil || (c.AssignedStaffID != nil && *c.AssignedStaffID != "") {
		return ""
	}
	dept, err := d.departments.FindByID(ctx, *c.AssignedDepartmentID)
	if err != nil {
		log.Warn("failed to resolve department head", zap.String("department_id", *c.AssignedDepartmentID), zap.Error(err))
		return ""
	}
	if dept.HeadID == nil {
		return ""
	}
	return *dept.HeadID
}

// complaintPayload is the broadcast body for complaint events.
type complaintPayload struct {
	ComplaintID       string                   `json:"complaint_id"`
	Title             string                   `json:"title"`
	Status            models.ComplaintStatus   `json:"status"`
	Category          models.ComplaintCategory `json:"category"`
	Priority          models.ComplaintPriority `json:"priority"`
	UserID            string                   `json:"user_id"`
	StaffID           *string                  `json:"staff_id,omitempty"`
	DepartmentID      *string                  `json:"department_id,omitempty"`
	ResolutionSummary *string                  `json:"resolution_summary,omitempty"`
	ActorName         string                   `json:"actor_name,omitempty"`
}

type chatPayload struct {
	ComplaintID string              `json:"complaint_id"`
	Message     *models.ChatMessage `json:"message"`
}

func triggerFor(evt LifecycleEvent) (realtime.Trigger, any, bool) {
	c := evt.Complaint
	t := realtime.Trigger{ComplaintID: c.ID, OwnerID: c.UserID}
	if c.AssignedStaffID != nil {
		t.StaffID = *c.AssignedStaffID
	}
	payload := complaintPayload{
		ComplaintID:       c.ID,
		Title:             c.Title,
		Status:            c.Status,
		Category:          c.Category,
		Priority:          c.Priority,
		UserID:            c.UserID,
		StaffID:           c.AssignedStaffID,
		DepartmentID:      c.AssignedDepartmentID,
		ResolutionSummary: c.ResolutionSummary,
		ActorName:         evt.Actor.Name,
	}

	switch evt.Kind {
	case EventFiled:
		t.Kind = realtime.KindCreated
	case EventAssigned:
		t.Kind = realtime.KindAssigned
		if !evt.StaffAssigned {
			t.StaffID = ""
		}
	case EventStatusChanged:
		t.Kind = realtime.KindStatusUpdated
		payload.Status = evt.Status
	case EventResolved:
		t.Kind = realtime.KindResolved
	case EventChatMessage:
		return realtime.Trigger{Kind: realtime.KindChatMessage, ComplaintID: c.ID}, chatPayload{ComplaintID: c.ID, Message: evt.Message}, true
	default:
		return realtime.Trigger{}, nil, false
	}
	return t, payload, true
}

// AsyncPublisher hands events to background lanes so requests return as
// soon as the primary write commits. Each lane has a single worker and every
// event for a complaint lands on the same lane, so a complaint's events are
// delivered in the order they were published.
type AsyncPublisher struct {
	lanes  []*jobs.Queue[LifecycleEvent]
	logger *zap.Logger
}

// NewAsyncPublisher wraps d in cfg.Workers single-worker lanes sharing
// cfg.BufferSize. Handlers never fail, so queued events are not retried.
func NewAsyncPublisher(d *EventDispatcher, cfg jobs.QueueConfig) *AsyncPublisher {
	if cfg.Logger == nil {
		cfg.Logger = d.logger
	}
	lanes := cfg.Workers
	if lanes <= 0 {
		lanes = 1
	}
	laneCfg := cfg
	laneCfg.Workers = 1
	laneCfg.MaxRetries = 0
	laneCfg.BufferSize = cfg.BufferSize / lanes
	if laneCfg.BufferSize <= 0 {
		laneCfg.BufferSize = 4
	}

	handler := func(ctx context.Context, job jobs.Job[LifecycleEvent]) error {
		d.Publish(ctx, job.Payload)
		return nil
	}
	p := &AsyncPublisher{lanes: make([]*jobs.Queue[LifecycleEvent], lanes), logger: cfg.Logger}
	for i := range p.lanes {
		p.lanes[i] = jobs.NewQueue(fmt.Sprintf("lifecycle-events-%d", i), handler, laneCfg)
	}
	return p
}

// Start launches one worker per lane.
func (p *AsyncPublisher) Start(ctx context.Context) {
	for _, lane := range p.lanes {
		lane.Start(ctx)
	}
}

// Stop drains every lane.
func (p *AsyncPublisher) Stop() {
	for _, lane := range p.lanes {
		lane.Stop()
	}
}

// Publish enqueues evt on its complaint's lane, blocking while that lane is
// full. A stopped lane drops the event with a warning.
func (p *AsyncPublisher) Publish(_ context.Context, evt LifecycleEvent) {
	lane := p.lane(evt.Complaint.ID)
	if err := lane.Enqueue(jobs.Job[LifecycleEvent]{ID: evt.Complaint.ID, Payload: evt}); err != nil {
		p.logger.Warn("dropped lifecycle event", zap.String("event", string(evt.Kind)), zap.String("complaint_id", evt.Complaint.ID), zap.Error(err))
	}
}

func (p *AsyncPublisher) lane(complaintID string) *jobs.Queue[LifecycleEvent] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(complaintID))
	return p.lanes[h.Sum32()%uint32(len(p.lanes))]
}
