package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/application/workflow"
	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/event"
	"github.com/garyjia/sales-reports/internal/domain/permission"
	domainwf "github.com/garyjia/sales-reports/internal/domain/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	defaultLockTTL   = 10 * time.Second
)

// ReportService implements the report lifecycle use cases.
// Every operation takes the acting identity explicitly.
type ReportService interface {
	Create(ctx context.Context, actor entity.Actor, in ReportInput) (*entity.Report, error)
	Edit(ctx context.Context, actor entity.Actor, id int64, in ReportInput) (*entity.Report, error)
	Submit(ctx context.Context, actor entity.Actor, id int64) (*entity.Report, error)
	Approve(ctx context.Context, actor entity.Actor, id int64) (*entity.Report, error)
	Reject(ctx context.Context, actor entity.Actor, id int64, reason string) (*entity.Report, error)
	Delete(ctx context.Context, actor entity.Actor, id int64) error
	Get(ctx context.Context, actor entity.Actor, id int64) (*entity.Report, error)
	ListVisible(ctx context.Context, actor entity.Actor, filter port.ReportFilter) ([]*entity.Report, error)
	ExportVisible(ctx context.Context, actor entity.Actor, filter port.ReportFilter) ([]*entity.Report, error)
	Actions(actor entity.Actor, report *entity.Report) []string
	AddComment(ctx context.Context, actor entity.Actor, id int64, body string) (*entity.Comment, error)
	History(ctx context.Context, actor entity.Actor, id int64) ([]*entity.ReportHistory, error)
}

type reportServiceImpl struct {
	reportRepo  port.ReportRepository
	commentRepo port.CommentRepository
	historyRepo port.HistoryRepository
	locations   LocationService
	txManager   port.TransactionManager
	logger      Logger

	engine            *permission.Engine
	deletePolicy      port.DeletePolicy
	locker            port.Locker
	lockTTL           time.Duration
	publisher         port.EventPublisher
	tracer            trace.Tracer
	now               func() time.Time
	implicitAdvanceOn bool
}

// ReportOption configures the report service
type ReportOption func(*reportServiceImpl)

// WithPermissionEngine replaces the default name-matching engine
func WithPermissionEngine(engine *permission.Engine) ReportOption {
	return func(s *reportServiceImpl) {
		s.engine = engine
	}
}

// WithDeletePolicy sets the external delete authority
func WithDeletePolicy(policy port.DeletePolicy) ReportOption {
	return func(s *reportServiceImpl) {
		s.deletePolicy = policy
	}
}

// WithLocker serializes create and submit per actor
func WithLocker(locker port.Locker, ttl time.Duration) ReportOption {
	return func(s *reportServiceImpl) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithPublisher sets the event publisher for committed changes
func WithPublisher(publisher port.EventPublisher) ReportOption {
	return func(s *reportServiceImpl) {
		s.publisher = publisher
	}
}

// WithTracer sets the tracer used for operation spans
func WithTracer(tracer trace.Tracer) ReportOption {
	return func(s *reportServiceImpl) {
		s.tracer = tracer
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) ReportOption {
	return func(s *reportServiceImpl) {
		s.now = now
	}
}

// WithImplicitAdvanceOnEdit toggles the subdistrict admin edit_during_review path
func WithImplicitAdvanceOnEdit(enabled bool) ReportOption {
	return func(s *reportServiceImpl) {
		s.implicitAdvanceOn = enabled
	}
}

// NewReportService creates a new ReportService
func NewReportService(
	reportRepo port.ReportRepository,
	commentRepo port.CommentRepository,
	historyRepo port.HistoryRepository,
	locations LocationService,
	txManager port.TransactionManager,
	logger Logger,
	opts ...ReportOption,
) ReportService {
	s := &reportServiceImpl{
		reportRepo:        reportRepo,
		commentRepo:       commentRepo,
		historyRepo:       historyRepo,
		locations:         locations,
		txManager:         txManager,
		logger:            logger,
		lockTTL:           defaultLockTTL,
		tracer:            otel.Tracer("github.com/garyjia/sales-reports/internal/application/service"),
		now:               time.Now,
		implicitAdvanceOn: true,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = permission.NewEngine(permission.WithEditDuringReview(s.implicitAdvanceOn))
	}

	return s
}

// change is one committed mutation: the status CAS plus its history rows
type change struct {
	report     *entity.Report
	prior      string
	history    []*entity.ReportHistory
	lockActor  int64
	createOnly bool
}

// Create files a new report as draft, or straight into review when in.Submit is set
func (s *reportServiceImpl) Create(ctx context.Context, actor entity.Actor, in ReportInput) (*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Create", actor)
	defer span.End()

	inFlight := 0
	if actor.Role == entity.RoleBranchUser {
		n, err := s.reportRepo.CountInFlight(ctx, actor.ID)
		if err != nil {
			return nil, s.fail(span, "create", actor, 0, fmt.Errorf("count in-flight reports: %w", err))
		}
		inFlight = n
	}
	if d := s.engine.CanCreate(actor, inFlight); !d.Allowed {
		return nil, s.fail(span, "create", actor, 0, denied("create report", d))
	}

	report := &entity.Report{
		Status:    entity.StatusDraft,
		CreatedBy: actor.ID,
		Comments:  []entity.Comment{},
	}
	applyContent(report, in)
	if err := s.placeReport(ctx, actor, report, in); err != nil {
		return nil, s.fail(span, "create", actor, 0, err)
	}

	now := s.now()
	report.CreatedAt = now
	report.UpdatedAt = now

	c := &change{report: report, createOnly: true, lockActor: actor.ID}
	c.history = append(c.history, s.historyEntry(report, actor, entity.ActionCreate, "", entity.StatusDraft, ""))

	if in.Submit {
		tr, err := s.decide(report, domainwf.TriggerSubmit, actor)
		if err != nil {
			return nil, s.fail(span, "create", actor, 0, err)
		}
		if err := validateStruct(submissionOf(report)); err != nil {
			return nil, s.fail(span, "create", actor, 0, err)
		}
		s.applyTransition(report, tr, "")
		c.history = append(c.history, s.historyEntry(report, actor, string(tr.Trigger), string(tr.From), string(tr.To), ""))
	}

	if err := s.commit(ctx, c); err != nil {
		return nil, s.fail(span, "create", actor, 0, err)
	}

	s.publish(ctx, event.TypeReportCreated, report, actor, nil)
	if report.Status == entity.StatusPendingSubdistrict {
		s.publish(ctx, event.TypeReportSubmitted, report, actor, map[string]interface{}{
			event.PayloadFromStatus: entity.StatusDraft,
		})
	}

	s.logger.Info("Report created", "report_id", report.ID, "actor_id", actor.ID, "status", report.Status)
	return report, nil
}

// Edit changes report content. The creator edits draft and rejected reports;
// the matching subdistrict admin editing a pending_subdistrict report fires edit_during_review.
func (s *reportServiceImpl) Edit(ctx context.Context, actor entity.Actor, id int64, in ReportInput) (*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Edit", actor, attribute.Int64("report.id", id))
	defer span.End()

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "edit", actor, id, err)
	}

	if actor.Role == entity.RoleSubdistrictAdmin && report.Status == entity.StatusPendingSubdistrict {
		updated, err := s.editDuringReview(ctx, actor, report, in)
		if err != nil {
			return nil, s.fail(span, "edit", actor, id, err)
		}
		return updated, nil
	}

	if d := s.engine.CanEdit(actor, report); !d.Allowed {
		return nil, s.fail(span, "edit", actor, id, denied("edit report", d))
	}

	prior := report.Status
	applyContent(report, in)
	if err := s.placeReport(ctx, actor, report, in); err != nil {
		return nil, s.fail(span, "edit", actor, id, err)
	}

	c := &change{report: report, prior: prior, lockActor: actor.ID}
	c.history = append(c.history, s.historyEntry(report, actor, entity.ActionEdit, prior, prior, ""))

	if in.Submit {
		tr, err := s.decide(report, domainwf.TriggerSubmit, actor)
		if err != nil {
			return nil, s.fail(span, "edit", actor, id, err)
		}
		if err := validateStruct(submissionOf(report)); err != nil {
			return nil, s.fail(span, "edit", actor, id, err)
		}
		s.applyTransition(report, tr, "")
		c.history = append(c.history, s.historyEntry(report, actor, string(tr.Trigger), string(tr.From), string(tr.To), ""))
	}

	report.UpdatedAt = s.now()
	if err := s.commit(ctx, c); err != nil {
		return nil, s.fail(span, "edit", actor, id, err)
	}

	s.publish(ctx, event.TypeReportEdited, report, actor, nil)
	if report.Status == entity.StatusPendingSubdistrict {
		s.publish(ctx, event.TypeReportSubmitted, report, actor, map[string]interface{}{
			event.PayloadFromStatus: prior,
		})
	}

	s.logger.Info("Report edited", "report_id", id, "actor_id", actor.ID, "status", report.Status)
	return report, nil
}

// editDuringReview applies a reviewer correction and advances the report as a side effect
func (s *reportServiceImpl) editDuringReview(ctx context.Context, actor entity.Actor, report *entity.Report, in ReportInput) (*entity.Report, error) {
	if !s.implicitAdvanceOn {
		return nil, apperr.PermissionDenied("subdistrict admins cannot edit reports under review")
	}

	tr, err := s.decide(report, domainwf.TriggerEditDuringReview, actor)
	if err != nil {
		return nil, err
	}
	if d := s.engine.CanEditDuringReview(actor, report); !d.Allowed {
		return nil, denied("edit report under review", d)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	prior := report.Status
	if tr.Has(domainwf.EffectApplyContent) {
		if err := applyCorrection(report, in); err != nil {
			return nil, err
		}
	}
	if err := validateStruct(submissionOf(report)); err != nil {
		return nil, err
	}
	s.applyTransition(report, tr, "")

	c := &change{report: report, prior: prior}
	c.history = append(c.history, s.historyEntry(report, actor, string(tr.Trigger), string(tr.From), string(tr.To), "content corrected by reviewer"))

	if err := s.commit(ctx, c); err != nil {
		return nil, err
	}

	s.publish(ctx, event.TypeReportEdited, report, actor, nil)
	s.publish(ctx, event.TypeReportAdvanced, report, actor, map[string]interface{}{
		event.PayloadFromStatus: prior,
	})

	s.logger.Info("Report corrected during review", "report_id", report.ID, "actor_id", actor.ID, "status", report.Status)
	return report, nil
}

// Submit moves a complete draft or rejected report into subdistrict review
func (s *reportServiceImpl) Submit(ctx context.Context, actor entity.Actor, id int64) (*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Submit", actor, attribute.Int64("report.id", id))
	defer span.End()

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "submit", actor, id, err)
	}

	tr, err := s.decide(report, domainwf.TriggerSubmit, actor)
	if err != nil {
		return nil, s.fail(span, "submit", actor, id, err)
	}
	if d := s.engine.CanEdit(actor, report); !d.Allowed {
		return nil, s.fail(span, "submit", actor, id, denied("submit report", d))
	}
	if err := validateStruct(submissionOf(report)); err != nil {
		return nil, s.fail(span, "submit", actor, id, err)
	}

	// the chain must still be consistent at submission time
	chain, err := s.locations.ValidateTriple(ctx, report.BranchID, report.SubdistrictID, report.CityID)
	if err != nil {
		return nil, s.fail(span, "submit", actor, id, err)
	}
	report.SetLocation(*chain)

	prior := report.Status
	s.applyTransition(report, tr, "")

	c := &change{report: report, prior: prior, lockActor: actor.ID}
	c.history = append(c.history, s.historyEntry(report, actor, string(tr.Trigger), string(tr.From), string(tr.To), ""))
	if err := s.commit(ctx, c); err != nil {
		return nil, s.fail(span, "submit", actor, id, err)
	}

	s.publish(ctx, event.TypeReportSubmitted, report, actor, map[string]interface{}{
		event.PayloadFromStatus: prior,
	})

	s.logger.Info("Report submitted", "report_id", id, "actor_id", actor.ID)
	return report, nil
}

// Approve advances a pending_subdistrict report or finalizes a pending_city one.
// The transition is picked from the report's status, never from the caller.
func (s *reportServiceImpl) Approve(ctx context.Context, actor entity.Actor, id int64) (*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Approve", actor, attribute.Int64("report.id", id))
	defer span.End()

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "approve", actor, id, err)
	}

	var trigger domainwf.Trigger
	switch report.Status {
	case entity.StatusPendingSubdistrict:
		trigger = domainwf.TriggerAdvance
	case entity.StatusPendingCity:
		trigger = domainwf.TriggerFinalize
	default:
		return nil, s.fail(span, "approve", actor, id,
			fmt.Errorf("%w: cannot approve a report in status %s", apperr.ErrInvalidTransition, report.Status))
	}

	tr, err := s.decide(report, trigger, actor)
	if err != nil {
		return nil, s.fail(span, "approve", actor, id, err)
	}
	if _, d := s.engine.CanApprove(actor, report); !d.Allowed {
		return nil, s.fail(span, "approve", actor, id, denied("approve report", d))
	}

	prior := report.Status
	s.applyTransition(report, tr, "")

	c := &change{report: report, prior: prior}
	c.history = append(c.history, s.historyEntry(report, actor, string(tr.Trigger), string(tr.From), string(tr.To), ""))
	if err := s.commit(ctx, c); err != nil {
		return nil, s.fail(span, "approve", actor, id, err)
	}

	evtType := event.TypeReportAdvanced
	if report.Status == entity.StatusApproved {
		evtType = event.TypeReportApproved
	}
	s.publish(ctx, evtType, report, actor, map[string]interface{}{
		event.PayloadFromStatus: prior,
	})

	s.logger.Info("Report approved", "report_id", id, "actor_id", actor.ID, "trigger", tr.Trigger, "status", report.Status)
	return report, nil
}

// Reject sends a pending_city report back to its creator with a reason
func (s *reportServiceImpl) Reject(ctx context.Context, actor entity.Actor, id int64, reason string) (*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Reject", actor, attribute.Int64("report.id", id))
	defer span.End()

	reason = strings.TrimSpace(reason)
	if err := validateStruct(rejectInput{Reason: reason}); err != nil {
		return nil, s.fail(span, "reject", actor, id, err)
	}

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "reject", actor, id, err)
	}

	tr, err := s.decide(report, domainwf.TriggerReject, actor)
	if err != nil {
		return nil, s.fail(span, "reject", actor, id, err)
	}
	if d := s.engine.CanReject(actor, report, reason); !d.Allowed {
		return nil, s.fail(span, "reject", actor, id, denied("reject report", d))
	}

	prior := report.Status
	s.applyTransition(report, tr, reason)

	c := &change{report: report, prior: prior}
	c.history = append(c.history, s.historyEntry(report, actor, string(tr.Trigger), string(tr.From), string(tr.To), reason))
	if err := s.commit(ctx, c); err != nil {
		return nil, s.fail(span, "reject", actor, id, err)
	}

	s.publish(ctx, event.TypeReportRejected, report, actor, map[string]interface{}{
		event.PayloadFromStatus: prior,
		event.PayloadReason:     reason,
	})

	s.logger.Info("Report rejected", "report_id", id, "actor_id", actor.ID)
	return report, nil
}

// Delete removes a draft or rejected report owned by the actor
func (s *reportServiceImpl) Delete(ctx context.Context, actor entity.Actor, id int64) error {
	ctx, span := s.startSpan(ctx, "ReportService.Delete", actor, attribute.Int64("report.id", id))
	defer span.End()

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return s.fail(span, "delete", actor, id, err)
	}

	if d := s.engine.CanDelete(actor, report); !d.Allowed {
		return s.fail(span, "delete", actor, id, denied("delete report", d))
	}
	if s.deletePolicy != nil {
		ok, err := s.deletePolicy.CanDelete(ctx, actor.ID, id)
		if err != nil {
			return s.fail(span, "delete", actor, id, fmt.Errorf("delete policy: %w", err))
		}
		if !ok {
			return s.fail(span, "delete", actor, id, apperr.PermissionDenied("report %d can no longer be deleted", id))
		}
	}

	if err := s.reportRepo.Delete(ctx, id, report.Status); err != nil {
		return s.fail(span, "delete", actor, id, err)
	}

	s.publish(ctx, event.TypeReportDeleted, report, actor, map[string]interface{}{
		event.PayloadFromStatus: report.Status,
	})

	s.logger.Info("Report deleted", "report_id", id, "actor_id", actor.ID)
	return nil
}

// Get returns a report visible to the actor
func (s *reportServiceImpl) Get(ctx context.Context, actor entity.Actor, id int64) (*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Get", actor, attribute.Int64("report.id", id))
	defer span.End()

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "get", actor, id, err)
	}
	if d := s.engine.CanView(actor, report); !d.Allowed {
		return nil, s.fail(span, "get", actor, id, denied("view report", d))
	}
	return report, nil
}

// ListVisible returns the reports inside the actor's visibility scope
func (s *reportServiceImpl) ListVisible(ctx context.Context, actor entity.Actor, filter port.ReportFilter) ([]*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.ListVisible", actor)
	defer span.End()

	scope := s.engine.VisibilityScope(actor)
	if scope.Level == permission.ScopeNone {
		return []*entity.Report{}, nil
	}

	if filter.Status != "" && !domainwf.State(filter.Status).IsValid() {
		return nil, s.fail(span, "list", actor, 0, apperr.Field("status", "unknown status %q", filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	reports, err := s.reportRepo.List(ctx, scope, filter)
	if err != nil {
		return nil, s.fail(span, "list", actor, 0, err)
	}
	span.SetAttributes(attribute.Int("reports.count", len(reports)))
	return reports, nil
}

// Report actions as exposed by the HTTP routes
const (
	ActionEdit    = "edit"
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionDelete  = "delete"
	ActionComment = "comment"
)

// Actions lists what actor may do to report right now. Lifecycle actions come from
// the transitions the state machine permits the role, narrowed by the actor's scope.
// The external delete policy is not consulted.
func (s *reportServiceImpl) Actions(actor entity.Actor, report *entity.Report) []string {
	var actions []string
	add := func(action string, d permission.Decision) {
		if d.Allowed && !slices.Contains(actions, action) {
			actions = append(actions, action)
		}
	}

	add(ActionEdit, s.engine.CanEdit(actor, report))
	for _, trigger := range workflow.Permitted(domainwf.State(report.Status), actor.Role) {
		switch trigger {
		case domainwf.TriggerSubmit:
			add(ActionSubmit, s.engine.CanEdit(actor, report))
		case domainwf.TriggerAdvance:
			add(ActionApprove, s.engine.CanAdvance(actor, report))
		case domainwf.TriggerFinalize:
			add(ActionApprove, s.engine.CanFinalize(actor, report))
		case domainwf.TriggerReject:
			add(ActionReject, s.engine.Evaluate(permission.ActionReject, actor, report))
		case domainwf.TriggerEditDuringReview:
			if s.implicitAdvanceOn {
				add(ActionEdit, s.engine.CanEditDuringReview(actor, report))
			}
		}
	}
	add(ActionDelete, s.engine.CanDelete(actor, report))
	add(ActionComment, s.engine.CanComment(actor, report))

	if actions == nil {
		return []string{}
	}
	return actions
}

// ExportVisible returns every report in the actor's scope matching the filter's
// status, period and branch. Limit and offset are ignored; the scope is read page by page.
func (s *reportServiceImpl) ExportVisible(ctx context.Context, actor entity.Actor, filter port.ReportFilter) ([]*entity.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.ExportVisible", actor)
	defer span.End()

	scope := s.engine.VisibilityScope(actor)
	if scope.Level == permission.ScopeNone {
		return []*entity.Report{}, nil
	}
	if filter.Status != "" && !domainwf.State(filter.Status).IsValid() {
		return nil, s.fail(span, "export", actor, 0, apperr.Field("status", "unknown status %q", filter.Status))
	}

	all := []*entity.Report{}
	filter.Limit = maxListLimit
	for filter.Offset = 0; ; filter.Offset += maxListLimit {
		page, err := s.reportRepo.List(ctx, scope, filter)
		if err != nil {
			return nil, s.fail(span, "export", actor, 0, err)
		}
		all = append(all, page...)
		if len(page) < maxListLimit {
			break
		}
	}
	span.SetAttributes(attribute.Int("reports.count", len(all)))
	return all, nil
}

// AddComment appends a comment; comments are never edited or removed
func (s *reportServiceImpl) AddComment(ctx context.Context, actor entity.Actor, id int64, body string) (*entity.Comment, error) {
	ctx, span := s.startSpan(ctx, "ReportService.AddComment", actor, attribute.Int64("report.id", id))
	defer span.End()

	body = strings.TrimSpace(body)
	if err := validateStruct(commentInput{Body: body}); err != nil {
		return nil, s.fail(span, "comment", actor, id, err)
	}

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "comment", actor, id, err)
	}
	if d := s.engine.CanComment(actor, report); !d.Allowed {
		return nil, s.fail(span, "comment", actor, id, denied("comment on report", d))
	}

	comment := &entity.Comment{
		ReportID:   id,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Body:       body,
		CreatedAt:  s.now(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.commentRepo.Append(txCtx, comment); err != nil {
			return fmt.Errorf("append comment: %w", err)
		}
		h := s.historyEntry(report, actor, entity.ActionComment, report.Status, report.Status, "")
		if err := s.historyRepo.Create(txCtx, h); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "comment", actor, id, err)
	}

	s.publish(ctx, event.TypeReportCommented, report, actor, nil)
	return comment, nil
}

// History returns the audit trail of a visible report
func (s *reportServiceImpl) History(ctx context.Context, actor entity.Actor, id int64) ([]*entity.ReportHistory, error) {
	ctx, span := s.startSpan(ctx, "ReportService.History", actor, attribute.Int64("report.id", id))
	defer span.End()

	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "history", actor, id, err)
	}
	if d := s.engine.CanView(actor, report); !d.Allowed {
		return nil, s.fail(span, "history", actor, id, denied("view report history", d))
	}

	history, err := s.historyRepo.GetByReportID(ctx, id)
	if err != nil {
		return nil, s.fail(span, "history", actor, id, err)
	}
	return history, nil
}

// placeReport resolves and checks the report's location for a branch user.
// Omitted ids default to the actor's own branch chain.
func (s *reportServiceImpl) placeReport(ctx context.Context, actor entity.Actor, report *entity.Report, in ReportInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}

	branchID, subdistrictID, cityID := in.BranchID, in.SubdistrictID, in.CityID
	if branchID == 0 && subdistrictID == 0 && cityID == 0 {
		branchID, subdistrictID, cityID = actor.BranchID, actor.SubdistrictID, actor.CityID
	}
	if branchID != actor.BranchID {
		return apperr.PermissionDenied("branch users may only report for their assigned branch")
	}

	chain, err := s.locations.ValidateTriple(ctx, branchID, subdistrictID, cityID)
	if err != nil {
		return err
	}
	report.SetLocation(*chain)

	return validateStruct(draftOf(report))
}

// decide runs the state machine for the report's current status
func (s *reportServiceImpl) decide(report *entity.Report, trigger domainwf.Trigger, actor entity.Actor) (domainwf.Transition, error) {
	tr, err := workflow.Decide(domainwf.State(report.Status), trigger, actor.Role)
	if errors.Is(err, domainwf.ErrGuardFailed) {
		return tr, apperr.PermissionDenied("role %s cannot %s a report in status %s", actor.Role, trigger, report.Status)
	}
	if err != nil {
		return tr, err
	}
	return tr, nil
}

// applyTransition moves the report to the transition target and applies its effects
func (s *reportServiceImpl) applyTransition(report *entity.Report, tr domainwf.Transition, reason string) {
	now := s.now()
	report.Status = string(tr.To)
	report.UpdatedAt = now

	for _, effect := range tr.Effects {
		switch effect {
		case domainwf.EffectClearRejectionReason:
			report.RejectionReason = ""
		case domainwf.EffectRecordRejectionReason:
			report.RejectionReason = reason
		case domainwf.EffectStampSubmittedAt:
			report.SubmittedAt = &now
		case domainwf.EffectStampApprovedAt:
			report.ApprovedAt = &now
		}
	}
}

// commit persists a change inside one transaction, optionally under the actor lock
func (s *reportServiceImpl) commit(ctx context.Context, c *change) error {
	if s.locker != nil && c.lockActor != 0 {
		lock, err := s.locker.Obtain(ctx, fmt.Sprintf("report-lock:actor:%d", c.lockActor), s.lockTTL)
		if errors.Is(err, port.ErrLockNotObtained) {
			return apperr.Conflict("another request of actor %d is in progress", c.lockActor)
		}
		if err != nil {
			return fmt.Errorf("obtain actor lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("Failed to release actor lock", "actor_id", c.lockActor, "error", err)
			}
		}()
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if c.createOnly {
			if err := s.reportRepo.Create(txCtx, c.report); err != nil {
				return err
			}
		} else if err := s.reportRepo.Save(txCtx, c.report, c.prior); err != nil {
			return err
		}

		for _, h := range c.history {
			h.ReportID = c.report.ID
			if err := s.historyRepo.Create(txCtx, h); err != nil {
				return fmt.Errorf("create history: %w", err)
			}
		}
		return nil
	})

	if errors.Is(err, port.ErrInFlightReportExists) {
		return fmt.Errorf("%w: %v", apperr.ErrPermissionDenied, err)
	}
	return err
}

func (s *reportServiceImpl) historyEntry(report *entity.Report, actor entity.Actor, action, from, to, note string) *entity.ReportHistory {
	return &entity.ReportHistory{
		ReportID:   report.ID,
		ActorID:    actor.ID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		Timestamp:  s.now(),
	}
}

func (s *reportServiceImpl) publish(ctx context.Context, t event.Type, report *entity.Report, actor entity.Actor, extra map[string]interface{}) {
	if s.publisher == nil {
		return
	}

	payload := map[string]interface{}{
		event.PayloadToStatus:      report.Status,
		event.PayloadCreatedBy:     report.CreatedBy,
		event.PayloadSubdistrictID: report.SubdistrictID,
		event.PayloadCityID:        report.CityID,
		event.PayloadPeriod:        report.Period,
	}
	for k, v := range extra {
		payload[k] = v
	}

	s.publisher.DispatchAsync(ctx, event.NewEvent(t, report.ID, actor.ID, payload))
}

func (s *reportServiceImpl) startSpan(ctx context.Context, name string, actor entity.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.Int64("actor.id", actor.ID),
		attribute.String("actor.role", actor.Role.String()),
	)
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// fail records err on the span and logs it once; expected kinds are logged at info level
func (s *reportServiceImpl) fail(span trace.Span, op string, actor entity.Actor, reportID int64, err error) error {
	kind := apperr.KindOf(err)
	span.SetAttributes(attribute.String("error.kind", string(kind)))

	if kind == apperr.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Report operation failed", "op", op, "actor_id", actor.ID, "report_id", reportID, "error", err)
		return err
	}

	s.logger.Info("Report operation refused", "op", op, "actor_id", actor.ID, "report_id", reportID, "kind", kind, "error", err)
	return err
}

func denied(action string, d permission.Decision) error {
	return apperr.PermissionDenied("cannot %s: %s", action, d.Reason)
}
