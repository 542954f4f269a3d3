// Package service implements the reservation manager: the only code path
// allowed to change a lot's sale state or a purchase request's review
// state.  Every operation runs in one store transaction.
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/villa-armonia/lot-reservation/internal/clock"
	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/repository"
)

// Store is the persistence the manager needs.  Implementations return
// repository.ErrNotFound for missing rows.  LockLot and LockRequest must
// hold a row lock until the surrounding WithTx returns.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	LockLot(ctx context.Context, id string) (model.Lot, error)
	SetLotStatus(ctx context.Context, id string, status model.LotStatus, ownerID *uint64, now time.Time) error

	GetRequest(ctx context.Context, id string) (model.LotRequest, error)
	LockRequest(ctx context.Context, id string) (model.LotRequest, error)
	InsertRequest(ctx context.Context, req model.LotRequest) error
	UpdateRequest(ctx context.Context, req model.LotRequest) error
	HasOpenRequest(ctx context.Context, lotID string, userID uint64) (bool, error)
	ListOpenRequests(ctx context.Context, lotID string) ([]model.LotRequest, error)

	GetUserBySubject(ctx context.Context, subject string) (model.User, error)
	GetUserByID(ctx context.Context, id uint64) (model.User, error)
	EnsureUser(ctx context.Context, u model.User) (model.User, error)
	UpsertProfile(ctx context.Context, u model.User) (model.User, error)
}

// Policy holds the business decisions that are switchable per deployment.
type Policy struct {
	// Waitlist lets further requesters file against a lot that is already
	// PENDING_APPROVAL.  When false only AVAILABLE lots accept requests.
	Waitlist bool
	// CascadeReject rejects the other open requests of a lot when one of
	// them is approved.
	CascadeReject bool
	// AdminEmails are promoted to ADMIN when their profile is first created.
	AdminEmails []string
}

// CascadeNote is the admin note written on requests closed by a sale.
const CascadeNote = "lot sold to another requester"

// Manager runs the purchase request workflow.
type Manager struct {
	store    Store
	clock    clock.Clock
	policy   Policy
	validate *validator.Validate
	newID    func() string
}

func NewManager(store Store, clk clock.Clock, policy Policy) *Manager {
	return &Manager{
		store:    store,
		clock:    clk,
		policy:   policy,
		validate: newValidator(),
		newID:    func() string { return uuid.NewString() },
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// SubmitInput is everything a purchase request carries.  Documents hold the
// URLs returned by the document store; uploads happen before Submit.
type SubmitInput struct {
	LotID     string
	Identity  model.Identity
	Profile   model.Profile
	Documents model.Documents
}

// Outcome is the committed state after a transition.
type Outcome struct {
	Request       model.LotRequest
	Lot           model.Lot
	Requester     model.User
	CascadeClosed []model.LotRequest
}

// ValidateProfile checks the requester fields of a purchase form.
func (m *Manager) ValidateProfile(p model.Profile) error {
	if err := m.validate.Struct(p); err != nil {
		return validationError(err)
	}
	return nil
}

func (m *Manager) validateSubmit(in SubmitInput) error {
	if in.Identity.Subject == "" {
		return ErrMissingIdentity
	}
	if strings.TrimSpace(in.LotID) == "" {
		return ErrLotNotFound
	}
	if err := m.ValidateProfile(in.Profile); err != nil {
		return err
	}
	if in.Documents.IDDocumentURL == "" || in.Documents.AddressDocumentURL == "" {
		return ErrMissingDocuments
	}
	if err := m.validate.Struct(in.Documents); err != nil {
		return validationError(err)
	}
	return nil
}

// SubmitRequest files a purchase request against a lot and claims the lot.
func (m *Manager) SubmitRequest(ctx context.Context, in SubmitInput) (Outcome, error) {
	if err := m.validateSubmit(in); err != nil {
		return Outcome{}, err
	}
	dob, err := time.Parse("2006-01-02", in.Profile.DateOfBirth)
	if err != nil {
		return Outcome{}, newError(ErrValidation, "validation_failed", "invalid fields: date_of_birth (datetime)")
	}

	var out Outcome
	err = m.store.WithTx(ctx, func(ctx context.Context) error {
		lot, err := m.store.LockLot(ctx, in.LotID)
		if err != nil {
			return notFoundAs(err, ErrLotNotFound, "lock lot")
		}
		if lot.Status == model.LotSold {
			return ErrLotSold
		}

		existing, err := m.store.GetUserBySubject(ctx, in.Identity.Subject)
		switch {
		case err == nil:
			dup, err := m.store.HasOpenRequest(ctx, lot.ID, existing.ID)
			if err != nil {
				return internal("check duplicate", err)
			}
			if dup {
				return ErrDuplicateRequest
			}
		case !errors.Is(err, repository.ErrNotFound):
			return internal("load requester", err)
		}

		if lot.Status != model.LotAvailable && !(m.policy.Waitlist && lot.Status == model.LotPendingApproval) {
			return ErrLotUnavailable
		}

		now := m.clock.Now()
		user, err := m.store.UpsertProfile(ctx, model.User{
			ExternalSubject:    in.Identity.Subject,
			Email:              in.Profile.Email,
			Role:               model.RoleFor(in.Profile.Email, m.policy.AdminEmails),
			Name:               in.Profile.Name,
			Phone:              in.Profile.Phone,
			DateOfBirth:        &dob,
			PlaceOfBirth:       in.Profile.PlaceOfBirth,
			MaritalStatus:      in.Profile.MaritalStatus,
			Occupation:         in.Profile.Occupation,
			NationalID:         in.Profile.NationalID,
			IDDocumentURL:      in.Documents.IDDocumentURL,
			AddressDocumentURL: in.Documents.AddressDocumentURL,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return internal("upsert profile", err)
		}

		req := model.LotRequest{
			ID:        m.newID(),
			LotID:     lot.ID,
			UserID:    user.ID,
			Status:    model.RequestPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.InsertRequest(ctx, req); err != nil {
			return internal("insert request", err)
		}
		if lot.Status == model.LotAvailable {
			if err := m.store.SetLotStatus(ctx, lot.ID, model.LotPendingApproval, nil, now); err != nil {
				return internal("claim lot", err)
			}
			lot.Status = model.LotPendingApproval
			lot.UpdatedAt = now
		}
		out = Outcome{Request: req, Lot: lot, Requester: user}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Contact records that an admin reached the requester.  The lot keeps its
// status because the request is still unresolved.
func (m *Manager) Contact(ctx context.Context, requestID, notes string, admin model.User) (Outcome, error) {
	return m.review(ctx, requestID, admin, func(ctx context.Context, lot *model.Lot, req *model.LotRequest, now time.Time) ([]model.LotRequest, error) {
		if req.Status != model.RequestPending {
			return nil, ErrInvalidTransition
		}
		req.Status = model.RequestContacted
		if n := notesPtr(notes); n != nil {
			req.AdminNotes = n
		}
		req.Contacted = true
		req.ContactedAt = &now
		req.UpdatedAt = now
		if err := m.store.UpdateRequest(ctx, *req); err != nil {
			return nil, internal("update request", err)
		}
		return nil, nil
	})
}

// Approve sells the lot to the request's requester.  It is the only
// transition into SOLD.
func (m *Manager) Approve(ctx context.Context, requestID string, admin model.User) (Outcome, error) {
	return m.review(ctx, requestID, admin, func(ctx context.Context, lot *model.Lot, req *model.LotRequest, now time.Time) ([]model.LotRequest, error) {
		if !req.Status.CanTransitionTo(model.RequestApproved) {
			return nil, ErrInvalidTransition
		}
		switch lot.Status {
		case model.LotSold:
			return nil, ErrLotSold
		case model.LotAvailable, model.LotPendingApproval:
		default:
			return nil, ErrLotUnavailable
		}

		approver := admin.ID
		req.Status = model.RequestApproved
		req.ApprovedBy = &approver
		req.ApprovedAt = &now
		req.UpdatedAt = now
		if err := m.store.UpdateRequest(ctx, *req); err != nil {
			return nil, internal("update request", err)
		}
		owner := req.UserID
		if err := m.store.SetLotStatus(ctx, lot.ID, model.LotSold, &owner, now); err != nil {
			return nil, internal("sell lot", err)
		}
		lot.Status = model.LotSold
		lot.OwnerID = &owner
		lot.UpdatedAt = now

		if !m.policy.CascadeReject {
			return nil, nil
		}
		open, err := m.store.ListOpenRequests(ctx, lot.ID)
		if err != nil {
			return nil, internal("list siblings", err)
		}
		closed := make([]model.LotRequest, 0, len(open))
		for _, sib := range open {
			if sib.ID == req.ID {
				continue
			}
			sib.Status = model.RequestRejected
			sib.AdminNotes = notesPtr(CascadeNote)
			sib.UpdatedAt = now
			if err := m.store.UpdateRequest(ctx, sib); err != nil {
				return nil, internal("reject sibling", err)
			}
			closed = append(closed, sib)
		}
		return closed, nil
	})
}

// Reject closes a request.  A lot awaiting approval returns to AVAILABLE
// once no open request remains on it.
func (m *Manager) Reject(ctx context.Context, requestID, notes string, admin model.User) (Outcome, error) {
	return m.review(ctx, requestID, admin, func(ctx context.Context, lot *model.Lot, req *model.LotRequest, now time.Time) ([]model.LotRequest, error) {
		if !req.Status.CanTransitionTo(model.RequestRejected) {
			return nil, ErrInvalidTransition
		}
		req.Status = model.RequestRejected
		if n := notesPtr(notes); n != nil {
			req.AdminNotes = n
		}
		req.UpdatedAt = now
		if err := m.store.UpdateRequest(ctx, *req); err != nil {
			return nil, internal("update request", err)
		}
		if lot.Status != model.LotPendingApproval {
			return nil, nil
		}
		open, err := m.store.ListOpenRequests(ctx, lot.ID)
		if err != nil {
			return nil, internal("list open requests", err)
		}
		if len(open) == 0 {
			if err := m.store.SetLotStatus(ctx, lot.ID, model.LotAvailable, nil, now); err != nil {
				return nil, internal("release lot", err)
			}
			lot.Status = model.LotAvailable
			lot.UpdatedAt = now
		}
		return nil, nil
	})
}

type reviewFunc func(ctx context.Context, lot *model.Lot, req *model.LotRequest, now time.Time) ([]model.LotRequest, error)

// review runs an admin transition: role check, then lot lock, then request
// lock, then apply, all in one transaction.
func (m *Manager) review(ctx context.Context, requestID string, admin model.User, apply reviewFunc) (Outcome, error) {
	if !admin.IsAdmin() {
		return Outcome{}, ErrRoleRequired
	}
	var out Outcome
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		peek, err := m.store.GetRequest(ctx, requestID)
		if err != nil {
			return notFoundAs(err, ErrRequestNotFound, "load request")
		}
		lot, err := m.store.LockLot(ctx, peek.LotID)
		if err != nil {
			return notFoundAs(err, ErrLotNotFound, "lock lot")
		}
		req, err := m.store.LockRequest(ctx, requestID)
		if err != nil {
			return notFoundAs(err, ErrRequestNotFound, "lock request")
		}

		closed, err := apply(ctx, &lot, &req, m.clock.Now())
		if err != nil {
			return err
		}
		requester, err := m.store.GetUserByID(ctx, req.UserID)
		if err != nil {
			return internal("load requester", err)
		}
		out = Outcome{Request: req, Lot: lot, Requester: requester, CascadeClosed: closed}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func notFoundAs(err error, notFound error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return internal(op, err)
}

func notesPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
