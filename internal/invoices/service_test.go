package invoices

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/fakturo/internal/money"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/proformas"
)

var errStoreDown = errors.New("store unavailable")

// store backs both repository fakes so conversion tests observe the same
// data the service mutates. WithTx snapshots the maps and restores them on
// error, mimicking transactional rollback.
type store struct {
	proformas    map[int64]*proformas.Proforma
	invoices     map[int64]*Invoice
	lines        map[int64]*proformas.Line
	nextInvoice  int64
	seq          int
	failReassign bool
}

func newStore() *store {
	return &store{
		proformas: make(map[int64]*proformas.Proforma),
		invoices:  make(map[int64]*Invoice),
		lines:     make(map[int64]*proformas.Line),
	}
}

type snapshot struct {
	proformas map[int64]proformas.Proforma
	invoices  map[int64]Invoice
	lines     map[int64]proformas.Line
}

func (s *store) snapshot() snapshot {
	snap := snapshot{
		proformas: make(map[int64]proformas.Proforma, len(s.proformas)),
		invoices:  make(map[int64]Invoice, len(s.invoices)),
		lines:     make(map[int64]proformas.Line, len(s.lines)),
	}
	for id, p := range s.proformas {
		snap.proformas[id] = *p
	}
	for id, inv := range s.invoices {
		snap.invoices[id] = *inv
	}
	for id, l := range s.lines {
		snap.lines[id] = *l
	}
	return snap
}

func (s *store) restore(snap snapshot) {
	s.proformas = make(map[int64]*proformas.Proforma, len(snap.proformas))
	s.invoices = make(map[int64]*Invoice, len(snap.invoices))
	s.lines = make(map[int64]*proformas.Line, len(snap.lines))
	for id, p := range snap.proformas {
		cp := p
		s.proformas[id] = &cp
	}
	for id, inv := range snap.invoices {
		cp := inv
		s.invoices[id] = &cp
	}
	for id, l := range snap.lines {
		cp := l
		s.lines[id] = &cp
	}
}

type fakeInvoiceRepo struct {
	s *store
}

func (f *fakeInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snap := f.s.snapshot()
	if err := fn(ctx, f); err != nil {
		f.s.restore(snap)
		return err
	}
	return nil
}

func (f *fakeInvoiceRepo) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := f.s.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	cp.Lines = nil
	for _, l := range f.s.lines {
		if l.InvoiceID != nil && *l.InvoiceID == id {
			cp.Lines = append(cp.Lines, *l)
		}
	}
	return &cp, nil
}

func (f *fakeInvoiceRepo) GetByNumber(_ context.Context, number string) (*Invoice, error) {
	for id, inv := range f.s.invoices {
		if inv.Number == number {
			return f.Get(context.Background(), id)
		}
	}
	return nil, ErrNotFound
}

func (f *fakeInvoiceRepo) List(context.Context, ListInvoicesRequest) ([]WithDetails, int, error) {
	out := make([]WithDetails, 0, len(f.s.invoices))
	for _, inv := range f.s.invoices {
		out = append(out, WithDetails{Invoice: *inv})
	}
	return out, len(out), nil
}

func (f *fakeInvoiceRepo) Create(_ context.Context, inv Invoice) (int64, error) {
	f.s.nextInvoice++
	inv.ID = f.s.nextInvoice
	f.s.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (f *fakeInvoiceRepo) UpdateStatus(_ context.Context, id int64, status Status, paidAt *time.Time) error {
	inv, ok := f.s.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	inv.PaidAt = paidAt
	return nil
}

func (f *fakeInvoiceRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.s.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(f.s.invoices, id)
	return nil
}

func (f *fakeInvoiceRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	f.s.seq++
	return fmt.Sprintf("INV-%s-%04d", date.Format("0601"), f.s.seq), nil
}

func (f *fakeInvoiceRepo) GetProformaForUpdate(_ context.Context, proformaID int64) (*proformas.Proforma, error) {
	p, ok := f.s.proformas[proformaID]
	if !ok {
		return nil, proformas.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeInvoiceRepo) ReassignLines(_ context.Context, proformaID, invoiceID int64) (int64, error) {
	if f.s.failReassign {
		return 0, errStoreDown
	}
	var moved int64
	for _, l := range f.s.lines {
		if l.ProformaID != nil && *l.ProformaID == proformaID {
			id := invoiceID
			l.InvoiceID = &id
			moved++
		}
	}
	return moved, nil
}

func (f *fakeInvoiceRepo) ReleaseLines(_ context.Context, invoiceID int64) error {
	for _, l := range f.s.lines {
		if l.InvoiceID != nil && *l.InvoiceID == invoiceID {
			l.InvoiceID = nil
		}
	}
	return nil
}

func (f *fakeInvoiceRepo) LinkProforma(_ context.Context, proformaID, invoiceID int64) error {
	p, ok := f.s.proformas[proformaID]
	if !ok {
		return proformas.ErrNotFound
	}
	id := invoiceID
	p.FinalInvoiceID = &id
	return nil
}

func (f *fakeInvoiceRepo) UnlinkProforma(_ context.Context, proformaID int64) error {
	p, ok := f.s.proformas[proformaID]
	if !ok {
		return proformas.ErrNotFound
	}
	p.FinalInvoiceID = nil
	return nil
}

// fakeProformaRepo exposes the same store through the proformas interface.
// Only reads are exercised here.
type fakeProformaRepo struct {
	s *store
}

func (f *fakeProformaRepo) WithTx(ctx context.Context, fn func(context.Context, proformas.Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeProformaRepo) Get(_ context.Context, id int64) (*proformas.Proforma, error) {
	p, ok := f.s.proformas[id]
	if !ok {
		return nil, proformas.ErrNotFound
	}
	cp := *p
	cp.Lines = nil
	for _, l := range f.s.lines {
		if l.ProformaID != nil && *l.ProformaID == id {
			cp.Lines = append(cp.Lines, *l)
		}
	}
	return &cp, nil
}

func (f *fakeProformaRepo) GetByNumber(context.Context, string) (*proformas.Proforma, error) {
	return nil, proformas.ErrNotFound
}

func (f *fakeProformaRepo) List(context.Context, proformas.ListProformasRequest) ([]proformas.WithDetails, int, error) {
	return nil, 0, nil
}

func (f *fakeProformaRepo) Create(context.Context, proformas.Proforma) (int64, error) {
	return 0, nil
}
func (f *fakeProformaRepo) InsertLine(context.Context, proformas.Line) (int64, error) {
	return 0, nil
}
func (f *fakeProformaRepo) Update(context.Context, int64, map[string]interface{}) error { return nil }
func (f *fakeProformaRepo) UpdateStatus(context.Context, int64, proformas.Status) error { return nil }
func (f *fakeProformaRepo) Delete(context.Context, int64) error                         { return nil }
func (f *fakeProformaRepo) DeleteLines(context.Context, int64) error                    { return nil }
func (f *fakeProformaRepo) GenerateNumber(context.Context, time.Time) (string, error) {
	return "", nil
}

func newTestService() (*Service, *store) {
	s := newStore()
	return NewService(&fakeInvoiceRepo{s: s}, &fakeProformaRepo{s: s}, nil), s
}

func seedApprovedProforma(s *store) *proformas.Proforma {
	issue := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	p := &proformas.Proforma{
		ID:          1,
		Number:      "PF-2503-0001",
		ClientID:    1,
		IssueDate:   issue,
		DueDate:     issue.AddDate(0, 1, 0),
		Status:      proformas.StatusApproved,
		PaymentType: money.PaymentCash,
		Subtotal:    decimal.NewFromInt(2000),
		TaxTotal:    decimal.NewFromInt(380),
		StampTax:    decimal.NewFromInt(20),
		Total:       decimal.NewFromInt(2400),
		CreatedBy:   7,
	}
	s.proformas[p.ID] = p

	proformaID := p.ID
	s.lines[100] = &proformas.Line{
		ID:         100,
		ProformaID: &proformaID,
		ProductID:  10,
		Quantity:   2,
		UnitPrice:  decimal.NewFromInt(1000),
		TaxRate:    decimal.NewFromInt(19),
		TotalExcl:  decimal.NewFromInt(2000),
		TaxAmount:  decimal.NewFromInt(380),
		Total:      decimal.NewFromInt(2380),
		LineOrder:  1,
	}
	return p
}

func TestConvertFromProforma(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)

	result, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.NoError(t, err)

	inv := result.Invoice
	assert.Equal(t, StatusUnpaid, inv.Status)
	assert.Equal(t, "INV-2503-0001", inv.Number)
	assert.Equal(t, p.ClientID, inv.ClientID)
	require.NotNil(t, inv.ProformaID)
	assert.Equal(t, p.ID, *inv.ProformaID)
	assert.True(t, inv.Total.Equal(p.Total))

	// Bidirectional link.
	require.NotNil(t, result.Proforma.FinalInvoiceID)
	assert.Equal(t, inv.ID, *result.Proforma.FinalInvoiceID)
	assert.Equal(t, proformas.StatusApproved, result.Proforma.Status)

	// Lines were re-associated, not duplicated.
	assert.Len(t, s.lines, 1)
	require.Len(t, inv.Lines, 1)
	require.NotNil(t, inv.Lines[0].ProformaID)
	assert.Equal(t, p.ID, *inv.Lines[0].ProformaID)
}

func TestConvertRequiresApproved(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)
	s.proformas[p.ID].Status = proformas.StatusSent

	_, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestConvertTwiceFails(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)

	_, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.NoError(t, err)

	_, err = svc.ConvertFromProforma(context.Background(), p.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Len(t, s.invoices, 1)
}

func TestConvertRollsBackOnLineFailure(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)
	s.failReassign = true

	_, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)

	// No orphan invoice header, link untouched.
	assert.Empty(t, s.invoices)
	assert.Nil(t, s.proformas[p.ID].FinalInvoiceID)
}

func TestConvertRejectsEmptyProforma(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)
	delete(s.lines, 100)

	_, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, s.invoices)
}

func TestUndoConvertRoundTrip(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)

	_, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.NoError(t, err)

	restored, err := svc.UndoConvert(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, proformas.StatusApproved, restored.Status)
	assert.Nil(t, restored.FinalInvoiceID)
	assert.Empty(t, s.invoices)
	require.Len(t, restored.Lines, 1)
	assert.Nil(t, restored.Lines[0].InvoiceID)
}

func TestUndoConvertRequiresLink(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)

	_, err := svc.UndoConvert(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUndoConvertRejectsPaidInvoice(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)

	result, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.NoError(t, err)
	_, err = svc.MarkPaid(context.Background(), result.Invoice.ID)
	require.NoError(t, err)

	_, err = svc.UndoConvert(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Len(t, s.invoices, 1)
}

func TestMarkPaid(t *testing.T) {
	svc, s := newTestService()
	p := seedApprovedProforma(s)

	result, err := svc.ConvertFromProforma(context.Background(), p.ID, 7)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), result.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = svc.MarkPaid(context.Background(), result.Invoice.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMarkPaidRejectsDeadStates(t *testing.T) {
	svc, s := newTestService()

	s.invoices[9] = &Invoice{ID: 9, Number: "INV-2401-0009", Status: StatusCancelled}
	_, err := svc.MarkPaid(context.Background(), 9)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	s.invoices[9].Status = StatusCredited
	_, err = svc.MarkPaid(context.Background(), 9)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
