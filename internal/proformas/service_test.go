package proformas

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/money"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/products"
)

type fakeRepo struct {
	proformas map[int64]*Proforma
	lines     map[int64]Line
	nextID    int64
	nextLine  int64
	seq       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{proformas: make(map[int64]*Proforma), lines: make(map[int64]Line)}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*Proforma, error) {
	p, ok := f.proformas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Lines = nil
	for _, l := range f.lines {
		if l.ProformaID != nil && *l.ProformaID == id {
			cp.Lines = append(cp.Lines, l)
		}
	}
	return &cp, nil
}

func (f *fakeRepo) GetByNumber(_ context.Context, number string) (*Proforma, error) {
	for id, p := range f.proformas {
		if p.Number == number {
			return f.Get(context.Background(), id)
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, _ ListProformasRequest) ([]WithDetails, int, error) {
	out := make([]WithDetails, 0, len(f.proformas))
	for _, p := range f.proformas {
		out = append(out, WithDetails{Proforma: *p})
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, p Proforma) (int64, error) {
	f.nextID++
	p.ID = f.nextID
	f.proformas[p.ID] = &p
	return p.ID, nil
}

func (f *fakeRepo) InsertLine(_ context.Context, line Line) (int64, error) {
	f.nextLine++
	line.ID = f.nextLine
	f.lines[line.ID] = line
	return line.ID, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	p, ok := f.proformas[id]
	if !ok {
		return ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "notes":
			v := val.(string)
			p.Notes = &v
		case "payment_type":
			p.PaymentType = val.(money.PaymentType)
		case "issue_date":
			p.IssueDate = val.(time.Time)
		case "due_date":
			p.DueDate = val.(time.Time)
		case "subtotal":
			p.Subtotal, _ = decimal.NewFromString(val.(string))
		case "tax_total":
			p.TaxTotal, _ = decimal.NewFromString(val.(string))
		case "stamp_tax":
			p.StampTax, _ = decimal.NewFromString(val.(string))
		case "total":
			p.Total, _ = decimal.NewFromString(val.(string))
		}
	}
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	p, ok := f.proformas[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.proformas[id]; !ok {
		return ErrNotFound
	}
	delete(f.proformas, id)
	return nil
}

func (f *fakeRepo) DeleteLines(_ context.Context, proformaID int64) error {
	for id, l := range f.lines {
		if l.ProformaID != nil && *l.ProformaID == proformaID {
			delete(f.lines, id)
		}
	}
	return nil
}

func (f *fakeRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("PF-%s-%04d", date.Format("0601"), f.seq), nil
}

type fakeClientRepo struct {
	clients map[int64]clients.Client
}

func (f *fakeClientRepo) Get(_ context.Context, id int64) (*clients.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return &c, nil
}

func (f *fakeClientRepo) List(context.Context, clients.ListClientsRequest) ([]clients.Client, int, error) {
	return nil, 0, nil
}
func (f *fakeClientRepo) Create(context.Context, clients.Client) (int64, error) { return 0, nil }
func (f *fakeClientRepo) Update(context.Context, int64, clients.Client) error   { return nil }
func (f *fakeClientRepo) Delete(context.Context, int64) error                   { return nil }

type fakeProductRepo struct {
	products map[int64]products.Product
}

func (f *fakeProductRepo) Get(_ context.Context, id int64) (*products.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProductRepo) List(context.Context, products.ListProductsRequest) ([]products.Product, int, error) {
	return nil, 0, nil
}
func (f *fakeProductRepo) Create(context.Context, products.Product) (int64, error) { return 0, nil }
func (f *fakeProductRepo) Update(context.Context, int64, products.Product) error   { return nil }
func (f *fakeProductRepo) Delete(context.Context, int64) error                     { return nil }
func (f *fakeProductRepo) AdjustStock(context.Context, int64, int64) error         { return nil }

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	clientRepo := &fakeClientRepo{clients: map[int64]clients.Client{
		1: {ID: 1, Name: "Acme SARL"},
	}}
	productRepo := &fakeProductRepo{products: map[int64]products.Product{
		10: {ID: 10, Code: "SRV-01", Name: "Consulting day", UnitPrice: decimal.NewFromInt(1000), TaxRate: decimal.NewFromInt(19)},
		11: {ID: 11, Code: "HW-02", Name: "Workstation", UnitPrice: decimal.NewFromInt(250), TaxRate: decimal.NewFromInt(9)},
	}}
	return NewService(repo, clientRepo, productRepo), repo
}

func createRequest() CreateProformaRequest {
	issue := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	return CreateProformaRequest{
		ClientID:    1,
		IssueDate:   issue,
		DueDate:     issue.AddDate(0, 1, 0),
		PaymentType: money.PaymentCash,
		Lines: []LineRequest{
			{ProductID: 10, Quantity: 2},
		},
	}
}

func TestCreateComputesTotals(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, "PF-2503-0001", p.Number)
	assert.True(t, p.Subtotal.Equal(decimal.NewFromInt(2000)), "subtotal %s", p.Subtotal)
	assert.True(t, p.TaxTotal.Equal(decimal.NewFromInt(380)), "tax total %s", p.TaxTotal)
	assert.True(t, p.StampTax.Equal(decimal.NewFromInt(20)), "stamp tax %s", p.StampTax)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(2400)), "total %s", p.Total)
	require.Len(t, p.Lines, 1)
	assert.True(t, p.Lines[0].UnitPrice.Equal(decimal.NewFromInt(1000)))
}

func TestCreateNonCashSkipsStampDuty(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest()
	req.PaymentType = money.PaymentTransfer

	p, err := svc.Create(context.Background(), req, 7)
	require.NoError(t, err)
	assert.True(t, p.StampTax.IsZero())
	assert.True(t, p.Total.Equal(decimal.NewFromInt(2380)))
}

func TestCreateRejectsDueDateBeforeIssueDate(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest()
	req.DueDate = req.IssueDate.AddDate(0, 0, -1)

	_, err := svc.Create(context.Background(), req, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateRejectsUnknownPaymentType(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest()
	req.PaymentType = money.PaymentType("BARTER")

	_, err := svc.Create(context.Background(), req, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateRejectsUnknownClient(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest()
	req.ClientID = 99

	_, err := svc.Create(context.Background(), req, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, clients.ErrNotFound)
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest()
	req.Lines[0].ProductID = 404

	_, err := svc.Create(context.Background(), req, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, products.ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	// DRAFT cannot be approved directly.
	_, err = svc.Approve(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	p, err = svc.Send(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, p.Status)

	// Sending twice is rejected.
	_, err = svc.Send(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	p, err = svc.Approve(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, p.Status)

	// Approved is terminal for decisions.
	_, err = svc.Reject(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRejectFromSent(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), p.ID)
	require.NoError(t, err)

	p, err = svc.Reject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, p.Status)
}

func TestUndoApprove(t *testing.T) {
	svc, repo := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), p.ID)
	require.NoError(t, err)

	p, err = svc.UndoApprove(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, p.Status)

	// Once converted, the approval cannot be undone.
	_, err = svc.Approve(context.Background(), p.ID)
	require.NoError(t, err)
	invoiceID := int64(55)
	repo.proformas[p.ID].FinalInvoiceID = &invoiceID

	_, err = svc.UndoApprove(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateOnlyDraft(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	notes := "deliver before month end"
	updated, err := svc.Update(context.Background(), p.ID, UpdateProformaRequest{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)

	_, err = svc.Send(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), p.ID, UpdateProformaRequest{Notes: &notes})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateReplacingLinesRecomputesTotals(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	lines := []LineRequest{
		{ProductID: 11, Quantity: 4},
	}
	updated, err := svc.Update(context.Background(), p.ID, UpdateProformaRequest{Lines: &lines})
	require.NoError(t, err)

	// 4 x 250 = 1000 excl, 9% tax = 90, cash stamp 1% = 10.
	assert.True(t, updated.Subtotal.Equal(decimal.NewFromInt(1000)), "subtotal %s", updated.Subtotal)
	assert.True(t, updated.TaxTotal.Equal(decimal.NewFromInt(90)), "tax total %s", updated.TaxTotal)
	assert.True(t, updated.StampTax.Equal(decimal.NewFromInt(10)), "stamp tax %s", updated.StampTax)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, int64(11), updated.Lines[0].ProductID)
}

func TestDeleteGuards(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), p.ID)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UndoApprove(context.Background(), p.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), p.ID))

	_, err = svc.Get(context.Background(), p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
