package deliveries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/products"
	"github.com/fakturo/fakturo/internal/proformas"
)

type fakeRepo struct {
	notes    map[int64]*DeliveryNote
	lines    map[int64]Line
	nextID   int64
	nextLine int64
	seq      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notes: make(map[int64]*DeliveryNote), lines: make(map[int64]Line)}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*DeliveryNote, error) {
	dn, ok := f.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *dn
	cp.Lines = nil
	for _, l := range f.lines {
		if l.DeliveryNoteID == id {
			cp.Lines = append(cp.Lines, l)
		}
	}
	return &cp, nil
}

func (f *fakeRepo) List(context.Context, ListDeliveryNotesRequest) ([]WithDetails, int, error) {
	out := make([]WithDetails, 0, len(f.notes))
	for _, dn := range f.notes {
		out = append(out, WithDetails{DeliveryNote: *dn})
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, dn DeliveryNote) (int64, error) {
	f.nextID++
	dn.ID = f.nextID
	f.notes[dn.ID] = &dn
	return dn.ID, nil
}

func (f *fakeRepo) InsertLine(_ context.Context, line Line) (int64, error) {
	f.nextLine++
	line.ID = f.nextLine
	f.lines[line.ID] = line
	return line.ID, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	dn, ok := f.notes[id]
	if !ok {
		return ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "driver_name":
			v := val.(string)
			dn.DriverName = &v
		case "vehicle_reg":
			v := val.(string)
			dn.VehicleReg = &v
		case "tracking_ref":
			v := val.(string)
			dn.TrackingRef = &v
		case "notes":
			v := val.(string)
			dn.Notes = &v
		case "issue_date":
			dn.IssueDate = val.(time.Time)
		}
	}
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status, deliveredAt *time.Time) error {
	dn, ok := f.notes[id]
	if !ok {
		return ErrNotFound
	}
	dn.Status = status
	dn.DeliveryDate = deliveredAt
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.notes[id]; !ok {
		return ErrNotFound
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeRepo) DeleteLines(_ context.Context, noteID int64) error {
	for id, l := range f.lines {
		if l.DeliveryNoteID == noteID {
			delete(f.lines, id)
		}
	}
	return nil
}

func (f *fakeRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("DN-%s-%04d", date.Format("0601"), f.seq), nil
}

type fakeClientRepo struct{}

func (fakeClientRepo) Get(_ context.Context, id int64) (*clients.Client, error) {
	if id != 1 {
		return nil, clients.ErrNotFound
	}
	return &clients.Client{ID: 1, Name: "Acme SARL"}, nil
}

func (fakeClientRepo) List(context.Context, clients.ListClientsRequest) ([]clients.Client, int, error) {
	return nil, 0, nil
}
func (fakeClientRepo) Create(context.Context, clients.Client) (int64, error) { return 0, nil }
func (fakeClientRepo) Update(context.Context, int64, clients.Client) error   { return nil }
func (fakeClientRepo) Delete(context.Context, int64) error                   { return nil }

type fakeProductRepo struct{}

func (fakeProductRepo) Get(_ context.Context, id int64) (*products.Product, error) {
	if id != 10 {
		return nil, products.ErrNotFound
	}
	return &products.Product{ID: 10, Code: "HW-02", Name: "Workstation"}, nil
}

func (fakeProductRepo) List(context.Context, products.ListProductsRequest) ([]products.Product, int, error) {
	return nil, 0, nil
}
func (fakeProductRepo) Create(context.Context, products.Product) (int64, error) { return 0, nil }
func (fakeProductRepo) Update(context.Context, int64, products.Product) error   { return nil }
func (fakeProductRepo) Delete(context.Context, int64) error                     { return nil }
func (fakeProductRepo) AdjustStock(context.Context, int64, int64) error         { return nil }

type fakeInvoiceRepo struct{}

func (fakeInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, invoices.Repository) error) error {
	return fn(ctx, fakeInvoiceRepo{})
}

func (fakeInvoiceRepo) Get(_ context.Context, id int64) (*invoices.Invoice, error) {
	if id != 55 {
		return nil, invoices.ErrNotFound
	}
	return &invoices.Invoice{ID: 55, Number: "INV-2503-0001", Status: invoices.StatusUnpaid}, nil
}

func (fakeInvoiceRepo) GetByNumber(context.Context, string) (*invoices.Invoice, error) {
	return nil, invoices.ErrNotFound
}

func (fakeInvoiceRepo) List(context.Context, invoices.ListInvoicesRequest) ([]invoices.WithDetails, int, error) {
	return nil, 0, nil
}

func (fakeInvoiceRepo) Create(context.Context, invoices.Invoice) (int64, error) { return 0, nil }
func (fakeInvoiceRepo) UpdateStatus(context.Context, int64, invoices.Status, *time.Time) error {
	return nil
}
func (fakeInvoiceRepo) Delete(context.Context, int64) error { return nil }
func (fakeInvoiceRepo) GenerateNumber(context.Context, time.Time) (string, error) {
	return "", nil
}
func (fakeInvoiceRepo) GetProformaForUpdate(context.Context, int64) (*proformas.Proforma, error) {
	return nil, proformas.ErrNotFound
}
func (fakeInvoiceRepo) ReassignLines(context.Context, int64, int64) (int64, error) { return 0, nil }
func (fakeInvoiceRepo) ReleaseLines(context.Context, int64) error                  { return nil }
func (fakeInvoiceRepo) LinkProforma(context.Context, int64, int64) error           { return nil }
func (fakeInvoiceRepo) UnlinkProforma(context.Context, int64) error                { return nil }

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo, fakeClientRepo{}, fakeProductRepo{}, fakeInvoiceRepo{}), repo
}

func createRequest() CreateDeliveryNoteRequest {
	driver := "K. Benali"
	return CreateDeliveryNoteRequest{
		ClientID:   1,
		IssueDate:  time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		DriverName: &driver,
		Lines: []LineRequest{
			{ProductID: 10, Quantity: 3},
		},
	}
}

func TestCreateDeliveryNote(t *testing.T) {
	svc, _ := newTestService()

	dn, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, dn.Status)
	assert.Equal(t, "DN-2503-0001", dn.Number)
	require.Len(t, dn.Lines, 1)
	assert.Equal(t, int64(3), dn.Lines[0].Quantity)
	assert.Nil(t, dn.DeliveryDate)
}

func TestCreateWithInvoiceLink(t *testing.T) {
	svc, _ := newTestService()

	req := createRequest()
	invoiceID := int64(55)
	req.FinalInvoiceID = &invoiceID

	dn, err := svc.Create(context.Background(), req, 7)
	require.NoError(t, err)
	require.NotNil(t, dn.FinalInvoiceID)
	assert.Equal(t, invoiceID, *dn.FinalInvoiceID)

	missing := int64(999)
	req.FinalInvoiceID = &missing
	_, err = svc.Create(context.Background(), req, 7)
	assert.ErrorIs(t, err, invoices.ErrNotFound)
}

func TestMarkDelivered(t *testing.T) {
	svc, _ := newTestService()

	dn, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	delivered, err := svc.MarkDelivered(context.Background(), dn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveryDate)

	_, err = svc.MarkDelivered(context.Background(), dn.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCancelOnlyPending(t *testing.T) {
	svc, _ := newTestService()

	dn, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), dn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.MarkDelivered(context.Background(), dn.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateOnlyPending(t *testing.T) {
	svc, _ := newTestService()

	dn, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)

	tracking := "TRK-778812"
	updated, err := svc.Update(context.Background(), dn.ID, UpdateDeliveryNoteRequest{TrackingRef: &tracking})
	require.NoError(t, err)
	require.NotNil(t, updated.TrackingRef)
	assert.Equal(t, tracking, *updated.TrackingRef)

	_, err = svc.MarkDelivered(context.Background(), dn.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), dn.ID, UpdateDeliveryNoteRequest{TrackingRef: &tracking})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteKeepsDelivered(t *testing.T) {
	svc, repo := newTestService()

	dn, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)
	_, err = svc.MarkDelivered(context.Background(), dn.ID)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), dn.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	pending, err := svc.Create(context.Background(), createRequest(), 7)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), pending.ID))
	assert.NotContains(t, repo.notes, pending.ID)
}
