package orders

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/supplyhub-backend/api/middleware"
	internalorders "github.com/angelmondragon/supplyhub-backend/internal/orders"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func authed(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func withOrderID(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCreateDecodesItems(t *testing.T) {
	svc := &stubOrderService{}
	vendorID := uuid.New()
	productID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(
		`{"items":[{"product_id":"`+productID.String()+`","quantity_required":3}],"payment_method":"card"}`))
	req = authed(req, vendorID, enums.RoleVendor)
	rec := httptest.NewRecorder()
	Create(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.callerID != vendorID {
		t.Fatalf("unexpected caller %s", svc.callerID)
	}
	if len(svc.created.Items) != 1 || svc.created.Items[0].ProductID != productID || svc.created.Items[0].QuantityRequired != 3 {
		t.Fatalf("unexpected items %+v", svc.created.Items)
	}
	if svc.role != enums.RoleVendor {
		t.Fatalf("expected caller role to reach the service, got %q", svc.role)
	}
	if svc.created.PaymentMethod != enums.PaymentMethodCard {
		t.Fatalf("unexpected payment method %s", svc.created.PaymentMethod)
	}
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[],"payment_method":"card"}`))
	req = authed(req, uuid.New(), enums.RoleVendor)
	rec := httptest.NewRecorder()
	Create(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service must not be called")
	}
}

func TestMyOrdersIsRoleScoped(t *testing.T) {
	cases := []struct {
		role enums.Role
		want string
	}{
		{role: enums.RoleSupplier, want: "supplier"},
		{role: enums.RoleVendor, want: "vendor"},
		{role: enums.RoleCustomer, want: "vendor"},
		{role: enums.RoleAdmin, want: "vendor"},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			svc := &stubOrderService{}
			req := authed(httptest.NewRequest(http.MethodGet, "/api/orders/my-orders", nil), uuid.New(), tc.role)
			rec := httptest.NewRecorder()
			MyOrders(svc, testLogger()).ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if svc.listed != tc.want {
				t.Fatalf("expected %s listing, got %q", tc.want, svc.listed)
			}
		})
	}
}

func TestUpdateStatusMapsServiceErrors(t *testing.T) {
	orderID := uuid.New()
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "ok", want: http.StatusOK},
		{name: "not supplier", err: pkgerrors.Forbidden("only the order's supplier can update it"), want: http.StatusForbidden},
		{name: "illegal", err: pkgerrors.Validation("illegal status transition"), want: http.StatusBadRequest},
		{name: "missing", err: pkgerrors.NotFound("order not found"), want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{err: tc.err}
			req := httptest.NewRequest(http.MethodPut, "/api/orders/"+orderID.String(), strings.NewReader(`{"status":"shipped"}`))
			req = withOrderID(authed(req, uuid.New(), enums.RoleSupplier), orderID.String())
			rec := httptest.NewRecorder()
			UpdateStatus(svc, testLogger()).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if svc.status.Status == nil || *svc.status.Status != enums.OrderStatusShipped {
				t.Fatalf("expected shipped status to reach the service, got %+v", svc.status)
			}
			if svc.status.PaymentStatus != nil {
				t.Fatal("payment_status was not sent")
			}
		})
	}
}

func TestRateAndInvalidOrderID(t *testing.T) {
	svc := &stubOrderService{}
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/orders/x/rating", strings.NewReader(`{"rating":5}`))
	req = withOrderID(authed(req, uuid.New(), enums.RoleVendor), "x")
	rec := httptest.NewRecorder()
	Rate(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/rating", strings.NewReader(`{"rating":6}`))
	req = withOrderID(authed(req, uuid.New(), enums.RoleVendor), orderID.String())
	rec = httptest.NewRecorder()
	Rate(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range rating, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/rating", strings.NewReader(`{"rating":4,"comment":"good"}`))
	req = withOrderID(authed(req, uuid.New(), enums.RoleVendor), orderID.String())
	rec = httptest.NewRecorder()
	Rate(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.rating.Rating != 4 || svc.rating.Comment != "good" {
		t.Fatalf("unexpected rating %+v", svc.rating)
	}
}

func TestDetailPassesRole(t *testing.T) {
	svc := &stubOrderService{}
	orderID := uuid.New()
	req := withOrderID(authed(httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String(), nil), uuid.New(), enums.RoleAdmin), orderID.String())
	rec := httptest.NewRecorder()
	Detail(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.role != enums.RoleAdmin || svc.orderID != orderID {
		t.Fatalf("unexpected detail call role=%s order=%s", svc.role, svc.orderID)
	}
}

func TestCancelPassesCustomerRole(t *testing.T) {
	svc := &stubOrderService{}
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", nil)
	req = withOrderID(authed(req, uuid.New(), enums.RoleCustomer), orderID.String())
	rec := httptest.NewRecorder()
	Cancel(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.role != enums.RoleCustomer {
		t.Fatalf("expected customer role, got %q", svc.role)
	}
}

func TestListParsesPartyFilters(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodGet, "/api/orders?vendor_id="+vendorID.String(), nil)
	req = authed(req, uuid.New(), enums.RoleAdmin)
	rec := httptest.NewRecorder()
	List(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.filter.VendorID == nil || *svc.filter.VendorID != vendorID || svc.filter.SupplierID != nil {
		t.Fatalf("unexpected filter %+v", svc.filter)
	}

	svc = &stubOrderService{}
	req = authed(httptest.NewRequest(http.MethodGet, "/api/orders?supplier_id=nope", nil), uuid.New(), enums.RoleAdmin)
	rec = httptest.NewRecorder()
	List(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed supplier_id, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service must not be called")
	}
}

func TestDeleteMapsNotFound(t *testing.T) {
	orderID := uuid.New()
	adminID := uuid.New()
	svc := &stubOrderService{err: pkgerrors.NotFound("order not found")}
	req := httptest.NewRequest(http.MethodDelete, "/api/orders/"+orderID.String(), nil)
	req = withOrderID(authed(req, adminID, enums.RoleAdmin), orderID.String())
	rec := httptest.NewRecorder()
	Delete(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if svc.callerID != adminID || svc.orderID != orderID {
		t.Fatalf("unexpected delete call caller=%s order=%s", svc.callerID, svc.orderID)
	}
}

type stubOrderService struct {
	err      error
	calls    int
	callerID uuid.UUID
	orderID  uuid.UUID
	role     enums.Role
	listed   string
	filter   internalorders.ListFilter
	created  internalorders.CreateOrderInput
	status   internalorders.UpdateStatusInput
	rating   internalorders.RateOrderInput
}

func (s *stubOrderService) Create(ctx context.Context, buyer internalorders.Actor, input internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
	s.calls++
	s.callerID = buyer.UserID
	s.role = buyer.Role
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: uuid.New(), VendorID: buyer.UserID}, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, callerID, orderID uuid.UUID, input internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error) {
	s.calls++
	s.callerID = callerID
	s.orderID = orderID
	s.status = input
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID}, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, buyer internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.calls++
	s.role = buyer.Role
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrderService) Rate(ctx context.Context, buyer internalorders.Actor, orderID uuid.UUID, input internalorders.RateOrderInput) (*internalorders.RatingDTO, error) {
	s.calls++
	s.role = buyer.Role
	s.rating = input
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.RatingDTO{ID: uuid.New(), Rating: input.Rating, Comment: input.Comment}, nil
}

func (s *stubOrderService) GetDetails(ctx context.Context, callerID uuid.UUID, callerRole enums.Role, orderID uuid.UUID) (*internalorders.OrderDetailsDTO, error) {
	s.calls++
	s.role = callerRole
	s.orderID = orderID
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDetailsDTO{ID: orderID}, nil
}

func (s *stubOrderService) ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]internalorders.OrderDTO, error) {
	s.calls++
	s.listed = "vendor"
	return []internalorders.OrderDTO{}, s.err
}

func (s *stubOrderService) ListForSupplier(ctx context.Context, supplierID uuid.UUID) ([]internalorders.OrderDTO, error) {
	s.calls++
	s.listed = "supplier"
	return []internalorders.OrderDTO{}, s.err
}

func (s *stubOrderService) Delete(ctx context.Context, admin internalorders.Actor, orderID uuid.UUID) error {
	s.calls++
	s.callerID = admin.UserID
	s.orderID = orderID
	return s.err
}

func (s *stubOrderService) List(ctx context.Context, filter internalorders.ListFilter) ([]internalorders.OrderDTO, error) {
	s.calls++
	s.listed = "all"
	s.filter = filter
	return []internalorders.OrderDTO{}, s.err
}
