package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/db"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/metrics"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

// Service defines the order workflow.
type Service interface {
	Create(ctx context.Context, buyer Actor, input CreateOrderInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, callerID, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	Cancel(ctx context.Context, buyer Actor, orderID uuid.UUID) (*OrderDTO, error)
	Rate(ctx context.Context, buyer Actor, orderID uuid.UUID, input RateOrderInput) (*RatingDTO, error)
	Delete(ctx context.Context, admin Actor, orderID uuid.UUID) error
	GetDetails(ctx context.Context, callerID uuid.UUID, callerRole enums.Role, orderID uuid.UUID) (*OrderDetailsDTO, error)
	List(ctx context.Context, filter ListFilter) ([]OrderDTO, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]OrderDTO, error)
	ListForSupplier(ctx context.Context, supplierID uuid.UUID) ([]OrderDTO, error)
}

// ServiceParams bundles the order workflow dependencies.
type ServiceParams struct {
	Repo    Repository
	DB      txRunner
	Outbox  outbox.Emitter
	Users   profileLoader
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	users   profileLoader
	logg    *logger.Logger
	metrics *metrics.DomainMetrics
	now     func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.DB,
		outbox:  params.Outbox,
		users:   params.Users,
		logg:    logg,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// Create places an order against a single supplier. Stock for every line is
// taken with a conditional decrement; any shortfall rolls the whole order back.
func (s *service) Create(ctx context.Context, buyer Actor, input CreateOrderInput) (*OrderDTO, error) {
	lines, err := mergeLines(input.Items)
	if err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Validation("invalid payment_method")
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		found, err := repo.FindProducts(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
		}

		var supplierID uuid.UUID
		for _, line := range lines {
			product, ok := found[line.ProductID]
			if !ok {
				return pkgerrors.NotFound(fmt.Sprintf("product %s not found", line.ProductID))
			}
			if supplierID == uuid.Nil {
				supplierID = product.SupplierID
			} else if product.SupplierID != supplierID {
				return pkgerrors.Validation("all items must belong to the same supplier")
			}
		}

		order := &models.Order{
			VendorID:      buyer.UserID,
			SupplierID:    supplierID,
			PaymentMethod: input.PaymentMethod,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			TotalPrice:    decimal.Zero,
		}
		for _, line := range lines {
			product := found[line.ProductID]
			ok, err := repo.DecrementStock(ctx, product.ID, line.QuantityRequired)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if !ok {
				s.metrics.StockRejected()
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"product_id": product.ID.String(),
					"requested":  line.QuantityRequired,
				}), "order rejected for insufficient stock")
				return pkgerrors.Validation("insufficient stock for " + product.Name)
			}

			lineTotal := product.PricePerUnit.Mul(decimal.NewFromInt(int64(line.QuantityRequired)))
			order.Items = append(order.Items, models.OrderItem{
				ProductID:        product.ID,
				SupplierID:       product.SupplierID,
				Name:             product.Name,
				QuantityRequired: line.QuantityRequired,
				PriceAtPurchase:  product.PricePerUnit,
				LineTotal:        lineTotal,
			})
			order.TotalPrice = order.TotalPrice.Add(lineTotal)
		}

		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buyer.ref(),
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				VendorID:      order.VendorID,
				SupplierID:    order.SupplierID,
				TotalPrice:    order.TotalPrice,
				PaymentMethod: order.PaymentMethod,
				Items:         eventLines(order.Items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	s.logg.Info(s.orderCtx(ctx, created), "order created")
	dto := orderFromModel(created, nil)
	return &dto, nil
}

// UpdateStatus lets the order's supplier move the fulfilment and payment
// axes along their FSMs. Re-sending the current value is a no-op.
func (s *service) UpdateStatus(ctx context.Context, callerID, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if input.Status == nil && input.PaymentStatus == nil {
		return nil, pkgerrors.Validation("status or payment_status is required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.Validation("invalid status")
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.Validation("invalid payment_status")
	}

	var result, before *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.SupplierID != callerID {
			return pkgerrors.Forbidden("only the order's supplier can update it")
		}

		updates := map[string]any{}
		var events []outbox.DomainEvent
		actor := &outbox.ActorRef{UserID: callerID, Role: enums.RoleSupplier.String()}

		if input.Status != nil && *input.Status != order.Status {
			if !order.Status.CanTransitionTo(*input.Status) {
				return illegalTransition("status", string(order.Status), string(*input.Status))
			}
			updates["status"] = *input.Status
			events = append(events, statusEvent(order, *input.Status, actor))
			if *input.Status == enums.OrderStatusCancelled {
				if err := restoreStock(ctx, repo, order); err != nil {
					return err
				}
				events = append(events, cancelledEvent(order, enums.RoleSupplier, s.now().UTC(), actor))
			}
		}
		if input.PaymentStatus != nil && *input.PaymentStatus != order.PaymentStatus {
			if !order.PaymentStatus.CanTransitionTo(*input.PaymentStatus) {
				return illegalTransition("payment_status", string(order.PaymentStatus), string(*input.PaymentStatus))
			}
			updates["payment_status"] = *input.PaymentStatus
			events = append(events, paymentEvent(order, *input.PaymentStatus, actor))
		}

		if len(updates) == 0 {
			result = order
			return nil
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}
		for _, event := range events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
			}
		}
		if result, err = repo.FindOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		before = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if before != nil {
		s.recordTransitions(ctx, before, input)
	}
	dto := orderFromModel(result, nil)
	return &dto, nil
}

// Cancel lets the buyer withdraw an order that is still pending.
func (s *service) Cancel(ctx context.Context, buyer Actor, orderID uuid.UUID) (*OrderDTO, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.VendorID != buyer.UserID {
			return pkgerrors.Forbidden("only the order's vendor can cancel it")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.Validation("only pending orders can be cancelled")
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": enums.OrderStatusCancelled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if err := restoreStock(ctx, repo, order); err != nil {
			return err
		}

		actor := buyer.ref()
		for _, event := range []outbox.DomainEvent{
			statusEvent(order, enums.OrderStatusCancelled, actor),
			cancelledEvent(order, buyer.Role, s.now().UTC(), actor),
		} {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
			}
		}
		if result, err = repo.FindOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderTransition("status", string(enums.OrderStatusCancelled))
	s.logg.Info(s.logg.WithActorRole(s.orderCtx(ctx, result), buyer.Role.String()), "order cancelled by buyer")
	dto := orderFromModel(result, nil)
	return &dto, nil
}

// Rate records the buyer's single review of an order.
func (s *service) Rate(ctx context.Context, buyer Actor, orderID uuid.UUID, input RateOrderInput) (*RatingDTO, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.Validation("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(input.Comment)

	var rating *models.OrderRating
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.VendorID != buyer.UserID {
			return pkgerrors.Forbidden("only the order's vendor can rate it")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.Validation("cancelled orders cannot be rated")
		}
		rated, err := repo.HasRating(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check rating")
		}
		if rated {
			return pkgerrors.Validation("order already rated")
		}

		created, err := repo.CreateRating(ctx, &models.OrderRating{
			OrderID:  order.ID,
			VendorID: buyer.UserID,
			Rating:   input.Rating,
			Comment:  comment,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "order_id") {
				return pkgerrors.Validation("order already rated")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create rating")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderRated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buyer.ref(),
			Data: payloads.OrderRatedEvent{
				OrderID:    order.ID,
				VendorID:   order.VendorID,
				SupplierID: order.SupplierID,
				Rating:     created.Rating,
				Comment:    created.Comment,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order rated")
		}
		rating = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := ratingsFromModel([]models.OrderRating{*rating})[0]
	return &out, nil
}

// Delete removes an order outright. Stock held by an order that has not
// reached a terminal status goes back to the products that still exist.
func (s *service) Delete(ctx context.Context, admin Actor, orderID uuid.UUID) error {
	var deleted *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}

		restock := !order.Status.IsTerminal()
		if restock {
			if err := restoreStock(ctx, repo, order); err != nil {
				return err
			}
		}
		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         admin.ref(),
			Data: payloads.OrderDeletedEvent{
				OrderID:    order.ID,
				VendorID:   order.VendorID,
				SupplierID: order.SupplierID,
				Status:     order.Status,
				Restocked:  restock,
				DeletedAt:  s.now().UTC(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order deleted")
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithActorRole(s.orderCtx(ctx, deleted), admin.Role.String()), "order deleted")
	return nil
}

func (s *service) lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) recordTransitions(ctx context.Context, order *models.Order, input UpdateStatusInput) {
	fields := map[string]any{"order_id": order.ID.String()}
	if input.Status != nil && *input.Status != order.Status {
		s.metrics.OrderTransition("status", string(*input.Status))
		fields["status_from"] = order.Status
		fields["status_to"] = *input.Status
	}
	if input.PaymentStatus != nil && *input.PaymentStatus != order.PaymentStatus {
		s.metrics.OrderTransition("payment_status", string(*input.PaymentStatus))
		fields["payment_from"] = order.PaymentStatus
		fields["payment_to"] = *input.PaymentStatus
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "order status updated")
}

func (s *service) orderCtx(ctx context.Context, order *models.Order) context.Context {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	return s.logg.WithFields(ctx, map[string]any{
		"vendor_id":   order.VendorID.String(),
		"supplier_id": order.SupplierID.String(),
		"status":      order.Status,
	})
}

// mergeLines validates the requested lines and folds duplicates of the same
// product into one line, keeping first-seen order.
func mergeLines(items []OrderItemInput) ([]OrderItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.Validation("at least one item is required")
	}
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]OrderItemInput, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.Validation("product_id is required")
		}
		if item.QuantityRequired < 1 {
			return nil, pkgerrors.Validation("quantity_required must be at least 1")
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].QuantityRequired += item.QuantityRequired
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// restoreStock returns each line's quantity to products that still exist.
func restoreStock(ctx context.Context, repo Repository, order *models.Order) error {
	for _, item := range order.Items {
		if _, err := repo.RestoreStock(ctx, item.ProductID, item.QuantityRequired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}
	return nil
}

func illegalTransition(field, from, to string) error {
	return pkgerrors.Validation("illegal status transition").WithDetails(map[string]any{
		"field": field,
		"from":  from,
		"to":    to,
	})
}

func statusEvent(order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			VendorID:   order.VendorID,
			SupplierID: order.SupplierID,
			From:       order.Status,
			To:         to,
		},
	}
}

func paymentEvent(order *models.Order, to enums.PaymentStatus, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderPaymentStatusChangedEvent{
			OrderID:    order.ID,
			VendorID:   order.VendorID,
			SupplierID: order.SupplierID,
			From:       order.PaymentStatus,
			To:         to,
		},
	}
}

func cancelledEvent(order *models.Order, by enums.Role, at time.Time, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			VendorID:    order.VendorID,
			SupplierID:  order.SupplierID,
			CancelledBy: by,
			CancelledAt: at,
		},
	}
}

func eventLines(items []models.OrderItem) []payloads.OrderLine {
	out := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		out = append(out, payloads.OrderLine{
			ProductID:        item.ProductID,
			Name:             item.Name,
			QuantityRequired: item.QuantityRequired,
			PriceAtPurchase:  item.PriceAtPurchase,
		})
	}
	return out
}
