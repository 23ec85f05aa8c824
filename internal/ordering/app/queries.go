package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
)

// OrderItemView is one order line in the query model.
type OrderItemView struct {
	ProductName string  `json:"product_name"`
	Units       int     `json:"units"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	PictureURL  string  `json:"picture_url"`
}

// OrderView is the read model the storefront consumes.
type OrderView struct {
	OrderNumber            uuid.UUID          `json:"order_number"`
	Date                   time.Time          `json:"date"`
	Status                 domain.OrderStatus `json:"status"`
	Description            string             `json:"description"`
	Street                 string             `json:"street"`
	City                   string             `json:"city"`
	State                  string             `json:"state"`
	Country                string             `json:"country"`
	ZipCode                string             `json:"zip_code"`
	Items                  []OrderItemView    `json:"order_items"`
	Total                  float64            `json:"total"`
	PaymentProviderOrderID string             `json:"payment_provider_order_id,omitempty"`
}

// Queries is the ordering service's read side.
type Queries struct {
	orders domain.Repository
}

func NewQueries(orders domain.Repository) *Queries {
	return &Queries{orders: orders}
}

// GetOrder returns the order read model. The total is recomputed from the
// items; it is never stored.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	order, err := q.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	items := make([]OrderItemView, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, OrderItemView{
			ProductName: it.ProductName,
			Units:       it.Units,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
			PictureURL:  it.PictureURL,
		})
	}

	return &OrderView{
		OrderNumber:            order.ID,
		Date:                   order.CreatedAt,
		Status:                 order.Status,
		Description:            order.Description,
		Street:                 order.Address.Street,
		City:                   order.Address.City,
		State:                  order.Address.State,
		Country:                order.Address.Country,
		ZipCode:                order.Address.ZipCode,
		Items:                  items,
		Total:                  order.Total(),
		PaymentProviderOrderID: order.PaymentProviderOrderID,
	}, nil
}
