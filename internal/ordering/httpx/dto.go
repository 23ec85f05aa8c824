package httpx

import (
	validation "github.com/jellydator/validation"

	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
)

type CreateOrderRequest struct {
	BuyerID       string               `json:"buyer_id"`
	BuyerName     string               `json:"buyer_name"`
	Street        string               `json:"street"`
	City          string               `json:"city"`
	State         string               `json:"state"`
	Country       string               `json:"country"`
	ZipCode       string               `json:"zip_code"`
	PaymentMethod string               `json:"payment_method"`
	Items         []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	Units       int     `json:"units"`
	PictureURL  string  `json:"picture_url"`
}

// Validate checks the create order request before it reaches the domain.
func (r *CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BuyerID, validation.Required),
		validation.Field(&r.Street, validation.Required),
		validation.Field(&r.City, validation.Required),
		validation.Field(&r.State, validation.Required),
		validation.Field(&r.Country, validation.Required),
		validation.Field(&r.ZipCode, validation.Required),
		validation.Field(&r.Items, validation.Required, validation.Length(1, 0), validation.Each(validation.By(validateOrderItem))),
	)
}

func validateOrderItem(value any) error {
	item, ok := value.(CreateOrderItemDTO)
	if !ok {
		return validation.NewError("validation_item_type", "must be an order item")
	}
	return validation.ValidateStruct(&item,
		validation.Field(&item.ProductID, validation.Required),
		validation.Field(&item.UnitPrice, validation.Min(0.0)),
		validation.Field(&item.Discount, validation.Min(0.0)),
		validation.Field(&item.Units, validation.Required, validation.Min(1)),
	)
}

func (r *CreateOrderRequest) toDomain() (domain.Address, []domain.OrderItem) {
	address := domain.Address{
		Street:  r.Street,
		City:    r.City,
		State:   r.State,
		Country: r.Country,
		ZipCode: r.ZipCode,
	}
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
			Units:       it.Units,
			PictureURL:  it.PictureURL,
		})
	}
	return address, items
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
