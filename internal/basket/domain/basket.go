// Package domain defines the customer basket the storefront builds up and
// the ordering process consumes.
package domain

type CustomerBasket struct {
	BuyerID string       `json:"buyer_id"`
	Items   []BasketItem `json:"items"`
}

type BasketItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	PictureURL  string  `json:"picture_url"`
}
