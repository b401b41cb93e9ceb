package bigcommerce

import (
	"fmt"
	"strconv"
)

// Resource is a link to a sub-collection as returned by the v2 API.
type Resource struct {
	URL      string `json:"url"`
	Resource string `json:"resource"`
}

// endpoint returns the link target, or fallback if the API sent none.
func (r Resource) endpoint(fallback string) string {
	if r.URL != "" {
		return r.URL
	}
	if r.Resource != "" {
		return r.Resource
	}
	return fallback
}

// Order is a store order. Products and ShippingAddresses are filled by GetOrders.
type Order struct {
	ID              int    `json:"id"`
	CustomerID      int    `json:"customer_id"`
	Status          string `json:"status"`
	DateCreated     string `json:"date_created"`
	DateModified    string `json:"date_modified"`
	TotalIncTax     string `json:"total_inc_tax"`
	ItemsTotal      int    `json:"items_total"`
	PaymentMethod   string `json:"payment_method"`
	CurrencyCode    string `json:"currency_code"`
	StaffNotes      string `json:"staff_notes,omitempty"`
	CustomerMessage string `json:"customer_message,omitempty"`

	ProductsResource          Resource `json:"products"`
	ShippingAddressesResource Resource `json:"shipping_addresses"`

	Products          []OrderProduct    `json:"order_products,omitempty"`
	ShippingAddresses []ShippingAddress `json:"order_shipping_addresses,omitempty"`
}

// Key identifies the order in errors and logs.
func (o Order) Key() string {
	return "order " + strconv.Itoa(o.ID)
}

// OrderProduct is a line item of an order.
type OrderProduct struct {
	ID          int    `json:"id"`
	OrderID     int    `json:"order_id"`
	ProductID   int    `json:"product_id"`
	Name        string `json:"name"`
	Sku         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	PriceIncTax string `json:"price_inc_tax"`
	TotalIncTax string `json:"total_inc_tax"`
}

// ShippingAddress is one shipping destination of an order.
type ShippingAddress struct {
	ID          int    `json:"id"`
	OrderID     int    `json:"order_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company"`
	Street1     string `json:"street_1"`
	Street2     string `json:"street_2"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	CountryISO2 string `json:"country_iso2"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// Product is a catalog product. Skus, Brand and WeightUnit are filled by GetProducts.
type Product struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Sku            string `json:"sku"`
	Price          string `json:"price"`
	CostPrice      string `json:"cost_price"`
	Weight         string `json:"weight"`
	InventoryLevel int    `json:"inventory_level"`
	BrandID        int    `json:"brand_id"`
	UPC            string `json:"upc"`

	SkusResource Resource `json:"skus"`

	Skus       []ProductSku `json:"product_skus,omitempty"`
	Brand      *Brand       `json:"brand_info,omitempty"`
	WeightUnit string       `json:"weight_unit,omitempty"`
}

// Key identifies the product in errors and logs.
func (p Product) Key() string {
	return "product " + strconv.Itoa(p.ID)
}

// ProductSku is a variant of a product.
type ProductSku struct {
	ID             int    `json:"id"`
	ProductID      int    `json:"product_id"`
	Sku            string `json:"sku"`
	Price          string `json:"price"`
	UPC            string `json:"upc"`
	InventoryLevel int    `json:"inventory_level"`
}

// Brand is a catalog brand.
type Brand struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Store holds the store settings needed to complete products.
type Store struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	WeightUnits string `json:"weight_units"`
}

// ProductOption is an inventory update target for a product variant.
type ProductOption struct {
	ID        int `json:"id"`
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Key identifies the option in errors and logs.
func (o ProductOption) Key() string {
	return fmt.Sprintf("product %d option %d", o.ProductID, o.ID)
}

// inventoryUpdate is the body of an inventory level update.
type inventoryUpdate struct {
	InventoryLevel int `json:"inventory_level"`
}
