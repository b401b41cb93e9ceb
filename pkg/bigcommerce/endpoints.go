package bigcommerce

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/pagination"
)

const (
	ordersPath   = "/orders"
	productsPath = "/products"
	brandsPath   = "/brands"
	storePath    = "/store"
)

// withParams appends an encoded query to endpoint, which may already carry one.
func withParams(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}

func pageParams(page pagination.PageRequest) url.Values {
	return url.Values{
		"page":  {fmt.Sprint(page.Index)},
		"limit": {fmt.Sprint(page.Size)},
	}
}

func ordersEndpoint(from, to time.Time) string {
	return withParams(ordersPath, url.Values{
		"min_date_created": {from.UTC().Format(time.RFC3339)},
		"max_date_created": {to.UTC().Format(time.RFC3339)},
	})
}

func orderProductsEndpoint(o Order) string {
	return o.ProductsResource.endpoint(fmt.Sprintf("%s/%d/products", ordersPath, o.ID))
}

func orderShippingAddressesEndpoint(o Order) string {
	return o.ShippingAddressesResource.endpoint(fmt.Sprintf("%s/%d/shipping_addresses", ordersPath, o.ID))
}

func productSkusEndpoint(p Product) string {
	return p.SkusResource.endpoint(fmt.Sprintf("%s/%d/skus", productsPath, p.ID))
}

func productUpdateEndpoint(productID int) string {
	return fmt.Sprintf("%s/%d", productsPath, productID)
}

func productOptionUpdateEndpoint(productID, optionID int) string {
	return fmt.Sprintf("%s/%d/skus/%d", productsPath, productID, optionID)
}
