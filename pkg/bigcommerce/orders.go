package bigcommerce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/pagination"
	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
)

// GetOrders returns every order created between from and to, each with its
// line items and shipping addresses.
//
// Orders are fetched page by page. Each page is hydrated before the next one
// is requested, with a fan-out width derived from that page's budget.
func (s *Service) GetOrders(ctx context.Context, from, to time.Time) ([]Order, error) {
	ctx, logger := s.begin(ctx, "get_orders")
	start := time.Now()

	var orders []Order
	err := pagination.Walk(ctx, s.engine, "orders", pageFunc[Order](s, ordersEndpoint(from, to)),
		func(ctx context.Context, page []Order, state ratelimit.State) error {
			if err := s.hydrateOrders(ctx, page, state); err != nil {
				return err
			}
			orders = append(orders, page...)
			return nil
		})
	if err != nil {
		logger.Error().Err(err).Int("orders_fetched", len(orders)).Msg("Get orders failed")
		return nil, fmt.Errorf("get orders: %w", err)
	}

	logger.Info().
		Int("orders", len(orders)).
		Dur("duration", time.Since(start)).
		Msg("Orders fetched")

	return orders, nil
}

// hydrateOrders attaches line items and shipping addresses to the orders of one page.
// Each order is one fan-out unit, so a failing order never keeps its siblings
// from being hydrated.
func (s *Service) hydrateOrders(ctx context.Context, page []Order, state ratelimit.State) error {
	width := pagination.Width(state, s.config.MaxConcurrency)

	hydrated, err := pagination.Map(ctx, s.runner, page, width, Order.Key, s.hydrateOrder)
	if err != nil {
		return fmt.Errorf("hydrate orders: %w", err)
	}

	for i := range page {
		page[i].Products = hydrated[i].Products
		page[i].ShippingAddresses = hydrated[i].ShippingAddresses
	}
	return nil
}

// hydrateOrder reads both sub-resources of one order. Both are attempted even
// if the first fails.
func (s *Service) hydrateOrder(ctx context.Context, o Order) (Order, error) {
	products, productsErr := s.orderProducts(ctx, o)
	if productsErr != nil {
		productsErr = fmt.Errorf("products: %w", productsErr)
	}

	addresses, addressesErr := s.orderShippingAddresses(ctx, o)
	if addressesErr != nil {
		addressesErr = fmt.Errorf("shipping addresses: %w", addressesErr)
	}

	if err := errors.Join(productsErr, addressesErr); err != nil {
		return Order{}, err
	}

	o.Products = products
	o.ShippingAddresses = addresses
	return o, nil
}

// orderProducts walks all line item pages of one order.
func (s *Service) orderProducts(ctx context.Context, o Order) ([]OrderProduct, error) {
	products, err := pagination.FetchAll(ctx, s.engine, "order_products", pageFunc[OrderProduct](s, orderProductsEndpoint(o)))
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []OrderProduct{}
	}
	return products, nil
}

// orderShippingAddresses reads the shipping addresses of one order.
func (s *Service) orderShippingAddresses(ctx context.Context, o Order) ([]ShippingAddress, error) {
	addresses, ok, err := getOne[[]ShippingAddress](ctx, s, orderShippingAddressesEndpoint(o))
	if err != nil {
		return nil, err
	}
	if !ok || addresses == nil {
		addresses = []ShippingAddress{}
	}
	return addresses, nil
}
