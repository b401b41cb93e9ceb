package bigcommerce

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/pagination"
	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
)

// GetProducts returns every catalog product with its SKUs. With
// includeExtendedInfo the store weight unit and the product brand are filled
// as well.
//
// The store settings are read once per product page and applied to every
// product of that page. The brand catalog is read once per call.
func (s *Service) GetProducts(ctx context.Context, includeExtendedInfo bool) ([]Product, error) {
	ctx, logger := s.begin(ctx, "get_products")
	start := time.Now()

	var (
		products []Product
		brands   map[int]Brand
	)

	err := pagination.Walk(ctx, s.engine, "products", pageFunc[Product](s, productsPath),
		func(ctx context.Context, page []Product, state ratelimit.State) error {
			if err := s.hydrateSkus(ctx, page, state); err != nil {
				return err
			}

			if includeExtendedInfo {
				store, err := s.getStore(ctx)
				if err != nil {
					return err
				}

				if brands == nil {
					if brands, err = s.getBrands(ctx); err != nil {
						return err
					}
				}

				for i := range page {
					page[i].WeightUnit = store.WeightUnits
					if b, ok := brands[page[i].BrandID]; ok {
						page[i].Brand = &b
					}
				}
			}

			products = append(products, page...)
			return nil
		})
	if err != nil {
		logger.Error().Err(err).Int("products_fetched", len(products)).Msg("Get products failed")
		return nil, fmt.Errorf("get products: %w", err)
	}

	logger.Info().
		Int("products", len(products)).
		Bool("extended", includeExtendedInfo).
		Dur("duration", time.Since(start)).
		Msg("Products fetched")

	return products, nil
}

// hydrateSkus attaches SKUs to the products of one page.
func (s *Service) hydrateSkus(ctx context.Context, page []Product, state ratelimit.State) error {
	width := pagination.Width(state, s.config.MaxConcurrency)

	skus, err := pagination.Map(ctx, s.runner, page, width, Product.Key, s.productSkus)
	if err != nil {
		return fmt.Errorf("hydrate product skus: %w", err)
	}

	for i := range page {
		page[i].Skus = skus[i]
	}
	return nil
}

// productSkus walks all SKU pages of one product.
func (s *Service) productSkus(ctx context.Context, p Product) ([]ProductSku, error) {
	skus, err := pagination.FetchAll(ctx, s.engine, "product_skus", pageFunc[ProductSku](s, productSkusEndpoint(p)))
	if err != nil {
		return nil, err
	}
	if skus == nil {
		skus = []ProductSku{}
	}
	return skus, nil
}

// getStore reads the store settings.
func (s *Service) getStore(ctx context.Context) (Store, error) {
	store, ok, err := getOne[Store](ctx, s, storePath)
	if err != nil {
		return Store{}, fmt.Errorf("get store: %w", err)
	}
	if !ok {
		return Store{}, fmt.Errorf("get store: empty response")
	}
	return store, nil
}

// getBrands reads the whole brand catalog keyed by brand id.
func (s *Service) getBrands(ctx context.Context) (map[int]Brand, error) {
	list, err := pagination.FetchAll(ctx, s.engine, "brands", pageFunc[Brand](s, brandsPath))
	if err != nil {
		return nil, fmt.Errorf("get brands: %w", err)
	}

	brands := make(map[int]Brand, len(list))
	for _, b := range list {
		brands[b.ID] = b
	}
	return brands, nil
}

// UpdateProducts sets the inventory level of every product.
// Updates run with the fixed write width regardless of the reported budget.
func (s *Service) UpdateProducts(ctx context.Context, products []Product) error {
	ctx, logger := s.begin(ctx, "update_products")

	err := pagination.ForEach(ctx, s.runner, products, s.config.WriteConcurrency, Product.Key,
		func(ctx context.Context, p Product) error {
			return s.put(ctx, productUpdateEndpoint(p.ID), inventoryUpdate{InventoryLevel: p.InventoryLevel})
		})
	if err != nil {
		logger.Error().Err(err).Int("products", len(products)).Msg("Update products failed")
		return fmt.Errorf("update products: %w", err)
	}

	logger.Info().Int("products", len(products)).Msg("Products updated")
	return nil
}

// UpdateProductOptions sets the inventory level of every product option.
func (s *Service) UpdateProductOptions(ctx context.Context, options []ProductOption) error {
	ctx, logger := s.begin(ctx, "update_product_options")

	err := pagination.ForEach(ctx, s.runner, options, s.config.WriteConcurrency, ProductOption.Key,
		func(ctx context.Context, o ProductOption) error {
			return s.put(ctx, productOptionUpdateEndpoint(o.ProductID, o.ID), inventoryUpdate{InventoryLevel: o.Quantity})
		})
	if err != nil {
		logger.Error().Err(err).Int("options", len(options)).Msg("Update product options failed")
		return fmt.Errorf("update product options: %w", err)
	}

	logger.Info().Int("options", len(options)).Msg("Product options updated")
	return nil
}
