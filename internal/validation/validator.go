package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// prices are decimals, so the numeric tags cannot see them
	v.RegisterStructValidation(createVinylStructValidation, CreateVinylRequest{})
	v.RegisterStructValidation(updateVinylStructValidation, UpdateVinylRequest{})
	v.RegisterStructValidation(orderItemStructValidation, OrderItem{})

	return v
}

func createVinylStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateVinylRequest)
	if req.Price != nil && req.Price.IsNegative() {
		sl.ReportError(req.Price, "price", "Price", "price_not_negative", "")
	}
}

func updateVinylStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateVinylRequest)
	if req.Price != nil && req.Price.IsNegative() {
		sl.ReportError(req.Price, "price", "Price", "price_not_negative", "")
	}
}

func orderItemStructValidation(sl validatorv10.StructLevel) {
	it := sl.Current().Interface().(OrderItem)
	if it.Price != nil && it.Price.IsNegative() {
		sl.ReportError(it.Price, "price", "Price", "price_not_negative", "")
	}
}
