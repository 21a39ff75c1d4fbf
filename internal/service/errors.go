package service

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrUnsupportedGateway  = errors.New("unsupported payment gateway")
	IllegalTransitionError = errors.New("illegal transition of order status")
)
