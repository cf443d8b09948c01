package validation

import "github.com/imrishuroy/go-vinyl-storefront/internal/catalog"

// LoginRequest is the payload for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the optional body of POST /api/auth/change-password.
// The token may also arrive as a query parameter, so neither field is tagged.
type ChangePasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// CreateUserRequest is the payload for POST /api/users
type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6,max=24"`
	Roles    []string `json:"roles"` // only ADMIN is honoured, anything else means USER
}

// UpdateUserRequest is the payload for PATCH /api/users/:id. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name          *string  `json:"name"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	Roles         []string `json:"roles"`
	Password      *string  `json:"password" validate:"omitempty,min=6,max=24"`
	EmailVerified *bool    `json:"emailVerified"`
}

// CreateVinylRequest is the payload for POST /api/vinyls
type CreateVinylRequest struct {
	Title     string         `json:"title" validate:"required"`
	Artist    string         `json:"artist" validate:"required"`
	Price     *catalog.Money `json:"price" validate:"required"` // >= 0, checked at struct level
	Stock     *int           `json:"stock" validate:"required,min=0"`
	CoverPath string         `json:"coverPath" validate:"required"`
	Gallery   []string       `json:"gallery" validate:"omitempty,dive,required"`
}

// UpdateVinylRequest is the payload for PATCH /api/vinyls/:id. Nil fields are left unchanged.
type UpdateVinylRequest struct {
	Title       *string        `json:"title"`
	Artist      *string        `json:"artist"`
	Price       *catalog.Money `json:"price"`
	Stock       *int           `json:"stock" validate:"omitempty,min=0"`
	CoverPath   *string        `json:"coverPath"`
	Gallery     []string       `json:"gallery" validate:"omitempty,dive,required"`
	IsPrincipal *bool          `json:"isPrincipal"`
}

// OrderItem is one line of an order payload.
type OrderItem struct {
	VinylID   string         `json:"vinylId" validate:"required"`
	Quantity  int            `json:"quantity"` // values below 1 become 1
	Title     string         `json:"title"`
	Artist    string         `json:"artist"`
	Price     *catalog.Money `json:"price"`
	CoverPath string         `json:"coverPath"`
}

// CreateOrderRequest is the payload for POST /api/orders
type CreateOrderRequest struct {
	UserID           string      `json:"userId"`
	Items            []OrderItem `json:"items" validate:"omitempty,dive"`
	Quantity         *int        `json:"qt" validate:"omitempty,min=0"`
	PaymentID        string      `json:"paymentId"`
	PaymentConfirmed *bool       `json:"isPaymentConfirmed"`
	Status           string      `json:"orderStatus" validate:"omitempty,oneof=PENDING CONFIRMED FAILED CANCELED"`
}

// UpdateOrderRequest is the payload for PATCH /api/orders/:id. Nil fields are left unchanged.
type UpdateOrderRequest struct {
	UserID           *string     `json:"userId"`
	Items            []OrderItem `json:"items" validate:"omitempty,dive"`
	Quantity         *int        `json:"qt"`
	PaymentID        *string     `json:"paymentId"`
	Status           *string     `json:"orderStatus" validate:"omitempty,oneof=PENDING CONFIRMED FAILED CANCELED"`
	PaymentConfirmed *bool       `json:"isPaymentConfirmed"`
}

// CheckoutRequest is the payload for POST /api/checkout
type CheckoutRequest struct {
	UserID    string `json:"userId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
}

// CartItemRequest is the body of POST /api/cart/:userId/item/:vinylId
type CartItemRequest struct {
	Quantity *int `json:"quantity"`
}

// SendMailRequest is the payload for POST /api/mail/send
type SendMailRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}
