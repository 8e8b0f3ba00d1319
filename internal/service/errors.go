package service

import "errors"

// 服务层业务错误。处理器层统一映射为 HTTP 响应码。
var (
	ErrFruitTypeNotFound     = errors.New("fruit type not found")
	ErrFruitTypeSlugTaken    = errors.New("fruit type slug already exists")
	ErrFruitTypeNotOrderable = errors.New("fruit type is not open for pre-order")
	ErrQuantityOutOfRange    = errors.New("quantity is out of the allowed range")
	ErrHarvestTooClose       = errors.New("pre-order window is closed for this harvest")

	ErrIntentNotFound = errors.New("payment intent not found")
	ErrIntentExpired  = errors.New("payment intent expired")
	ErrAmountMismatch = errors.New("paid amount does not match intent amount")

	ErrPreOrderNotFound        = errors.New("pre-order not found")
	ErrPreOrderAccessDenied    = errors.New("pre-order does not belong to current user")
	ErrInvalidStatusTransition = errors.New("invalid pre-order status transition")
	ErrCancelNotAllowed        = errors.New("pre-order cancellation is not allowed")
	ErrRemainingNotDue         = errors.New("remaining payment is not due for this pre-order")
	ErrRemainingAlreadyPaid    = errors.New("remaining payment already settled")

	ErrBatchNotFound          = errors.New("harvest batch not found")
	ErrBatchFruitTypeMismatch = errors.New("harvest batch belongs to another fruit type")
	ErrReceiveExceedsBatch    = errors.New("receive quantity exceeds batch planned quantity")
	ErrReceiveExceedsDemand   = errors.New("receive quantity exceeds outstanding demand")
	ErrReceiveInvalidQuantity = errors.New("receive quantity must be positive")
	ErrReceiveNotConfirmed    = errors.New("receive requires explicit confirmation")

	ErrAllocationBusy    = errors.New("another stock operation is running for this fruit type")
	ErrNothingToAllocate = errors.New("no stock received for this fruit type")
	ErrNoStockAvailable  = errors.New("all received stock is already allocated")

	ErrEmailServiceDisabled      = errors.New("email service is disabled")
	ErrEmailServiceNotConfigured = errors.New("email service is not configured")
	ErrInvalidEmail              = errors.New("invalid email address")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected by server")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminNotFound      = errors.New("admin not found")
)
