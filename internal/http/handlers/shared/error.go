package shared

import (
	"errors"

	"github.com/orchard-next/internal/http/response"
	"github.com/orchard-next/internal/logger"
	"github.com/orchard-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// serviceErrorCodes 业务错误到响应码的映射
var serviceErrorCodes = map[error]int{
	service.ErrFruitTypeNotFound:       response.CodeNotFound,
	service.ErrFruitTypeSlugTaken:      response.CodeConflict,
	service.ErrFruitTypeNotOrderable:   response.CodeBadRequest,
	service.ErrQuantityOutOfRange:      response.CodeBadRequest,
	service.ErrHarvestTooClose:         response.CodeBadRequest,
	service.ErrIntentNotFound:          response.CodeNotFound,
	service.ErrIntentExpired:           response.CodeBadRequest,
	service.ErrAmountMismatch:          response.CodeBadRequest,
	service.ErrPreOrderNotFound:        response.CodeNotFound,
	service.ErrPreOrderAccessDenied:    response.CodeForbidden,
	service.ErrInvalidStatusTransition: response.CodeBadRequest,
	service.ErrCancelNotAllowed:        response.CodeForbidden,
	service.ErrRemainingNotDue:         response.CodeBadRequest,
	service.ErrRemainingAlreadyPaid:    response.CodeBadRequest,
	service.ErrBatchNotFound:           response.CodeNotFound,
	service.ErrBatchFruitTypeMismatch:  response.CodeBadRequest,
	service.ErrReceiveExceedsBatch:     response.CodeBadRequest,
	service.ErrReceiveExceedsDemand:    response.CodeBadRequest,
	service.ErrReceiveInvalidQuantity:  response.CodeBadRequest,
	service.ErrReceiveNotConfirmed:     response.CodeBadRequest,
	service.ErrAllocationBusy:          response.CodeConflict,
	service.ErrNothingToAllocate:       response.CodeBadRequest,
	service.ErrNoStockAvailable:        response.CodeBadRequest,
	service.ErrInvalidEmail:            response.CodeBadRequest,
	service.ErrEmailTaken:              response.CodeConflict,
	service.ErrInvalidCredentials:      response.CodeUnauthorized,
	service.ErrUserNotFound:            response.CodeNotFound,
	service.ErrUserDisabled:            response.CodeForbidden,
	service.ErrAdminNotFound:           response.CodeUnauthorized,
}

// RespondServiceError 将业务层错误翻译成统一响应。
// 未登记的错误按内部错误处理并记录原始信息。
func RespondServiceError(c *gin.Context, err error) {
	for sentinel, code := range serviceErrorCodes {
		if errors.Is(err, sentinel) {
			response.Error(c, code, sentinel.Error())
			return
		}
	}
	RequestLog(c).Errorw("handler_unexpected_error", "error", err)
	response.Error(c, response.CodeInternal, "internal error")
}
