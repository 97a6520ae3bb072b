package grpcsvc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

var (
	invalidArgumentErrors = []error{
		domain.ErrProductSelectionEmpty,
		domain.ErrLoginRequired,
		domain.ErrTitleRequired,
		domain.ErrPriceInvalid,
		domain.ErrQuantityNegative,
		domain.ErrInvalidPageSize,
		domain.ErrFeedbackRateInvalid,
		domain.ErrTextRequired,
		domain.ErrAttachmentNameRequired,
		domain.ErrAttachmentEmpty,
		domain.ErrAttachmentTooLarge,
	}
	failedPreconditionErrors = []error{
		domain.ErrOutOfStock,
		domain.ErrProductNotInCart,
		domain.ErrOrderNotPlaced,
		domain.ErrGoodReserved,
	}
)

// toStatus переводит доменную ошибку в gRPC-статус с кодом по её семейству.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case domain.IsNotFound(err), errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case isAny(err, failedPreconditionErrors):
		return status.Error(codes.FailedPrecondition, err.Error())
	case isAny(err, invalidArgumentErrors):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
