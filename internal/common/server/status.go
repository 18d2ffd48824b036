package server

import (
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusFromError 把业务错误分类映射为 gRPC status。
// 业务 proto 接入后，各 handler 统一走这里，不再各自拼 codes。
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case apperr.KindConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	case apperr.KindUnauthorized:
		return status.Error(codes.PermissionDenied, err.Error())
	case apperr.KindInfrastructure:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
