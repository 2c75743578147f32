package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToGRPCStatus는 에러를 gRPC status 에러로 변환합니다
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	// 이미 gRPC status 인 경우 그대로 반환
	if _, ok := status.FromError(err); ok {
		return err
	}

	var coded Error
	if As(err, &coded) {
		_, grpcCode := GetCodeMapping(coded.Code())
		return status.Error(codes.Code(grpcCode), coded.Error())
	}

	// 내부 메시지는 노출하지 않음
	return status.Error(codes.Internal, "internal server error")
}
