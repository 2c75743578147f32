package errors

import (
	"go.uber.org/zap"
)

// LogError는 에러를 구조화된 로그로 기록합니다
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	// 기본 필드
	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err))

	// 코드가 있는 에러에서 추가 정보 추출
	var coded Error
	if As(err, &coded) {
		allFields = append(allFields, zap.String("error_code", coded.Code()))
	}

	// 추가 필드 병합
	allFields = append(allFields, fields...)

	// 클라이언트 측 에러는 Warn 레벨로 기록
	switch CodeOf(err) {
	case ErrNotFound, ErrInvalidArgument, ErrUnauthorized, ErrConflict, ErrInsufficientBalance:
		logger.Warn(msg, allFields...)
	default:
		logger.Error(msg, allFields...)
	}
}
