package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

// statusFor maps pipeline error codes onto HTTP statuses.
var statusFor = map[vop2.ErrorCode]int{
	vop2.ErrOutOfRange:       http.StatusBadRequest,
	vop2.ErrUnsupportedMode:  http.StatusBadRequest,
	vop2.ErrValueTooWide:     http.StatusBadRequest,
	vop2.ErrInvalidGeometry:  http.StatusBadRequest,
	vop2.ErrHardwareNotReady: http.StatusConflict,
	vop2.ErrCommitTimeout:    http.StatusGatewayTimeout,
}

// toHTTPError converts a pipeline error into a huma status error. The
// message carries the error code so clients can match on it.
func toHTTPError(msg string, err error) error {
	var ve *vop2.Error
	if !errors.As(err, &ve) {
		return huma.Error500InternalServerError(msg, err)
	}
	status, ok := statusFor[ve.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return huma.NewError(status, msg+": "+string(ve.Code), err)
}
