package cloud

import (
	"errors"
	"strconv"

	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"
)

// ErrorCode extracts the service error code from an SDK error, or "" when the
// error did not come from a service response.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return strconv.Itoa(gErr.Code)
	}
	return ""
}
