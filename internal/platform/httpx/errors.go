package httpx

import (
	"errors"
	"net/http"

	"github.com/caskwell/caskwell/internal/shared"
)

// RespondError maps an error to an RFC7807 response. Domain handlers map
// their own sentinels first and fall back here for storage and transport
// failures.
func RespondError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
