package reports

import (
	"context"
	"net/http"
	"time"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/middleware"
)

// RemoteTokenValidator validates bearer tokens against the auth service.
type RemoteTokenValidator struct {
	client  *httputil.ServiceClient
	timeout time.Duration
}

var _ middleware.TokenValidator = (*RemoteTokenValidator)(nil)

func NewRemoteTokenValidator(client *httputil.ServiceClient) *RemoteTokenValidator {
	return &RemoteTokenValidator{client: client, timeout: 5 * time.Second}
}

func (v *RemoteTokenValidator) Validate(token string) (middleware.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	headers := map[string]string{"Authorization": "Bearer " + token}
	resp, err := v.client.DoWithHeaders(ctx, http.MethodPost, "/auth/verify-token", nil, headers)
	if err != nil {
		return middleware.Identity{}, errors.ServiceUnavailable("auth service is unreachable")
	}
	defer resp.Body.Close()

	var result struct {
		Valid          bool   `json:"valid"`
		UserID         string `json:"user_id"`
		Matricule      string `json:"matricule"`
		Role           string `json:"role"`
		ClearanceLevel string `json:"clearance_level"`
	}
	if err := httputil.DecodeResponse(resp, &result); err != nil {
		return middleware.Identity{}, errors.InvalidToken(err)
	}
	if !result.Valid {
		return middleware.Identity{}, errors.Unauthorized("token is not valid")
	}
	return middleware.Identity{
		UserID:    result.UserID,
		Matricule: result.Matricule,
		Role:      result.Role,
		Clearance: result.ClearanceLevel,
	}, nil
}
