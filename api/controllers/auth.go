package controllers

import (
	"net/http"

	"github.com/billforge/billforge-backend/api/responses"
	"github.com/billforge/billforge-backend/api/validators"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type adminView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tenantView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Paid     bool   `json:"paid"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	Admin       adminView  `json:"admin"`
	Tenant      tenantView `json:"tenant"`
}

// AuthLogin authenticates a tenant admin and issues an access token.
func AuthLogin(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), authsvc.LoginInput{
			Email:    payload.Email,
			Password: payload.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			AccessToken: result.AccessToken,
			Admin: adminView{
				ID:    result.Admin.ID.String(),
				Email: result.Admin.Email,
				Role:  string(result.Admin.Role),
			},
			Tenant: tenantView{
				ID:       result.Tenant.ID.String(),
				Name:     result.Tenant.Name,
				Timezone: result.Tenant.Timezone,
				Paid:     result.Tenant.Paid,
			},
		})
	}
}
