// Package denied формирует ответы на отказ в доступе к контенту.
package denied

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/access"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/content"
)

// From достаёт *content.DeniedError из цепочки ошибок.
func From(err error) (*content.DeniedError, bool) {
	var d *content.DeniedError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Status 401 для анонима, 403 когда плана недостаточно.
func Status(d *content.DeniedError) int {
	if d.Decision == access.LoginRequired {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// Render пишет ответ с причиной отказа и планом, который откроет ресурс.
// preview попадает в data, если не nil.
func Render(w http.ResponseWriter, r *http.Request, d *content.DeniedError, status int, preview any) {
	data := map[string]any{
		"reason": d.Decision.String(),
	}
	if d.Required != nil {
		data["upsell"] = map[string]any{
			"required_plan": d.Required,
		}
	}
	if preview != nil {
		data["preview"] = preview
	}

	msg := "subscription upgrade required"
	if d.Decision == access.LoginRequired {
		msg = "login required"
	}
	render.Status(r, status)
	render.JSON(w, r, response.ErrorWithData(msg, data))
}
