package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pdfnode/internal/api/models"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

// registerOptionsRoutes registers the converter options route.
func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-converter-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Get Converter Options",
		Description: "Get the converter flags accepted as /api/generate query parameters, and the defaults applied to every conversion",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		defaults := wkhtmltopdf.DefaultOptions()
		if s.converter != nil {
			defaults = s.converter.Defaults()
		}

		data := models.OptionsData{
			Options:  wkhtmltopdf.AllOptions,
			Defaults: make([]models.DefaultOption, 0, defaults.Len()),
		}
		for key, value := range defaults.All() {
			data.Defaults = append(data.Defaults, models.DefaultOption{
				Key:   key,
				Flag:  wkhtmltopdf.FlagName(key),
				Value: value,
			})
		}

		return &models.OptionsResponse{Body: data}, nil
	})
}
