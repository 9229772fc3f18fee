// Package docs registers the OpenAPI document served under /swagger.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed openapi.json
var doc string

type openAPI struct{}

func (openAPI) ReadDoc() string { return doc }

func init() {
	swag.Register(swag.Name, openAPI{})
}
