// Package docs registers the Swagger specification served at /swagger.
// Code generated by swag; regenerate with `swag init`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/deployments": {
            "post": {
                "tags": ["deployments"],
                "summary": "Deploy a project",
                "consumes": ["application/json"],
                "produces": ["application/json"]
            }
        },
        "/deployments/stream": {
            "post": {
                "tags": ["deployments"],
                "summary": "Deploy a project with live progress",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"]
            }
        },
        "/deployments/{id}": {
            "get": {
                "tags": ["deployments"],
                "summary": "Get one deployment",
                "produces": ["application/json"]
            }
        },
        "/deployments/{id}/logs": {
            "get": {
                "tags": ["deployments"],
                "summary": "Get the captured build log of a deployment",
                "produces": ["application/json"]
            }
        },
        "/deployments/{id}/rollback": {
            "post": {
                "tags": ["deployments"],
                "summary": "Roll the project back to a previous deployment",
                "produces": ["application/json"]
            }
        },
        "/projects": {
            "get": {
                "tags": ["projects"],
                "summary": "List the caller's projects",
                "produces": ["application/json"]
            }
        },
        "/projects/{id}": {
            "get": {
                "tags": ["projects"],
                "summary": "Get one project",
                "produces": ["application/json"]
            },
            "delete": {
                "tags": ["projects"],
                "summary": "Tear a project down",
                "produces": ["application/json"]
            }
        },
        "/projects/{id}/audit": {
            "get": {
                "tags": ["projects"],
                "summary": "Get the project's audit trail",
                "produces": ["application/json"]
            }
        },
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness check",
                "produces": ["application/json"]
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Nimbus Backend",
	Description:      "Nimbus Backend API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
