// Package docs registers the wattscope OpenAPI document with swag. It is
// kept in the layout produced by `swag init -g internal/api/http.go`.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/api/v1/tariffs": {
            "get": {"tags": ["tariffs"], "summary": "List tariff tables", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.TariffDTO"}}}}}
        },
        "/api/v1/tariffs/{category}": {
            "get": {"tags": ["tariffs"], "summary": "Get a tariff table", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "category", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.TariffDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}}}
        },
        "/api/v1/appliances": {
            "get": {"tags": ["tariffs"], "summary": "List appliances", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/appliances.Appliance"}}}}}
        },
        "/api/v1/units": {
            "post": {"tags": ["calculator"], "summary": "Units consumed by one appliance run",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/billing.UsageInput"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}}}}
        },
        "/api/v1/calculate": {
            "post": {"tags": ["calculator"], "summary": "Estimate the bill for one appliance run",
                "description": "The category comes from the signed-in user, else from the body.",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/billing.UsageInput"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}}}}
        },
        "/api/v1/cumulative": {
            "post": {"tags": ["calculator"], "summary": "Price a total consumption",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}}}}
        },
        "/api/v1/auth/signup": {
            "post": {"tags": ["auth"], "summary": "Create an account",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/auth/login": {
            "post": {"tags": ["auth"], "summary": "Log in with email and password",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/v1/auth/logout": {
            "post": {"tags": ["auth"], "summary": "Revoke the current token", "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}}}
        },
        "/api/v1/me": {
            "get": {"tags": ["auth"], "summary": "Current user", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/bills": {
            "get": {"tags": ["bills"], "summary": "List saved usage, newest first", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["bills"], "summary": "Save an appliance run", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/billing.UsageInput"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/bills/{id}": {
            "delete": {"tags": ["bills"], "summary": "Delete a saved usage entry", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/bills/summary": {
            "get": {"tags": ["bills"], "summary": "Cumulative bill across saved usage", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/bills/export": {
            "get": {"tags": ["bills"], "summary": "Download the statement", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "format", "in": "query", "enum": ["xlsx", "pdf"]}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/settings/email": {
            "get": {"tags": ["settings"], "summary": "Email settings", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["settings"], "summary": "Update email settings", "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/settings/email/test": {
            "post": {"tags": ["settings"], "summary": "Send a test email with unsaved settings", "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}, "400": {"description": "Bad Request"}}}
        }
    },
    "definitions": {
        "api.errorResponse": {"type": "object", "properties": {"error": {"type": "string"}}},
        "api.TariffDTO": {"type": "object", "properties": {
            "category": {"type": "string"},
            "description": {"type": "string"},
            "slabs": {"type": "array", "items": {"$ref": "#/definitions/tariff.Slab"}}}},
        "tariff.Slab": {"type": "object", "properties": {
            "lower_kwh": {"type": "number"},
            "upper_kwh": {"type": "number", "x-nullable": true},
            "rate_per_unit": {"type": "number"},
            "fixed_charge": {"type": "number"},
            "label": {"type": "string"}}},
        "appliances.Appliance": {"type": "object", "properties": {
            "id": {"type": "string"},
            "name": {"type": "string"},
            "power_watts": {"type": "number"},
            "icon": {"type": "string"}}},
        "billing.UsageInput": {"type": "object", "properties": {
            "appliance_id": {"type": "string"},
            "power_watts": {"type": "number"},
            "hours": {"type": "integer"},
            "minutes": {"type": "integer"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "wattscope API",
	Description:      "Slab-based electricity bill estimation for LT-I and LT-II consumers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
