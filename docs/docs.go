// Package docs registers the OpenAPI document served at /swagger/*.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/webhooks/authorize": {
            "post": {
                "description": "Business declines and internal failures are both returned with HTTP 200 and a declineReason.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authorizations"],
                "summary": "Authorize a card transaction",
                "parameters": [
                    {"type": "string", "description": "HMAC signature of the raw body", "name": "X-Webhook-Signature", "in": "header", "required": true},
                    {"type": "string", "description": "Processor transaction reference", "name": "X-Idempotency-Key", "in": "header"},
                    {"description": "Authorization data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.AuthorizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthorizeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/cards/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["cards"],
                "summary": "Get card controls and counters",
                "parameters": [
                    {"type": "string", "description": "Card ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/cards/{id}/transactions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["cards"],
                "summary": "List a card's latest ledger rows",
                "parameters": [
                    {"type": "string", "description": "Card ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Page size (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tokens"],
                "summary": "Describe the calling operator token",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/tokens/revoke": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tokens"],
                "summary": "Revoke the calling operator token",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handler.AuthorizeRequest": {
            "type": "object",
            "required": ["cardId", "amount", "currency", "merchantName", "merchantCountry", "mcc"],
            "properties": {
                "cardId": {"type": "string"},
                "amount": {"type": "number"},
                "currency": {"type": "string"},
                "merchantName": {"type": "string"},
                "merchantCity": {"type": "string"},
                "merchantCountry": {"type": "string"},
                "mcc": {"type": "string"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "transactionReference": {"type": "string"}
            }
        },
        "handler.AuthorizeResponse": {
            "type": "object",
            "properties": {
                "approved": {"type": "boolean"},
                "transactionId": {"type": "string"},
                "cashbackAmount": {"type": "number"},
                "declineReason": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Card Authorization API",
	Description:      "Real-time card authorization webhook and read-only card operations API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
