// Package docs registers the OpenAPI description of the HTTP API with swag.
//
// @title       tms-server auth API
// @version     1.0
// @description Admin sessions, the admin action relay and portal login.
// @BasePath    /
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
        "/api/admin/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Admin login",
                "parameters": [
                    {
                        "description": "Admin password and remember flag",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/admin.loginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Session cookie set", "schema": {"$ref": "#/definitions/ok"}},
                    "400": {"description": "Password required", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Invalid password", "schema": {"$ref": "#/definitions/error"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/admin/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Report whether the caller holds an admin session",
                "responses": {
                    "200": {"description": "Session state", "schema": {"$ref": "#/definitions/ok"}}
                }
            }
        },
        "/api/admin/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Clear the admin session cookie",
                "responses": {
                    "200": {"description": "Cookie cleared", "schema": {"$ref": "#/definitions/ok"}}
                }
            }
        },
        "/api/admin/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Attempt store, audit bus and request counters",
                "responses": {
                    "200": {"description": "Counters"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/unauthorized"}}
                }
            }
        },
        "/api/admin/{action}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["text/plain"],
                "tags": ["admin"],
                "summary": "Relay a signed admin action to the automation webhook",
                "parameters": [
                    {
                        "enum": ["remove", "add-user", "reset-password", "unblock", "block"],
                        "type": "string",
                        "name": "action",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "approved"},
                    "400": {"description": "Missing fields", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/unauthorized"}},
                    "500": {"description": "server error", "schema": {"$ref": "#/definitions/error"}},
                    "502": {"description": "Upstream rejected the action"}
                }
            }
        },
        "/check-email": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["portal"],
                "summary": "Report whether a portal account exists and has a password",
                "parameters": [
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/portal.emailRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Account status"},
                    "400": {"description": "Email required", "schema": {"$ref": "#/definitions/error"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["portal"],
                "summary": "Portal login",
                "parameters": [
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/portal.credentialsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Identity", "schema": {"$ref": "#/definitions/portal.identity"}},
                    "400": {"description": "Email and password required", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/error"}},
                    "403": {"description": "Access denied", "schema": {"$ref": "#/definitions/error"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/set-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["portal"],
                "summary": "Set a portal password",
                "parameters": [
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/portal.credentialsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Password stored"},
                    "400": {"description": "Missing fields or weak password", "schema": {"$ref": "#/definitions/error"}},
                    "403": {"description": "Access denied", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Email not found", "schema": {"$ref": "#/definitions/error"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/error"}},
                    "500": {"description": "Failed to update password", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        }
    },
    "definitions": {
        "error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "ok": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"}
            }
        },
        "unauthorized": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "admin.loginRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"},
                "remember": {"type": "boolean"}
            }
        },
        "portal.emailRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"}
            }
        },
        "portal.credentialsRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "portal.identity": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "key": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tms-server auth API",
	Description:      "Admin sessions, the admin action relay and portal login.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
