// Package docs registers the OpenAPI document served at /api/docs.
// Regenerate with: swag init -g cmd/api/main.go -o docs
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
		"/": {
			"get": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"health"
				],
				"summary": "API index",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/http.IndexResponse"
						}
					}
				}
			}
		},
		"/health": {
			"get": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"health"
				],
				"summary": "Health check",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/http.HealthResponse"
						}
					}
				}
			}
		},
		"/auth/register": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Register a new user",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.RegisterRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/auth.RegisterResponse"
						}
					},
					"400": {
						"description": "Validation error",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"409": {
						"description": "Email already exists",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"429": {
						"description": "Too many requests",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/verify-email": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Verify email address",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.VerifyEmailRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/auth.AuthResponse"
						}
					},
					"400": {
						"description": "Invalid or expired token",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/login": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "User login",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.LoginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/auth.AuthResponse"
						}
					},
					"401": {
						"description": "Invalid credentials",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"403": {
						"description": "Email not verified",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"429": {
						"description": "Too many requests",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/me": {
			"get": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Current user",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/user.Public"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/refresh": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Refresh access token",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/auth.RefreshRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/auth.AuthResponse"
						}
					},
					"400": {
						"description": "Refresh token missing",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"401": {
						"description": "Invalid or expired refresh token",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/logout": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "User logout",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/auth.RefreshRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.MessageResponse"
						}
					}
				}
			}
		},
		"/auth/forgot-password": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Request password reset",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.EmailRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.MessageResponse"
						}
					},
					"429": {
						"description": "Too many requests",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/reset-password": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Reset password",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.ResetPasswordRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.MessageResponse"
						}
					},
					"400": {
						"description": "Invalid request or token",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/resend-verification": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Resend verification email",
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.EmailRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.MessageResponse"
						}
					},
					"429": {
						"description": "Too many requests",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/events": {
			"get": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "List events",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Inclusive lower datetime bound (RFC 3339)",
						"name": "from",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Exclusive upper datetime bound (RFC 3339)",
						"name": "to",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/event.Event"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			},
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "Create an event",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/event.CreateEventRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/event.Event"
						}
					},
					"400": {
						"description": "Validation error",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		},
		"/events/{id}": {
			"get": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "Get an event",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Event ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/event.Event"
						}
					},
					"403": {
						"description": "Not the owner",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"404": {
						"description": "Not found",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			},
			"patch": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "Update an event",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Event ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/event.UpdateEventRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/event.Event"
						}
					},
					"400": {
						"description": "Validation error",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"403": {
						"description": "Not the owner",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"404": {
						"description": "Not found",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			},
			"delete": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "Delete an event",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Event ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.MessageResponse"
						}
					},
					"403": {
						"description": "Not the owner",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"404": {
						"description": "Not found",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"auth.AuthResponse": {
			"type": "object",
			"properties": {
				"user": {
					"$ref": "#/definitions/user.Public"
				},
				"accessToken": {
					"type": "string"
				},
				"refreshToken": {
					"type": "string"
				},
				"tokenType": {
					"type": "string"
				},
				"expiresIn": {
					"type": "integer"
				}
			}
		},
		"auth.EmailRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				}
			},
			"required": [
				"email"
			]
		},
		"auth.LoginRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"auth.RefreshRequest": {
			"type": "object",
			"properties": {
				"refreshToken": {
					"type": "string"
				}
			}
		},
		"auth.RegisterRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string",
					"minLength": 8,
					"maxLength": 72
				},
				"name": {
					"type": "string",
					"maxLength": 100
				}
			},
			"required": [
				"email",
				"name",
				"password"
			]
		},
		"auth.RegisterResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				},
				"user": {
					"$ref": "#/definitions/user.Public"
				}
			}
		},
		"auth.ResetPasswordRequest": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				},
				"newPassword": {
					"type": "string",
					"minLength": 8,
					"maxLength": 72
				}
			},
			"required": [
				"newPassword",
				"token"
			]
		},
		"auth.VerifyEmailRequest": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				}
			},
			"required": [
				"token"
			]
		},
		"event.CreateEventRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string",
					"maxLength": 255
				},
				"members": {
					"type": "string",
					"maxLength": 1000
				},
				"messages": {
					"type": "string",
					"maxLength": 5000
				},
				"datetime": {
					"type": "string",
					"example": "2025-03-01T10:00:00Z"
				}
			},
			"required": [
				"datetime",
				"members",
				"title"
			]
		},
		"event.UpdateEventRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"members": {
					"type": "string"
				},
				"messages": {
					"type": "string"
				},
				"datetime": {
					"type": "string"
				}
			}
		},
		"event.Event": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"members": {
					"type": "string"
				},
				"messages": {
					"type": "string"
				},
				"datetime": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				}
			}
		},
		"http.HealthResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"timestamp": {
					"type": "string"
				}
			}
		},
		"http.IndexResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				},
				"environment": {
					"type": "string"
				}
			}
		},
		"httputil.FieldError": {
			"type": "object",
			"properties": {
				"field": {
					"type": "string"
				},
				"message": {
					"type": "string"
				},
				"constraint": {
					"type": "string"
				}
			}
		},
		"httputil.ErrorResponse": {
			"type": "object",
			"properties": {
				"statusCode": {
					"type": "integer"
				},
				"message": {
					"type": "string"
				},
				"error": {
					"type": "string"
				},
				"code": {
					"type": "string"
				},
				"errors": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httputil.FieldError"
					}
				},
				"timestamp": {
					"type": "string"
				},
				"path": {
					"type": "string"
				},
				"correlationId": {
					"type": "string"
				}
			}
		},
		"httputil.MessageResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				}
			}
		},
		"user.Public": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"name": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and the access token.",
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
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Events API",
	Description:      "Authentication with email verification and per-user event management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
