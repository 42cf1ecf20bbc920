// Package docs holds the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/main.go
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
		"/showings": {
			"get": {
				"description": "List stored showings filtered by city, chain and date, ordered by date and time",
				"produces": [
					"application/json"
				],
				"tags": [
					"showings"
				],
				"summary": "List showings",
				"parameters": [
					{
						"type": "string",
						"description": "City slug",
						"name": "city",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Cinema chain",
						"name": "chain",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Date (YYYY-MM-DD)",
						"name": "date",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page number",
						"name": "page",
						"in": "query",
						"default": 1
					},
					{
						"type": "integer",
						"description": "Items per page",
						"name": "limit",
						"in": "query",
						"default": 20
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		},
		"/cinemas": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"cinemas"
				],
				"summary": "List cinemas",
				"parameters": [
					{
						"type": "string",
						"description": "City slug",
						"name": "city",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		},
		"/films": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"films"
				],
				"summary": "List films",
				"parameters": [
					{
						"type": "string",
						"description": "Title fragment",
						"name": "search",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page number",
						"name": "page",
						"in": "query",
						"default": 1
					},
					{
						"type": "integer",
						"description": "Items per page",
						"name": "limit",
						"in": "query",
						"default": 20
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		},
		"/prune": {
			"post": {
				"description": "Queue deletion of showings dated before today",
				"produces": [
					"application/json"
				],
				"tags": [
					"sweeps"
				],
				"summary": "Queue a prune",
				"responses": {
					"202": {
						"description": "Accepted",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		},
		"/snapshots/presign": {
			"get": {
				"description": "Generate a time limited download URL for a rendered listing snapshot",
				"produces": [
					"application/json"
				],
				"tags": [
					"snapshots"
				],
				"summary": "Get presigned URL for an archived page",
				"parameters": [
					{
						"type": "string",
						"description": "Object key, e.g. multikino/krakow/2024-05-01.html",
						"name": "key",
						"in": "query",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		},
		"/sweeps/last": {
			"get": {
				"description": "Get the most recent sweep, optionally for one chain",
				"produces": [
					"application/json"
				],
				"tags": [
					"sweeps"
				],
				"summary": "Last sweep",
				"parameters": [
					{
						"type": "string",
						"description": "Cinema chain",
						"name": "chain",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		},
		"/sweeps/{chain}": {
			"post": {
				"description": "Queue a full sweep of one chain across its configured cities",
				"produces": [
					"application/json"
				],
				"tags": [
					"sweeps"
				],
				"summary": "Queue a sweep",
				"parameters": [
					{
						"type": "string",
						"description": "Cinema chain",
						"name": "chain",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"202": {
						"description": "Accepted",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/utils.StandardResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"utils.StandardResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "integer"
				},
				"data": {},
				"message": {
					"type": "string"
				},
				"meta": {},
				"status": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8010",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Showtime Scraper API",
	Description:      "Query scraped cinema showtimes and trigger background sweeps",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
