// Package docs holds the OpenAPI document served at /swagger. Regenerate with
// swag init -g cmd/api/main.go after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@straye.io"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/analytics/summary": {
            "get": {
                "tags": [
                    "Analytics"
                ],
                "summary": "Funnel analytics summary",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "Brand ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "Funnel ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Window preset",
                        "enum": [
                            "7d",
                            "30d",
                            "90d",
                            "all"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "description": "Window start (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "description": "Window end (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "includeInProgress",
                        "type": "boolean",
                        "description": "Count open visits in velocity"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/analytics.Summary"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "description": "Leakage, stage velocity, heatmap and bottlenecks computed from one snapshot of the stage ledger. Fails as a whole if any sub-query fails or the aggregation times out."
            }
        },
        "/analytics/leakage": {
            "get": {
                "tags": [
                    "Analytics"
                ],
                "summary": "Follow-up to broadcast leakage",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "Brand ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "Funnel ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Window preset",
                        "enum": [
                            "7d",
                            "30d",
                            "90d",
                            "all"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "description": "Window start (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "description": "Window end (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "includeInProgress",
                        "type": "boolean",
                        "description": "Count open visits in velocity"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/analytics.LeakageStats"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/analytics/velocity": {
            "get": {
                "tags": [
                    "Analytics"
                ],
                "summary": "Average hours per stage",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "Brand ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "Funnel ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Window preset",
                        "enum": [
                            "7d",
                            "30d",
                            "90d",
                            "all"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "description": "Window start (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "description": "Window end (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "includeInProgress",
                        "type": "boolean",
                        "description": "Count open visits in velocity"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/analytics.StageVelocity"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/analytics/bottlenecks": {
            "get": {
                "tags": [
                    "Analytics"
                ],
                "summary": "Slow stages by severity",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "Brand ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "Funnel ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Window preset",
                        "enum": [
                            "7d",
                            "30d",
                            "90d",
                            "all"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "description": "Window start (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "description": "Window end (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "includeInProgress",
                        "type": "boolean",
                        "description": "Count open visits in velocity"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/analytics.Bottleneck"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/analytics/heatmap": {
            "get": {
                "tags": [
                    "Analytics"
                ],
                "summary": "Weekday by hour activity heatmap",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "Brand ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "Funnel ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Window preset",
                        "enum": [
                            "7d",
                            "30d",
                            "90d",
                            "all"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "description": "Window start (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "description": "Window end (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "includeInProgress",
                        "type": "boolean",
                        "description": "Count open visits in velocity"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/analytics.Heatmap"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/analytics/reconciliation": {
            "get": {
                "tags": [
                    "Analytics"
                ],
                "summary": "Compare engine figures with the stored database functions",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "Brand ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "Funnel ID",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Window preset",
                        "enum": [
                            "7d",
                            "30d",
                            "90d",
                            "all"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "description": "Window start (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "description": "Window end (RFC 3339 or YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "includeInProgress",
                        "type": "boolean",
                        "description": "Count open visits in velocity"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/analytics.ReconciliationReport"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/brands": {
            "get": {
                "tags": [
                    "Brands"
                ],
                "summary": "List brands",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "includeInactive",
                        "type": "boolean",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/domain.BrandDTO"
                            }
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Brands"
                ],
                "summary": "Create brand",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.CreateBrandRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/domain.BrandDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/brands/{id}": {
            "get": {
                "tags": [
                    "Brands"
                ],
                "summary": "Get brand",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.BrandDTO"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Brands"
                ],
                "summary": "Update brand",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.UpdateBrandRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.BrandDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            },
            "delete": {
                "tags": [
                    "Brands"
                ],
                "summary": "Deactivate brand",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/brands/{id}/funnels": {
            "get": {
                "tags": [
                    "Brands"
                ],
                "summary": "List funnels of a brand",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/domain.FunnelDTO"
                            }
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/funnels": {
            "post": {
                "tags": [
                    "Funnels"
                ],
                "summary": "Create funnel",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.CreateFunnelRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/domain.FunnelDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/funnels/{id}": {
            "get": {
                "tags": [
                    "Funnels"
                ],
                "summary": "Get funnel",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.FunnelDTO"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Funnels"
                ],
                "summary": "Update funnel",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.UpdateFunnelRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.FunnelDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/funnels/{id}/default": {
            "post": {
                "tags": [
                    "Funnels"
                ],
                "summary": "Make funnel the brand default",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.FunnelDTO"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/stages": {
            "get": {
                "tags": [
                    "Stages"
                ],
                "summary": "List stages",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "funnelType",
                        "type": "string",
                        "description": "",
                        "enum": [
                            "follow_up",
                            "broadcast"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/domain.StageDTO"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Stages"
                ],
                "summary": "Create stage",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.CreateStageRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/domain.StageDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/stages/{id}": {
            "get": {
                "tags": [
                    "Stages"
                ],
                "summary": "Get stage",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.StageDTO"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Stages"
                ],
                "summary": "Update stage",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.UpdateStageRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.StageDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/stages/{id}/script": {
            "put": {
                "tags": [
                    "Stages"
                ],
                "summary": "Set stage script",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.UpdateStageScriptRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.StageDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/stages/{id}/media": {
            "get": {
                "tags": [
                    "Stages"
                ],
                "summary": "Download stage media",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Stages"
                ],
                "summary": "Upload stage media",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    },
                    {
                        "in": "formData",
                        "name": "file",
                        "type": "file",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.StageDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "413": {
                        "description": "Payload Too Large",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/leads": {
            "get": {
                "tags": [
                    "Leads"
                ],
                "summary": "List leads",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "brandId",
                        "type": "string",
                        "description": "",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "funnelId",
                        "type": "string",
                        "description": "",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "stageId",
                        "type": "string",
                        "description": "",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "status",
                        "type": "string",
                        "description": "",
                        "enum": [
                            "active",
                            "deal",
                            "lost"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "search",
                        "type": "string",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "sortBy",
                        "type": "string",
                        "description": "",
                        "enum": [
                            "createdAt",
                            "updatedAt",
                            "name",
                            "status"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "sortOrder",
                        "type": "string",
                        "description": "",
                        "enum": [
                            "asc",
                            "desc"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "pageSize",
                        "type": "integer",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.PaginatedResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Leads"
                ],
                "summary": "Create lead",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.CreateLeadRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/domain.LeadDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/leads/{id}": {
            "get": {
                "tags": [
                    "Leads"
                ],
                "summary": "Get lead",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.LeadDTO"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/leads/{id}/stage": {
            "post": {
                "tags": [
                    "Leads"
                ],
                "summary": "Move lead to another stage",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.MoveLeadStageRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.LeadDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/leads/{id}/status": {
            "put": {
                "tags": [
                    "Leads"
                ],
                "summary": "Update lead status",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.UpdateLeadStatusRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.LeadDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/leads/{id}/history": {
            "get": {
                "tags": [
                    "Leads"
                ],
                "summary": "Lead stage history",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/domain.LeadStageHistoryDTO"
                            }
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        },
        "/leads/{id}/activities": {
            "get": {
                "tags": [
                    "Activities"
                ],
                "summary": "List lead activities",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "pageSize",
                        "type": "integer",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.PaginatedResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Activities"
                ],
                "summary": "Log an activity",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.CreateActivityRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/domain.LeadActivityDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/admin/users": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "List users",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/domain.ProfileDTO"
                            }
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Create user",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.CreateUserRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/domain.ProfileDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/admin/users/{id}": {
            "put": {
                "tags": [
                    "Admin"
                ],
                "summary": "Update user",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.UpdateUserRequest"
                        }
                    },
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.ProfileDTO"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            },
            "delete": {
                "tags": [
                    "Admin"
                ],
                "summary": "Delete user",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "format": "uuid",
                        "required": true,
                        "description": "ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                },
                "description": "Admins cannot delete their own account; that attempt is a policy violation (422), not an authorization failure."
            }
        },
        "/admin/audit": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "List audit logs",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "entityType",
                        "type": "string",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "entityId",
                        "type": "string",
                        "description": "",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "actorId",
                        "type": "string",
                        "description": "",
                        "format": "uuid"
                    },
                    {
                        "in": "query",
                        "name": "action",
                        "type": "string",
                        "description": "",
                        "enum": [
                            "create",
                            "update",
                            "delete"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "startDate",
                        "type": "string",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "endDate",
                        "type": "string",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer",
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "pageSize",
                        "type": "integer",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.PaginatedResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/domain.APIError"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "domain.APIError": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "detail": {
                    "type": "string"
                },
                "errors": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "domain.PaginatedResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "total": {
                    "type": "integer"
                },
                "page": {
                    "type": "integer"
                },
                "pageSize": {
                    "type": "integer"
                },
                "totalPages": {
                    "type": "integer"
                }
            }
        },
        "analytics.Window": {
            "type": "object",
            "properties": {
                "from": {
                    "type": "string"
                },
                "to": {
                    "type": "string"
                }
            }
        },
        "analytics.StatusBreakdown": {
            "type": "object",
            "properties": {
                "active": {
                    "type": "integer"
                },
                "deal": {
                    "type": "integer"
                },
                "lost": {
                    "type": "integer"
                }
            }
        },
        "analytics.LeakageStats": {
            "type": "object",
            "properties": {
                "total_leads": {
                    "type": "integer"
                },
                "leaked_to_broadcast": {
                    "type": "integer"
                },
                "leakage_percentage": {
                    "type": "number"
                },
                "retention_percentage": {
                    "type": "number"
                },
                "status_breakdown": {
                    "$ref": "#/definitions/analytics.StatusBreakdown"
                }
            }
        },
        "analytics.StageVelocity": {
            "type": "object",
            "properties": {
                "stage_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "stage_name": {
                    "type": "string"
                },
                "funnel_type": {
                    "type": "string"
                },
                "stage_number": {
                    "type": "integer"
                },
                "avg_hours": {
                    "type": "number"
                },
                "total_leads": {
                    "type": "integer"
                },
                "visits": {
                    "type": "integer"
                },
                "in_progress": {
                    "type": "integer"
                }
            }
        },
        "analytics.Bottleneck": {
            "type": "object",
            "properties": {
                "stage_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "stage_name": {
                    "type": "string"
                },
                "funnel_type": {
                    "type": "string"
                },
                "avg_hours": {
                    "type": "number"
                },
                "total_leads": {
                    "type": "integer"
                },
                "severity": {
                    "type": "string",
                    "enum": [
                        "high",
                        "medium",
                        "low"
                    ]
                },
                "message": {
                    "type": "string"
                },
                "stage_number": {
                    "type": "integer"
                }
            }
        },
        "analytics.HeatmapCell": {
            "type": "object",
            "properties": {
                "day": {
                    "type": "string"
                },
                "day_index": {
                    "type": "integer"
                },
                "hour": {
                    "type": "integer"
                },
                "count": {
                    "type": "integer"
                },
                "intensity": {
                    "type": "string",
                    "enum": [
                        "none",
                        "low",
                        "medium",
                        "high"
                    ]
                }
            }
        },
        "analytics.Heatmap": {
            "type": "object",
            "properties": {
                "cells": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/analytics.HeatmapCell"
                    }
                },
                "max": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                },
                "timezone": {
                    "type": "string"
                }
            }
        },
        "analytics.Summary": {
            "type": "object",
            "properties": {
                "brand_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "funnel_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "window": {
                    "$ref": "#/definitions/analytics.Window"
                },
                "generated_at": {
                    "type": "string"
                },
                "leakage": {
                    "$ref": "#/definitions/analytics.LeakageStats"
                },
                "velocity": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/analytics.StageVelocity"
                    }
                },
                "heatmap": {
                    "$ref": "#/definitions/analytics.Heatmap"
                },
                "bottlenecks": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/analytics.Bottleneck"
                    }
                }
            }
        },
        "analytics.Discrepancy": {
            "type": "object",
            "properties": {
                "metric": {
                    "type": "string"
                },
                "stage_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "engine": {
                    "type": "number"
                },
                "stored": {
                    "type": "number"
                },
                "delta": {
                    "type": "number"
                },
                "comments": {
                    "type": "string"
                }
            }
        },
        "analytics.ReconciliationReport": {
            "type": "object",
            "properties": {
                "window": {
                    "$ref": "#/definitions/analytics.Window"
                },
                "checked": {
                    "type": "integer"
                },
                "tolerance": {
                    "type": "number"
                },
                "discrepancies": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/analytics.Discrepancy"
                    }
                }
            }
        },
        "domain.BrandDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "name": {
                    "type": "string"
                },
                "color": {
                    "type": "string"
                },
                "logoUrl": {
                    "type": "string"
                },
                "isActive": {
                    "type": "boolean"
                },
                "ownerId": {
                    "type": "string",
                    "format": "uuid"
                },
                "createdAt": {
                    "type": "string"
                },
                "updatedAt": {
                    "type": "string"
                }
            }
        },
        "domain.CreateBrandRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "color": {
                    "type": "string"
                },
                "logoUrl": {
                    "type": "string"
                }
            }
        },
        "domain.UpdateBrandRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "color": {
                    "type": "string"
                },
                "logoUrl": {
                    "type": "string"
                },
                "isActive": {
                    "type": "boolean"
                }
            }
        },
        "domain.FunnelDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "brandId": {
                    "type": "string",
                    "format": "uuid"
                },
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "isActive": {
                    "type": "boolean"
                },
                "isDefault": {
                    "type": "boolean"
                },
                "totalLeadsCount": {
                    "type": "integer"
                },
                "createdAt": {
                    "type": "string"
                },
                "updatedAt": {
                    "type": "string"
                }
            }
        },
        "domain.CreateFunnelRequest": {
            "type": "object",
            "properties": {
                "brandId": {
                    "type": "string",
                    "format": "uuid"
                },
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "isDefault": {
                    "type": "boolean"
                }
            }
        },
        "domain.UpdateFunnelRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "isActive": {
                    "type": "boolean"
                }
            }
        },
        "domain.StageDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "funnelType": {
                    "type": "string"
                },
                "stageNumber": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "script": {
                    "$ref": "#/definitions/domain.StageScriptDTO"
                }
            }
        },
        "domain.CreateStageRequest": {
            "type": "object",
            "properties": {
                "funnelType": {
                    "type": "string"
                },
                "stageNumber": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                }
            }
        },
        "domain.UpdateStageRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                }
            }
        },
        "domain.UpdateStageScriptRequest": {
            "type": "object",
            "properties": {
                "content": {
                    "type": "string"
                }
            }
        },
        "domain.LeadDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "brandId": {
                    "type": "string",
                    "format": "uuid"
                },
                "funnelId": {
                    "type": "string",
                    "format": "uuid"
                },
                "phone": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "currentStageId": {
                    "type": "string",
                    "format": "uuid"
                },
                "currentStage": {
                    "type": "string"
                },
                "currentFunnel": {
                    "type": "string"
                },
                "status": {
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
        "domain.CreateLeadRequest": {
            "type": "object",
            "properties": {
                "brandId": {
                    "type": "string",
                    "format": "uuid"
                },
                "funnelId": {
                    "type": "string",
                    "format": "uuid"
                },
                "phone": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "funnelType": {
                    "type": "string"
                }
            }
        },
        "domain.MoveLeadStageRequest": {
            "type": "object",
            "properties": {
                "stageId": {
                    "type": "string",
                    "format": "uuid"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "domain.UpdateLeadStatusRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "active",
                        "deal",
                        "lost"
                    ]
                }
            }
        },
        "domain.LeadStageHistoryDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "leadId": {
                    "type": "string",
                    "format": "uuid"
                },
                "fromStageId": {
                    "type": "string",
                    "format": "uuid"
                },
                "toStageId": {
                    "type": "string",
                    "format": "uuid"
                },
                "fromFunnel": {
                    "type": "string"
                },
                "toFunnel": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "movedBy": {
                    "type": "string",
                    "format": "uuid"
                },
                "movedAt": {
                    "type": "string"
                }
            }
        },
        "domain.LeadActivityDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "leadId": {
                    "type": "string",
                    "format": "uuid"
                },
                "type": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "createdBy": {
                    "type": "string",
                    "format": "uuid"
                },
                "occurredAt": {
                    "type": "string"
                },
                "createdAt": {
                    "type": "string"
                }
            }
        },
        "domain.CreateActivityRequest": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": [
                        "call",
                        "email",
                        "whatsapp",
                        "meeting",
                        "note"
                    ]
                },
                "title": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "occurredAt": {
                    "type": "string"
                }
            }
        },
        "domain.ProfileDTO": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "email": {
                    "type": "string"
                },
                "fullName": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                },
                "isActive": {
                    "type": "boolean"
                },
                "createdAt": {
                    "type": "string"
                },
                "updatedAt": {
                    "type": "string"
                }
            }
        },
        "domain.CreateUserRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "fullName": {
                    "type": "string"
                },
                "role": {
                    "type": "string",
                    "enum": [
                        "admin",
                        "manager",
                        "sales",
                        "viewer"
                    ]
                }
            }
        },
        "domain.UpdateUserRequest": {
            "type": "object",
            "properties": {
                "fullName": {
                    "type": "string"
                },
                "role": {
                    "type": "string",
                    "enum": [
                        "admin",
                        "manager",
                        "sales",
                        "viewer"
                    ]
                },
                "isActive": {
                    "type": "boolean"
                }
            }
        },
        "domain.StageScriptDTO": {
            "type": "object",
            "properties": {
                "content": {
                    "type": "string"
                },
                "mediaPath": {
                    "type": "string"
                },
                "mediaType": {
                    "type": "string"
                },
                "updatedAt": {
                    "type": "string"
                }
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "API Key for system integrations. Not accepted on admin routes.",
            "type": "apiKey",
            "name": "x-api-key",
            "in": "header"
        },
        "BearerAuth": {
            "description": "JWT Bearer token",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Straye Funnel API",
	Description:      "Lead funnel analytics: leakage, stage velocity, bottlenecks and activity heatmaps, plus the lead, stage and user administration behind them",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
