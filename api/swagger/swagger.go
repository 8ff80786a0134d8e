package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Task Scheduler API",
        "description": "Places prioritized tasks on a single-resource timeline around reserved windows and busy intervals.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Scheduler", "description": "Schedule computation"},
        {"name": "Observability", "description": "Health and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "Prometheus exposition format"}
                }
            }
        },
        "/": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Schedule tasks (legacy contract)",
                "consumes": ["application/json", "application/x-yaml"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Schedule", "schema": {"$ref": "#/definitions/ScheduleResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Request cannot be modeled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Schedule tasks",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "application/x-yaml"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Schedule wrapped in the envelope, meta carries solver diagnostics", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Request cannot be modeled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/schedules/export": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Export a schedule as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "application/x-yaml"],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"], "default": "csv"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rendered document", "schema": {"type": "file"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Service counters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Counters", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScheduleEvent": {
            "type": "object",
            "required": ["id", "duration"],
            "properties": {
                "id": {"type": "string"},
                "duration": {"type": "integer", "minimum": 1},
                "impact": {"type": "number"},
                "dueDate": {"type": "integer"},
                "maxDueDate": {"type": "integer"},
                "tags": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ReservedTagWindow": {
            "type": "object",
            "required": ["start", "end", "tags"],
            "properties": {
                "id": {"type": "string"},
                "start": {"type": "integer"},
                "end": {"type": "integer"},
                "tags": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ReservedInterval": {
            "type": "object",
            "required": ["start", "end"],
            "properties": {
                "id": {"type": "string"},
                "start": {"type": "integer"},
                "end": {"type": "integer"},
                "isTransparent": {"type": "boolean"}
            }
        },
        "ScheduleRequest": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/ScheduleEvent"}},
                "reservedTags": {"type": "array", "items": {"$ref": "#/definitions/ReservedTagWindow"}},
                "reservedIntervals": {"type": "array", "items": {"$ref": "#/definitions/ReservedInterval"}},
                "start": {"type": "integer"},
                "mergeReservedTags": {"type": "boolean"}
            }
        },
        "Assignment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "start": {"type": "integer"},
                "isPresent": {"type": "boolean"},
                "isLate": {"type": "boolean"},
                "duration": {"type": "integer"},
                "priority": {"type": "integer"},
                "delay": {"type": "integer", "minimum": -100, "maximum": 100}
            }
        },
        "ScheduleResponse": {
            "type": "object",
            "properties": {
                "found": {"type": "boolean"},
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/Assignment"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
