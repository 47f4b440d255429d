package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Admin API",
        "description": "Automatic timetable generation and version management",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "Timetable", "description": "Generation runs, versions and exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/timetable/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Run timetable generation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Graph has no eligible pairs; diagnostics returned"}
                }
            }
        },
        "/timetable/versions": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List stored timetable versions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/versions/{id}/slots": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get placed slots for a version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Version not found"}
                }
            }
        },
        "/timetable/versions/{id}/activate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Activate a timetable version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Version not found"}
                }
            }
        },
        "/timetable/versions/{id}": {
            "delete": {
                "tags": ["Timetable"],
                "summary": "Delete a stored timetable version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Version is active"}
                }
            }
        },
        "/timetable/versions/{id}/pdf": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export one class's weekly grid as PDF",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document"}
                }
            }
        },
        "/timetable/versions/{id}/csv": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export a version's slots as CSV",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV document"}
                }
            }
        },
        "/timetable/versions/{id}/export": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Queue a background export of a stored version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/exports/{jobId}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get the state of a queued export",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Job not found"}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download a finished export via its signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Export document"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/timetable/active": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get the active timetable version",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active version"}
                }
            }
        },
        "/timetable/config": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get the timetable generation configuration",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Replace the timetable generation configuration",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertTimetableConfigRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"}
            },
            "required": ["accessToken"]
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "seed": {"type": "integer"}
            },
            "required": ["name"]
        },
        "UpsertTimetableConfigRequest": {
            "type": "object",
            "properties": {
                "periodsPerDay": {"type": "integer"},
                "startTime": {"type": "string"},
                "periodMinutes": {"type": "integer"},
                "days": {
                    "type": "array",
                    "items": {"type": "string"}
                },
                "breaks": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BreakInput"}
                },
                "weeklyCounts": {"type": "object"}
            },
            "required": ["periodsPerDay", "startTime", "periodMinutes", "days"]
        },
        "ExportTimetableRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["pdf", "csv"]},
                "classId": {"type": "string"}
            },
            "required": ["format"]
        },
        "BreakInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"}
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
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
