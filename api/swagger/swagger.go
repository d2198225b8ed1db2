package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Attendance Lock API",
        "description": "Class session status and attendance unlock requests",
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
        {"name": "Sessions", "description": "Effective session status"},
        {"name": "Unlock Requests", "description": "Teacher unlock requests and admin decisions"},
        {"name": "Dashboard", "description": "Teacher day view"},
        {"name": "Ops", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "All dependencies reachable"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/sessions/{id}/status": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Effective status of a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "at", "in": "query", "required": false, "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EffectiveStatusView"}},
                    "400": {"description": "Invalid instant", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/{id}/edit-check": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Whether the caller may mark or edit attendance now",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EditCheck"}},
                    "403": {"description": "Not the session owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/{id}/unlock-requests": {
            "get": {
                "tags": ["Unlock Requests"],
                "summary": "Unlock request history of a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/UnlockRequest"}}},
                    "403": {"description": "Not the session owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/unlock-requests": {
            "post": {
                "tags": ["Unlock Requests"],
                "summary": "Request an unlock for a completed session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUnlockRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/UnlockRequest"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A request is already pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Session is not completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/unlock-requests/mine": {
            "get": {
                "tags": ["Unlock Requests"],
                "summary": "Unlock requests filed by the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "required": false, "type": "string"},
                    {"name": "limit", "in": "query", "required": false, "type": "integer"},
                    {"name": "offset", "in": "query", "required": false, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/UnlockRequest"}}}
                }
            }
        },
        "/api/v1/admin/unlock-requests": {
            "get": {
                "tags": ["Unlock Requests"],
                "summary": "Admin unlock request queue",
                "description": "Defaults to pending requests. Use status=ALL for every request.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "required": false, "type": "string"},
                    {"name": "limit", "in": "query", "required": false, "type": "integer"},
                    {"name": "offset", "in": "query", "required": false, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/UnlockRequest"}}}
                }
            }
        },
        "/api/v1/admin/unlock-requests/export": {
            "get": {
                "tags": ["Unlock Requests"],
                "summary": "Export the unlock request ledger",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "required": false, "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "status", "in": "query", "required": false, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File attachment"},
                    "400": {"description": "Unknown format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/unlock-requests/{id}/decision": {
            "post": {
                "tags": ["Unlock Requests"],
                "summary": "Approve or reject a pending unlock request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveUnlockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UnlockRequest"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Request not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/teacher/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Teacher sessions for a day",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "required": false, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TeacherDashboard"}}
                }
            }
        }
    },
    "definitions": {
        "CreateUnlockRequest": {
            "type": "object",
            "required": ["sessionId", "reason"],
            "properties": {
                "sessionId": {"type": "string"},
                "reason": {"type": "string", "maxLength": 500},
                "requestType": {"type": "string", "enum": ["LATE_MARKING", "ATTENDANCE_CORRECTION", "OTHER"]}
            }
        },
        "ResolveUnlockRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "remarks": {"type": "string", "maxLength": 1000}
            }
        },
        "UnlockRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "seq": {"type": "integer"},
                "sessionId": {"type": "string"},
                "requestedBy": {"type": "string"},
                "reason": {"type": "string"},
                "requestType": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                "requestedAt": {"type": "string", "format": "date-time"},
                "resolvedBy": {"type": "string"},
                "resolvedAt": {"type": "string", "format": "date-time"},
                "remarks": {"type": "string"}
            }
        },
        "EffectiveStatusView": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "status": {"type": "string", "enum": ["UPCOMING", "ONGOING", "COMPLETED", "PENDING", "UNLOCKED"]},
                "baseStatus": {"type": "string", "enum": ["UPCOMING", "ONGOING", "COMPLETED"]},
                "annotation": {"type": "string"},
                "latestRequest": {"$ref": "#/definitions/UnlockRequest"},
                "canMark": {"type": "boolean"},
                "canEdit": {"type": "boolean"},
                "canRequestUnlock": {"type": "boolean"},
                "evaluatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "EditCheck": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "status": {"type": "string"},
                "canMark": {"type": "boolean"},
                "canEdit": {"type": "boolean"}
            }
        },
        "TeacherDashboard": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "totalSessions": {"type": "integer"},
                "completedSessions": {"type": "integer"},
                "pendingUnlockRequests": {"type": "integer"},
                "sessions": {"type": "array", "items": {"type": "object"}},
                "generatedAt": {"type": "string", "format": "date-time"}
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
