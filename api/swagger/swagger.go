package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StudyHelper API",
        "description": "Study material request and fulfilment workflow",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Actor sign-in and session"},
        {"name": "Requests", "description": "Material request lifecycle"},
        {"name": "Uploads", "description": "Attachment staging and commit"},
        {"name": "Booking", "description": "External scheduling link"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign in",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign out",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current actor",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List visible requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "in-progress", "completed", "all"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a material request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/stats": {
            "get": {
                "tags": ["Requests"],
                "summary": "Aggregate visible requests by status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/export": {
            "get": {
                "tags": ["Requests"],
                "summary": "Export all requests as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get one request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/requests/{id}/status": {
            "patch": {
                "tags": ["Requests"],
                "summary": "Move a request through its lifecycle",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/attachments/{index}/url": {
            "get": {
                "tags": ["Uploads"],
                "summary": "Issue a signed download token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "index", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/uploads/session": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Open a staging session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BeginSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Uploads"],
                "summary": "Discard the open staging session",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/uploads/files": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Stage files for upload",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "files", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/uploads/files/{index}": {
            "delete": {
                "tags": ["Uploads"],
                "summary": "Remove one staged file",
                "parameters": [
                    {"name": "index", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/uploads/commit": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Commit the staged files",
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "No files staged"}
                }
            }
        },
        "/uploads/progress": {
            "get": {
                "tags": ["Uploads"],
                "summary": "Inspect the open session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/downloads": {
            "get": {
                "tags": ["Uploads"],
                "summary": "Download attachment content via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/booking": {
            "get": {
                "tags": ["Booking"],
                "summary": "Get scheduling link with actor prefill",
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
        "CreateRequestRequest": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "topic": {"type": "string"},
                "materialKind": {"type": "string"},
                "difficulty": {"type": "string"},
                "dueDate": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["category", "topic", "materialKind", "difficulty", "dueDate"]
        },
        "UpdateStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["pending", "in-progress", "completed"]}
            },
            "required": ["status"]
        },
        "BeginSessionRequest": {
            "type": "object",
            "properties": {
                "requestId": {"type": "integer"}
            },
            "required": ["requestId"]
        },
        "Request": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "requesterId": {"type": "string"},
                "requesterName": {"type": "string"},
                "requesterEmail": {"type": "string"},
                "category": {"type": "string"},
                "topic": {"type": "string"},
                "materialKind": {"type": "string"},
                "difficulty": {"type": "string"},
                "dueDate": {"type": "string"},
                "notes": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "in-progress", "completed"]},
                "createdAt": {"type": "string"},
                "attachments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Attachment"}
                }
            }
        },
        "Attachment": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "size": {"type": "string"},
                "type": {"type": "string"},
                "contentRef": {"type": "string"}
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
