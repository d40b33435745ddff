package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StuMart API",
        "description": "Campus marketplace with PIN-gated enrollment",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, refresh, logout"},
        {"name": "PINs", "description": "Enrollment PIN allocator"},
        {"name": "Students", "description": "Signup, verification and moderation"},
        {"name": "Products", "description": "Marketplace catalog and listings"},
        {"name": "Exports", "description": "Roster export jobs"}
    ],
    "paths": {
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
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/range": {
            "post": {
                "tags": ["PINs"],
                "summary": "Create a contiguous PIN range",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate sequence in scope"}
                }
            }
        },
        "/pins/individual": {
            "post": {
                "tags": ["PINs"],
                "summary": "Create individually listed PINs",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateIndividualRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/availability/joining-years": {
            "get": {
                "tags": ["PINs"],
                "summary": "Joining years with available PINs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/availability/branches": {
            "get": {
                "tags": ["PINs"],
                "summary": "Branches with available PINs",
                "parameters": [
                    {"name": "joiningYear", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/availability/years": {
            "get": {
                "tags": ["PINs"],
                "summary": "Study years with available PINs",
                "parameters": [
                    {"name": "joiningYear", "in": "query", "type": "integer", "required": true},
                    {"name": "branch", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/availability/sections": {
            "get": {
                "tags": ["PINs"],
                "summary": "Sections with available PINs",
                "parameters": [
                    {"name": "joiningYear", "in": "query", "type": "integer", "required": true},
                    {"name": "branch", "in": "query", "type": "string", "required": true},
                    {"name": "year", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/availability/pins": {
            "get": {
                "tags": ["PINs"],
                "summary": "Available PINs in a scope",
                "parameters": [
                    {"name": "joiningYear", "in": "query", "type": "integer", "required": true},
                    {"name": "branch", "in": "query", "type": "string", "required": true},
                    {"name": "year", "in": "query", "type": "integer", "required": true},
                    {"name": "section", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/stats": {
            "get": {
                "tags": ["PINs"],
                "summary": "Allocator statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/bulk-delete": {
            "post": {
                "tags": ["PINs"],
                "summary": "Delete a batch of PINs",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkDeleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pins/{pinNumber}": {
            "delete": {
                "tags": ["PINs"],
                "summary": "Delete a PIN and its dependents",
                "parameters": [
                    {"name": "pinNumber", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Cascade failed"}
                }
            }
        },
        "/students/register": {
            "post": {
                "tags": ["Students"],
                "summary": "Register with a PIN",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "PIN unavailable"}
                }
            }
        },
        "/students/verify": {
            "get": {
                "tags": ["Students"],
                "summary": "Verify email",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/products": {
            "get": {
                "tags": ["Products"],
                "summary": "Browse the catalog",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "categories", "in": "query", "type": "string"},
                    {"name": "branches", "in": "query", "type": "string"},
                    {"name": "priceRange", "in": "query", "type": "string"},
                    {"name": "freeOnly", "in": "query", "type": "boolean"},
                    {"name": "sort", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Products"],
                "summary": "Publish a listing",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProductRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a roster export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "CreateRangeRequest": {
            "type": "object",
            "required": ["joining_year", "branch", "year", "section", "start_sequence", "end_sequence"],
            "properties": {
                "joining_year": {"type": "integer"},
                "branch": {"type": "string"},
                "year": {"type": "integer"},
                "section": {"type": "string"},
                "start_sequence": {"type": "integer"},
                "end_sequence": {"type": "integer"}
            }
        },
        "CreateIndividualRequest": {
            "type": "object",
            "required": ["joining_year", "branch", "year", "section", "sequences"],
            "properties": {
                "joining_year": {"type": "integer"},
                "branch": {"type": "string"},
                "year": {"type": "integer"},
                "section": {"type": "string"},
                "sequences": {"type": "array", "items": {"type": "string"}}
            }
        },
        "BulkDeleteRequest": {
            "type": "object",
            "required": ["pin_numbers"],
            "properties": {
                "pin_numbers": {"type": "array", "items": {"type": "string"}}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "required": ["pin_number", "full_name", "email", "phone", "password"],
            "properties": {
                "pin_number": {"type": "string"},
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "whatsapp": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateProductRequest": {
            "type": "object",
            "required": ["title", "category"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "string"},
                "category": {"type": "string"},
                "branch": {"type": "string"},
                "image_urls": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["joining_year", "branch", "year", "section", "format"],
            "properties": {
                "joining_year": {"type": "integer"},
                "branch": {"type": "string"},
                "year": {"type": "integer"},
                "section": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
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
