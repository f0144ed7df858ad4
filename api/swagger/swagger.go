package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Clinic Portal API",
        "description": "Aggregated dashboards, debriefs, check-ins and documents for the clinic portal",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Dashboard"
        },
        {
            "name": "Dashboard Sessions"
        },
        {
            "name": "Students"
        },
        {
            "name": "Admin"
        },
        {
            "name": "Debriefs"
        },
        {
            "name": "Attendance"
        },
        {
            "name": "Documents"
        }
    ],
    "paths": {
        "/dashboard": {
            "get": {
                "tags": [
                    "Dashboard"
                ],
                "summary": "Assembled dashboard for a selection",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "weeks",
                        "description": "Week start dates",
                        "type": "array",
                        "items": {
                            "type": "string"
                        },
                        "collectionFormat": "multi"
                    },
                    {
                        "in": "query",
                        "name": "week",
                        "description": "Single week alias",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "directorId",
                        "description": "Director scope",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "clinic",
                        "description": "Clinic filter",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "client",
                        "description": "Client filter",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "studentId",
                        "description": "Student scope",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "asOf",
                        "description": "Reference date",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/dashboard/weekly-summary": {
            "get": {
                "tags": [
                    "Dashboard"
                ],
                "summary": "Work grouped by client for the selected weeks",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "weeks",
                        "description": "Week start dates",
                        "type": "array",
                        "items": {
                            "type": "string"
                        },
                        "collectionFormat": "multi"
                    },
                    {
                        "in": "query",
                        "name": "week",
                        "description": "Single week alias",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "directorId",
                        "description": "Director scope",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "clinic",
                        "description": "Clinic filter",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "client",
                        "description": "Client filter",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "studentId",
                        "description": "Student scope",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "asOf",
                        "description": "Reference date",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/dashboard/export": {
            "get": {
                "tags": [
                    "Dashboard"
                ],
                "summary": "Export a dashboard table",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "weeks",
                        "description": "Week start dates",
                        "type": "array",
                        "items": {
                            "type": "string"
                        },
                        "collectionFormat": "multi"
                    },
                    {
                        "in": "query",
                        "name": "week",
                        "description": "Single week alias",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "directorId",
                        "description": "Director scope",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "clinic",
                        "description": "Clinic filter",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "client",
                        "description": "Client filter",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "studentId",
                        "description": "Student scope",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "asOf",
                        "description": "Reference date",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "format",
                        "description": "csv or pdf",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "table",
                        "description": "clinics, clients, students or missing",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/dashboard/sessions/{id}": {
            "get": {
                "tags": [
                    "Dashboard Sessions"
                ],
                "summary": "Latest committed session state",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Session id"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Dashboard Sessions"
                ],
                "summary": "Drop a session",
                "responses": {
                    "204": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Session id"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/dashboard/sessions/{id}/selection": {
            "put": {
                "tags": [
                    "Dashboard Sessions"
                ],
                "summary": "Change the session selection",
                "responses": {
                    "202": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Session id"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "Dashboard selection"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/student/progress": {
            "get": {
                "tags": [
                    "Students"
                ],
                "summary": "Semester progress for a student",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "studentId",
                        "description": "Student id",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/audit": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "Roster integrity audit",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/status": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "Runtime metrics snapshot",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/cache/invalidate": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Purge cached portal views",
                "responses": {
                    "204": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/debriefs": {
            "get": {
                "tags": [
                    "Debriefs"
                ],
                "summary": "List debriefs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "studentId",
                        "description": "Student id",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "semesterId",
                        "description": "Semester id",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Debriefs"
                ],
                "summary": "Submit a weekly debrief",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "Debrief"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/debriefs/{id}/review": {
            "patch": {
                "tags": [
                    "Debriefs"
                ],
                "summary": "Mark a debrief reviewed",
                "responses": {
                    "204": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string",
                        "description": "Debrief id"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "Review status"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/attendance/passwords": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "List weekly check-in passwords",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "semesterId",
                        "description": "Semester id",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Set a weekly check-in password",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "Password"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/attendance/check-in": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Check in to class",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "Check-in"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/documents": {
            "get": {
                "tags": [
                    "Documents"
                ],
                "summary": "List documents",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "studentId",
                        "description": "Student id",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "clientId",
                        "description": "Client id",
                        "type": "string"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Documents"
                ],
                "summary": "Register an uploaded document",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "Document"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/documents/upload-url": {
            "post": {
                "tags": [
                    "Documents"
                ],
                "summary": "Reserve a signed upload slot",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "type": "object"
                        },
                        "description": "File"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/documents/upload/{token}": {
            "put": {
                "tags": [
                    "Documents"
                ],
                "summary": "Upload file bytes",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "token",
                        "required": true,
                        "type": "string",
                        "description": "Upload token"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/documents/files/{key}": {
            "get": {
                "tags": [
                    "Documents"
                ],
                "summary": "Download a stored document",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "default": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "key",
                        "required": true,
                        "type": "string",
                        "description": "Object key"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
