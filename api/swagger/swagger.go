package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Bulletin API",
        "description": "Report-card computation, lifecycle and batch generation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Bulletins", "description": "Report cards per student and term"},
        {"name": "Bulletin Lines", "description": "Per-subject lines of a report card"},
        {"name": "Batch Generation", "description": "Whole-class generation and ranking"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "A backing store is unreachable"}
                }
            }
        },
        "/bulletins": {
            "get": {
                "tags": ["Bulletins"],
                "summary": "List bulletins",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "query", "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "state", "in": "query", "type": "string", "enum": ["draft", "calculated", "validated", "published", "archived"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bulletins"],
                "summary": "Create a draft bulletin",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBulletinRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "An active bulletin already exists"}
                }
            }
        },
        "/bulletins/stats": {
            "get": {
                "tags": ["Bulletins"],
                "summary": "Cohort statistics",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "query", "type": "string", "required": true},
                    {"name": "termId", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bulletins/{id}": {
            "get": {
                "tags": ["Bulletins"],
                "summary": "Get bulletin",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Bulletins"],
                "summary": "Edit header fields",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBulletinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal in the current state"},
                    "423": {"description": "Bulletin is locked"}
                }
            },
            "delete": {
                "tags": ["Bulletins"],
                "summary": "Delete a draft bulletin",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Only drafts can be deleted"}
                }
            }
        },
        "/bulletins/{id}/calculate": {
            "post": {
                "tags": ["Bulletins"],
                "summary": "Recompute lines, averages and cohort ranks",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal in the current state"},
                    "412": {"description": "Class has no education level"},
                    "423": {"description": "Bulletin is locked"}
                }
            }
        },
        "/bulletins/{id}/validate": {
            "post": {
                "tags": ["Bulletins"],
                "summary": "Validate a calculated bulletin",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal in the current state"}
                }
            }
        },
        "/bulletins/{id}/publish": {
            "post": {
                "tags": ["Bulletins"],
                "summary": "Publish a validated bulletin",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal in the current state"}
                }
            }
        },
        "/bulletins/{id}/archive": {
            "post": {
                "tags": ["Bulletins"],
                "summary": "Archive a bulletin",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArchiveBulletinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Reason missing"},
                    "409": {"description": "Already archived"}
                }
            }
        },
        "/bulletins/{id}/lines": {
            "post": {
                "tags": ["Bulletin Lines"],
                "summary": "Add or edit a subject line",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertLineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bulletins/{id}/lines/{subjectId}": {
            "put": {
                "tags": ["Bulletin Lines"],
                "summary": "Edit a subject line",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "subjectId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertLineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Bulletin Lines"],
                "summary": "Remove a subject line",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "subjectId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Line not found"}
                }
            }
        },
        "/bulletins/generate-batch/preview": {
            "post": {
                "tags": ["Batch Generation"],
                "summary": "Preview a batch run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Class has no education level"}
                }
            }
        },
        "/bulletins/generate-batch": {
            "post": {
                "tags": ["Batch Generation"],
                "summary": "Generate bulletins for a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Class has no education level"}
                }
            }
        }
    },
    "definitions": {
        "CreateBulletinRequest": {
            "type": "object",
            "required": ["studentId", "batchId", "termId"],
            "properties": {
                "studentId": {"type": "string"},
                "batchId": {"type": "string"},
                "termId": {"type": "string"}
            }
        },
        "UpdateBulletinRequest": {
            "type": "object",
            "properties": {
                "generalAppreciation": {"type": "string"},
                "councilDecision": {"type": "string"},
                "unjustifiedAbsences": {"type": "integer"},
                "justifiedAbsences": {"type": "integer"},
                "tardies": {"type": "integer"},
                "attendanceFromRecords": {"type": "boolean", "description": "Recount absences from daily attendance on the next calculation"}
            }
        },
        "ArchiveBulletinRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "UpsertLineRequest": {
            "type": "object",
            "required": ["subjectId"],
            "properties": {
                "subjectId": {"type": "string"},
                "scores": {
                    "type": "object",
                    "properties": {
                        "control": {"type": "number"},
                        "composition": {"type": "number"},
                        "homework": {"type": "number"},
                        "oral": {"type": "number"},
                        "practical": {"type": "number"}
                    }
                },
                "subjectAverage": {"type": "number"},
                "appreciation": {"type": "string"},
                "preserved": {"type": "boolean"}
            }
        },
        "GenerateBatchRequest": {
            "type": "object",
            "required": ["batchId", "termId"],
            "properties": {
                "batchId": {"type": "string"},
                "termId": {"type": "string"},
                "regenerateExisting": {"type": "boolean"},
                "autoValidate": {"type": "boolean"}
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
