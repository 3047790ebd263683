package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Department Timetable API",
        "description": "Timetable generation and conflict-resolution engine for academic departments",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Scheduler", "description": "Proposal generation and conflict detection"},
        {"name": "Approval", "description": "Entry state machine and change requests"},
        {"name": "Timetable", "description": "Approved weekly views and exports"}
    ],
    "paths": {
        "/schedule/generate": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Generate a timetable proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Proposal ready", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Proposal queued"},
                    "412": {"description": "Empty resource pool or malformed sections"}
                }
            }
        },
        "/schedule/proposals/{id}": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Fetch a held proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired proposal"}
                }
            }
        },
        "/schedule/save": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Persist a proposal as draft entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Entries created"},
                    "409": {"description": "Conflicts with entries committed since generation"}
                }
            }
        },
        "/schedule/conflicts": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Validate candidate entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DetectConflictsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Conflict list, empty when clean", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/entries/{id}/status": {
            "patch": {
                "tags": ["Approval"],
                "summary": "Transition a schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateEntryStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Entry transitioned"},
                    "409": {"description": "Conflict or invalid transition"}
                }
            }
        },
        "/schedule/requests": {
            "post": {
                "tags": ["Approval"],
                "summary": "File a change request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitChangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Request created"},
                    "409": {"description": "Entry is not APPROVED"}
                }
            },
            "get": {
                "tags": ["Approval"],
                "summary": "List change requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "entryId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/requests/{id}": {
            "get": {
                "tags": ["Approval"],
                "summary": "Fetch a change request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Unknown request"}
                }
            },
            "patch": {
                "tags": ["Approval"],
                "summary": "Resolve a change request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveRequestRequest"}}
                ],
                "responses": {
                    "200": {"description": "Request resolved"},
                    "409": {"description": "Conflicting change, request rejected"}
                }
            }
        },
        "/departments/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Approved weekly timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/departments/{id}/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download the timetable as CSV or PDF",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File payload"},
                    "412": {"description": "Export disabled"}
                }
            }
        }
    },
    "definitions": {
        "GenerateScheduleRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"},
                "departmentId": {"type": "string"},
                "maxSections": {"type": "integer"},
                "algorithm": {"type": "string", "enum": ["greedy"]},
                "seed": {"type": "integer"},
                "async": {"type": "boolean"},
                "constraints": {"$ref": "#/definitions/Constraints"}
            },
            "required": ["termId", "departmentId"]
        },
        "Constraints": {
            "type": "object",
            "properties": {
                "maxSectionsPerFaculty": {"type": "integer"},
                "dayPreference": {"type": "array", "items": {"type": "integer"}},
                "requireSpecializationMatch": {"type": "boolean"},
                "allowSharedRooms": {"type": "boolean"}
            }
        },
        "SaveScheduleRequest": {
            "type": "object",
            "properties": {
                "proposalId": {"type": "string"}
            },
            "required": ["proposalId"]
        },
        "DetectConflictsRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"},
                "departmentId": {"type": "string"},
                "candidates": {"type": "array", "items": {"$ref": "#/definitions/CandidateEntry"}}
            },
            "required": ["termId", "departmentId", "candidates"]
        },
        "CandidateEntry": {
            "type": "object",
            "properties": {
                "entryId": {"type": "string"},
                "sectionId": {"type": "string"},
                "facultyId": {"type": "string"},
                "roomId": {"type": "string"},
                "dayOfWeek": {"type": "integer"},
                "startMinute": {"type": "integer"},
                "endMinute": {"type": "integer"},
                "kind": {"type": "string", "enum": ["LECTURE", "LAB"]}
            },
            "required": ["sectionId", "dayOfWeek", "endMinute"]
        },
        "UpdateEntryStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]}
            },
            "required": ["status"]
        },
        "SubmitChangeRequest": {
            "type": "object",
            "properties": {
                "entryId": {"type": "string"},
                "kind": {"type": "string", "enum": ["TIME_CHANGE", "ROOM_CHANGE"]},
                "justification": {"type": "string"},
                "details": {"$ref": "#/definitions/ChangeDetails"}
            },
            "required": ["entryId", "kind", "justification"]
        },
        "ChangeDetails": {
            "type": "object",
            "properties": {
                "day_of_week": {"type": "integer"},
                "start_minute": {"type": "integer"},
                "end_minute": {"type": "integer"},
                "room_id": {"type": "string"}
            }
        },
        "ResolveRequestRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "note": {"type": "string"}
            },
            "required": ["decision"]
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
