package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Quiz Scheduler API",
        "description": "Timezone-correct quiz scheduling and attempt validation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Quizzes", "description": "Quiz lifecycle and scheduling"},
        {"name": "Enrollments", "description": "Student access and reassignment"},
        {"name": "Attempts", "description": "Student attempt flow"},
        {"name": "Admin", "description": "Operational endpoints"}
    ],
    "paths": {
        "/quizzes": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "List quizzes",
                "parameters": [
                    {"name": "educatorId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Quizzes"],
                "summary": "Create quiz",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateQuizRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/{id}": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "Get quiz",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/quizzes/{id}/publish": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Publish quiz",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Published"},
                    "409": {"description": "Already published"},
                    "422": {"description": "Not schedulable"}
                }
            }
        },
        "/quizzes/{id}/schedule": {
            "put": {
                "tags": ["Quizzes"],
                "summary": "Set or replace quiz start time",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleQuizRequest"}}
                ],
                "responses": {
                    "200": {"description": "Scheduled"},
                    "400": {"description": "Invalid timezone or date-time"},
                    "422": {"description": "Invalid transition"}
                }
            }
        },
        "/quizzes/{id}/export": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "Export attempt report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Report file"}
                }
            }
        },
        "/quizzes/{id}/availability": {
            "get": {
                "tags": ["Attempts"],
                "summary": "Check quiz availability",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "at", "in": "query", "type": "string"},
                    {"name": "tz", "in": "query", "type": "string", "default": "UTC"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/{id}/attempts": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Start a quiz attempt",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "201": {"description": "Attempt created or resumed"},
                    "409": {"description": "Quiz not available"},
                    "429": {"description": "Too many attempts"}
                }
            }
        },
        "/quizzes/{id}/attempts/{attemptId}/submit": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Submit a quiz attempt",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "attemptId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitAttemptRequest"}}
                ],
                "responses": {
                    "200": {"description": "Attempt completed"},
                    "404": {"description": "Attempt not found"},
                    "409": {"description": "Already submitted"}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "quizId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll student in quiz",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Enrolled"},
                    "409": {"description": "Already enrolled or quiz closed"}
                }
            }
        },
        "/enrollments/reassign": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Grant a fresh attempt for a quiz",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Reassigned"},
                    "404": {"description": "Student never enrolled"},
                    "409": {"description": "Unused reassignment exists"}
                }
            }
        },
        "/admin/reaper/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Sweep abandoned attempts now",
                "responses": {
                    "200": {"description": "Sweep completed"}
                }
            }
        }
    },
    "definitions": {
        "CreateQuizRequest": {
            "type": "object",
            "required": ["title", "duration_minutes"],
            "properties": {
                "title": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "scheduling_mode": {"type": "string", "enum": ["legacy", "deferred"]},
                "local_start_time": {"type": "string"},
                "timezone": {"type": "string"}
            }
        },
        "ScheduleQuizRequest": {
            "type": "object",
            "required": ["local_start_time", "timezone"],
            "properties": {
                "local_start_time": {"type": "string"},
                "timezone": {"type": "string"}
            }
        },
        "EnrollStudentRequest": {
            "type": "object",
            "required": ["quiz_id", "student_id"],
            "properties": {
                "quiz_id": {"type": "string"},
                "student_id": {"type": "string"}
            }
        },
        "SubmitAttemptRequest": {
            "type": "object",
            "properties": {
                "answers": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "question_id": {"type": "string"},
                            "selected": {"type": "string"},
                            "correct": {"type": "boolean"}
                        }
                    }
                }
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
