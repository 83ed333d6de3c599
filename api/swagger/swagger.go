package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Interview Slots API",
        "description": "Interview slot booking for the conversational front-end.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Bookings", "description": "Dates, slots and the candidate's booking"},
        {"name": "Workflow", "description": "Guided booking dialog"}
    ],
    "paths": {
        "/departments/{departmentId}/dates": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookable dates of a department",
                "parameters": [
                    {"name": "departmentId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Try later", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/departments/{departmentId}/dates/{date}/slots": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List open slots of a department date",
                "parameters": [
                    {"name": "departmentId", "in": "path", "required": true, "type": "integer"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/slots/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a slot",
                "description": "Moves any existing booking. Returns 409 when the slot was taken in the meantime.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Try later", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/me": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Current booking of the authenticated candidate",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Bookings"],
                "summary": "Move the current booking to another slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rescheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Bookings"],
                "summary": "Cancel the current booking",
                "responses": {
                    "200": {"description": "Cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Nothing to cancel", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/workflow/start": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Open the booking dialog at the main menu",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/workflow/actions": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Apply one dialog action",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WorkflowInput"}}
                ],
                "responses": {
                    "200": {"description": "Next state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid action", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "BookingRequest": {
            "type": "object",
            "properties": {
                "timeslot_id": {"type": "integer"}
            },
            "required": ["timeslot_id"]
        },
        "WorkflowInput": {
            "type": "object",
            "properties": {
                "action": {
                    "type": "string",
                    "enum": ["start", "book", "reschedule", "cancel", "select_date", "select_slot", "confirm", "decline", "back"]
                },
                "date": {"type": "string", "format": "date"},
                "timeslot_id": {"type": "integer"}
            },
            "required": ["action"]
        },
        "TimeSlot": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "department_id": {"type": "integer"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "is_available": {"type": "boolean"},
                "occupant_id": {"type": "integer"}
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
