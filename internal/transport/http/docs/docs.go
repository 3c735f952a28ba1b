// Package docs holds the swagger description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/users": {
            "post": {
                "tags": [
                    "users"
                ],
                "summary": "Create a user",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "user",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/users/{username}": {
            "get": {
                "tags": [
                    "users"
                ],
                "summary": "Get a user",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "username",
                        "in": "path",
                        "required": true,
                        "description": "username"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks": {
            "post": {
                "tags": [
                    "tasks"
                ],
                "summary": "Create a task",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "task",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            },
            "get": {
                "tags": [
                    "tasks"
                ],
                "summary": "List tasks",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/tasks/{task}": {
            "get": {
                "tags": [
                    "tasks"
                ],
                "summary": "Get a task and its spec",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "tasks"
                ],
                "summary": "Delete a task",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/jobs/next": {
            "post": {
                "tags": [
                    "jobs"
                ],
                "summary": "Get the caller's next job",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "objective: to_annotate | to_validate",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/jobs/{id}": {
            "get": {
                "tags": [
                    "jobs"
                ],
                "summary": "Get a job",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "description": "job id"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "jobs"
                ],
                "summary": "Pause or close a job",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "description": "job id"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "update",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "410": {
                        "description": "Gone",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/results": {
            "get": {
                "tags": [
                    "results"
                ],
                "summary": "List results of a task",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "integer",
                        "name": "page",
                        "in": "query",
                        "description": "page (0-based)"
                    },
                    {
                        "type": "integer",
                        "name": "page_size",
                        "in": "query",
                        "description": "page size (default 100)"
                    },
                    {
                        "type": "string",
                        "name": "status",
                        "in": "query",
                        "description": "e.g. to_validate;done"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/results/status": {
            "post": {
                "tags": [
                    "results"
                ],
                "summary": "Unassign or move many results",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "items",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/results/{dataID}": {
            "get": {
                "tags": [
                    "results"
                ],
                "summary": "Get the result of one item",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "string",
                        "name": "dataID",
                        "in": "path",
                        "required": true,
                        "description": "data item id"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/results/{dataID}/next": {
            "get": {
                "tags": [
                    "results"
                ],
                "summary": "Find the next or previous matching result",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "string",
                        "name": "dataID",
                        "in": "path",
                        "required": true,
                        "description": "data item id"
                    },
                    {
                        "type": "string",
                        "name": "direction",
                        "in": "query",
                        "description": "next (default) | previous"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        },
        "/tasks/{task}/labels/{dataID}": {
            "get": {
                "tags": [
                    "labels"
                ],
                "summary": "Get the label of one item",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "string",
                        "name": "dataID",
                        "in": "path",
                        "required": true,
                        "description": "data item id"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "labels"
                ],
                "summary": "Replace the annotations of one item",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Username",
                        "in": "header",
                        "required": true,
                        "description": "caller"
                    },
                    {
                        "type": "string",
                        "name": "task",
                        "in": "path",
                        "required": true,
                        "description": "task name"
                    },
                    {
                        "type": "string",
                        "name": "dataID",
                        "in": "path",
                        "required": true,
                        "description": "data item id"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "annotations",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/apiError"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "apiError": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Annotation Service API",
	Description:      "Crowdsourced annotation job orchestration. Callers are identified by the X-Username header set by the gateway.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
